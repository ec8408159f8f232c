package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNeedMoreData means the buffer ends inside a frame
	ErrNeedMoreData = errors.New("protocol: need more data")

	// ErrInvalidTag matches any *InvalidTagError
	ErrInvalidTag = errors.New("protocol: invalid tag")

	// ErrInvalidEvent means a participant event carried an unknown sub-event
	ErrInvalidEvent = errors.New("protocol: invalid participant event")
)

// InvalidTagError reports an unrecognized leading byte
type InvalidTagError struct {
	Tag byte
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("protocol: invalid tag 0x%02x", e.Tag)
}

func (e *InvalidTagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// Payload widths, excluding the tag byte
const (
	sessionStartHeader = 4 + 4 + 1
	identityPayload    = IdentityLen
	eventPayload       = IdentityLen + 1
	positionPayload    = IdentityLen + 4 + 4

	maxFixedPayload = positionPayload
)

// payloadSize returns the fixed payload width for tag. For session start it
// returns only the header width; the roster follows.
func payloadSize(tag Tag) (int, bool) {
	switch tag {
	case TagSessionStart:
		return sessionStartHeader, true
	case TagJoin, TagParticipantLeft, TagProjectileDestroyed, TagThreatDestroyed:
		return identityPayload, true
	case TagParticipantEvent:
		return eventPayload, true
	case TagPositionUpdate, TagProjectileCreated, TagThreatCreated:
		return positionPayload, true
	case TagMatchWon, TagMatchLost, TagBaseHit, TagEnemyHit:
		return 0, true
	default:
		return 0, false
	}
}

// Encode serializes m into a new frame
func Encode(m Message) []byte {
	return AppendMessage(make([]byte, 0, 1+positionPayload), m)
}

// AppendMessage appends the frame for m to dst.
// Rosters longer than MaxRoster are truncated; call SessionStart.Validate first.
func AppendMessage(dst []byte, m Message) []byte {
	dst = append(dst, byte(m.Tag()))

	switch msg := m.(type) {
	case SessionStart:
		roster := msg.Roster
		if len(roster) > MaxRoster {
			roster = roster[:MaxRoster]
		}
		dst = binary.BigEndian.AppendUint32(dst, msg.Width)
		dst = binary.BigEndian.AppendUint32(dst, msg.Height)
		dst = append(dst, byte(len(roster)))
		for _, id := range roster {
			dst = append(dst, id[:]...)
		}
	case Join:
		dst = append(dst, msg.Identity[:]...)
	case ParticipantLeft:
		dst = append(dst, msg.Identity[:]...)
	case ParticipantEvent:
		dst = append(dst, msg.Identity[:]...)
		dst = append(dst, byte(msg.Event))
	case PositionUpdate:
		dst = append(dst, msg.Identity[:]...)
		dst = binary.BigEndian.AppendUint32(dst, msg.X)
		dst = binary.BigEndian.AppendUint32(dst, msg.Y)
	case ProjectileCreated:
		dst = append(dst, msg.ID[:]...)
		dst = binary.BigEndian.AppendUint32(dst, msg.X)
		dst = binary.BigEndian.AppendUint32(dst, msg.Y)
	case ProjectileDestroyed:
		dst = append(dst, msg.ID[:]...)
	case ThreatCreated:
		dst = append(dst, msg.ID[:]...)
		dst = binary.BigEndian.AppendUint32(dst, msg.X)
		dst = binary.BigEndian.AppendUint32(dst, msg.Y)
	case ThreatDestroyed:
		dst = append(dst, msg.ID[:]...)
	case MatchWon, MatchLost, BaseHit, EnemyHit:
		// tag only
	}
	return dst
}

// Decode parses one frame from the front of buf and returns it with the
// number of bytes consumed. A partial frame yields ErrNeedMoreData; decoding
// never reads past the frame boundary.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreData
	}
	tag := Tag(buf[0])
	size, ok := payloadSize(tag)
	if !ok {
		return nil, 0, &InvalidTagError{Tag: buf[0]}
	}
	if len(buf) < 1+size {
		return nil, 0, ErrNeedMoreData
	}
	p := buf[1 : 1+size]
	n := 1 + size

	switch tag {
	case TagSessionStart:
		count := int(p[8])
		end := n + count*IdentityLen
		if len(buf) < end {
			return nil, 0, ErrNeedMoreData
		}
		msg := SessionStart{
			Width:  binary.BigEndian.Uint32(p[0:4]),
			Height: binary.BigEndian.Uint32(p[4:8]),
			Roster: make([]Identity, count),
		}
		for i := range msg.Roster {
			copy(msg.Roster[i][:], buf[n+i*IdentityLen:])
		}
		return msg, end, nil

	case TagJoin:
		return Join{Identity: identityAt(p)}, n, nil
	case TagParticipantLeft:
		return ParticipantLeft{Identity: identityAt(p)}, n, nil

	case TagParticipantEvent:
		kind := EventKind(p[IdentityLen])
		if kind != EventFire && kind != EventExit {
			return nil, 0, fmt.Errorf("%w: %d", ErrInvalidEvent, p[IdentityLen])
		}
		return ParticipantEvent{Identity: identityAt(p), Event: kind}, n, nil

	case TagPositionUpdate:
		x, y := coordsAt(p)
		return PositionUpdate{Identity: identityAt(p), X: x, Y: y}, n, nil
	case TagProjectileCreated:
		x, y := coordsAt(p)
		return ProjectileCreated{ID: projectileAt(p), X: x, Y: y}, n, nil
	case TagProjectileDestroyed:
		return ProjectileDestroyed{ID: projectileAt(p)}, n, nil
	case TagThreatCreated:
		x, y := coordsAt(p)
		return ThreatCreated{ID: projectileAt(p), X: x, Y: y}, n, nil
	case TagThreatDestroyed:
		return ThreatDestroyed{ID: projectileAt(p)}, n, nil

	case TagMatchWon:
		return MatchWon{}, n, nil
	case TagMatchLost:
		return MatchLost{}, n, nil
	case TagBaseHit:
		return BaseHit{}, n, nil
	case TagEnemyHit:
		return EnemyHit{}, n, nil
	}
	return nil, 0, &InvalidTagError{Tag: buf[0]}
}

// ReadMessage reads exactly one frame from r.
// A clean close before the tag returns io.EOF; a close inside a frame returns
// an error wrapping io.ErrUnexpectedEOF.
func ReadMessage(r io.Reader) (Message, error) {
	var head [1 + maxFixedPayload]byte
	if _, err := io.ReadFull(r, head[:1]); err != nil {
		return nil, err
	}

	size, ok := payloadSize(Tag(head[0]))
	if !ok {
		return nil, &InvalidTagError{Tag: head[0]}
	}

	frame := head[:1+size]
	if size > 0 {
		if _, err := io.ReadFull(r, frame[1:]); err != nil {
			return nil, fmt.Errorf("read %s payload: %w", Tag(head[0]), unexpected(err))
		}
	}

	if Tag(head[0]) == TagSessionStart {
		count := int(frame[sessionStartHeader])
		full := make([]byte, len(frame)+count*IdentityLen)
		copy(full, frame)
		if _, err := io.ReadFull(r, full[len(frame):]); err != nil {
			return nil, fmt.Errorf("read roster: %w", unexpected(err))
		}
		frame = full
	}

	msg, _, err := Decode(frame)
	return msg, err
}

// WriteMessage writes the frame for m to w in a single Write call
func WriteMessage(w io.Writer, m Message) error {
	if _, err := w.Write(Encode(m)); err != nil {
		return fmt.Errorf("write %s: %w", m.Tag(), err)
	}
	return nil
}

func identityAt(p []byte) Identity {
	var id Identity
	copy(id[:], p[:IdentityLen])
	return id
}

func projectileAt(p []byte) ProjectileID {
	var id ProjectileID
	copy(id[:], p[:IdentityLen])
	return id
}

func coordsAt(p []byte) (x, y uint32) {
	return binary.BigEndian.Uint32(p[IdentityLen : IdentityLen+4]),
		binary.BigEndian.Uint32(p[IdentityLen+4 : IdentityLen+8])
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
