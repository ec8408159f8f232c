// Package protocol defines the binary wire format spoken between the match
// server and its participants.
//
// Every frame is a one-byte tag followed by a payload whose shape is fixed by
// the tag. Integers are big-endian; identities are 8 bytes, null padded. The
// only variable-length field is the session start roster, which is prefixed by
// a one-byte count of fixed-width entries.
package protocol

import "fmt"

// Tag identifies a frame on the wire
type Tag byte

const (
	TagSessionStart        Tag = 0x01
	TagJoin                Tag = 0x02
	TagParticipantLeft     Tag = 0x03
	TagParticipantEvent    Tag = 0x04
	TagPositionUpdate      Tag = 0x05
	TagProjectileCreated   Tag = 0x06
	TagProjectileDestroyed Tag = 0x07
	TagThreatCreated       Tag = 0x08
	TagThreatDestroyed     Tag = 0x09
	TagMatchWon            Tag = 0x0A
	TagMatchLost           Tag = 0x0B

	// Auxiliary score notices, echoed to participants for score display
	TagBaseHit  Tag = 0x0C
	TagEnemyHit Tag = 0x0D
)

// MaxRoster is the largest roster a session start frame can carry
const MaxRoster = 255

// String returns the snake_case event name used in logs and the spectator feed
func (t Tag) String() string {
	switch t {
	case TagSessionStart:
		return "session_start"
	case TagJoin:
		return "join"
	case TagParticipantLeft:
		return "participant_left"
	case TagParticipantEvent:
		return "participant_event"
	case TagPositionUpdate:
		return "position_update"
	case TagProjectileCreated:
		return "projectile_created"
	case TagProjectileDestroyed:
		return "projectile_destroyed"
	case TagThreatCreated:
		return "threat_created"
	case TagThreatDestroyed:
		return "threat_destroyed"
	case TagMatchWon:
		return "match_won"
	case TagMatchLost:
		return "match_lost"
	case TagBaseHit:
		return "base_hit"
	case TagEnemyHit:
		return "enemy_hit"
	default:
		return fmt.Sprintf("tag_0x%02x", byte(t))
	}
}

// Message is the closed set of frames. Only types in this package implement it,
// so every type switch over Message can be checked for exhaustiveness.
type Message interface {
	Tag() Tag
	sealed()
}

// EventKind is the sub-event carried by a participant event frame
type EventKind uint8

const (
	EventFire EventKind = 0
	EventExit EventKind = 1
)

func (k EventKind) String() string {
	switch k {
	case EventFire:
		return "fire"
	case EventExit:
		return "exit"
	default:
		return fmt.Sprintf("event_%d", uint8(k))
	}
}

// SessionStart announces field dimensions and the team roster
type SessionStart struct {
	Width  uint32     `json:"width"`
	Height uint32     `json:"height"`
	Roster []Identity `json:"roster"`
}

// Join is the first frame a client sends, carrying its identity
type Join struct {
	Identity Identity `json:"identity"`
}

// ParticipantLeft tells the team a participant is gone
type ParticipantLeft struct {
	Identity Identity `json:"identity"`
}

// ParticipantEvent is a fire or exit intent
type ParticipantEvent struct {
	Identity Identity  `json:"identity"`
	Event    EventKind `json:"event"`
}

// PositionUpdate carries an absolute participant position
type PositionUpdate struct {
	Identity Identity `json:"identity"`
	X        uint32   `json:"x"`
	Y        uint32   `json:"y"`
}

// ProjectileCreated announces a new outgoing projectile
type ProjectileCreated struct {
	ID ProjectileID `json:"id"`
	X  uint32       `json:"x"`
	Y  uint32       `json:"y"`
}

// ProjectileDestroyed retires an outgoing projectile
type ProjectileDestroyed struct {
	ID ProjectileID `json:"id"`
}

// ThreatCreated announces a new incoming projectile
type ThreatCreated struct {
	ID ProjectileID `json:"id"`
	X  uint32       `json:"x"`
	Y  uint32       `json:"y"`
}

// ThreatDestroyed retires an incoming projectile
type ThreatDestroyed struct {
	ID ProjectileID `json:"id"`
}

type MatchWon struct{}
type MatchLost struct{}

// BaseHit is broadcast to the defending team when a threat reaches its base
type BaseHit struct{}

// EnemyHit is broadcast to the firing team when its score increases
type EnemyHit struct{}

func (SessionStart) Tag() Tag        { return TagSessionStart }
func (Join) Tag() Tag                { return TagJoin }
func (ParticipantLeft) Tag() Tag     { return TagParticipantLeft }
func (ParticipantEvent) Tag() Tag    { return TagParticipantEvent }
func (PositionUpdate) Tag() Tag      { return TagPositionUpdate }
func (ProjectileCreated) Tag() Tag   { return TagProjectileCreated }
func (ProjectileDestroyed) Tag() Tag { return TagProjectileDestroyed }
func (ThreatCreated) Tag() Tag       { return TagThreatCreated }
func (ThreatDestroyed) Tag() Tag     { return TagThreatDestroyed }
func (MatchWon) Tag() Tag            { return TagMatchWon }
func (MatchLost) Tag() Tag           { return TagMatchLost }
func (BaseHit) Tag() Tag             { return TagBaseHit }
func (EnemyHit) Tag() Tag            { return TagEnemyHit }

func (SessionStart) sealed()        {}
func (Join) sealed()                {}
func (ParticipantLeft) sealed()     {}
func (ParticipantEvent) sealed()    {}
func (PositionUpdate) sealed()      {}
func (ProjectileCreated) sealed()   {}
func (ProjectileDestroyed) sealed() {}
func (ThreatCreated) sealed()       {}
func (ThreatDestroyed) sealed()     {}
func (MatchWon) sealed()            {}
func (MatchLost) sealed()           {}
func (BaseHit) sealed()             {}
func (EnemyHit) sealed()            {}

// Validate reports whether the roster fits in a single frame
func (m SessionStart) Validate() error {
	if len(m.Roster) > MaxRoster {
		return fmt.Errorf("roster too large: %d > %d", len(m.Roster), MaxRoster)
	}
	return nil
}
