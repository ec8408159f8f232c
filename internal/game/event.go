package game

import (
	"encoding/json"
	"time"
)

// EventType classifies match audit records
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeJoin
	EventTypeLeave
	EventTypeFire
	EventTypeTransfer
	EventTypeCollision
	EventTypeBaseHit
	EventTypeScore
	EventTypeOutcome
)

// EventVersion is bumped whenever a payload shape changes
const EventVersion uint8 = 1

// Event is one line of the match audit log
type Event struct {
	Version     uint8           `json:"version"`
	Type        EventType       `json:"type"`
	Timestamp   int64           `json:"timestamp"` // Unix nano
	Sequence    uint64          `json:"sequence"`
	Tick        uint64          `json:"tick"`
	Team        int             `json:"team"`
	Participant string          `json:"participant,omitempty"` // rate limit key
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (t EventType) result() bool {
	return t == EventTypeScore || t == EventTypeOutcome
}

func (t EventType) String() string {
	switch t {
	case EventTypeJoin:
		return "join"
	case EventTypeLeave:
		return "leave"
	case EventTypeFire:
		return "fire"
	case EventTypeTransfer:
		return "transfer"
	case EventTypeCollision:
		return "collision"
	case EventTypeBaseHit:
		return "base_hit"
	case EventTypeScore:
		return "score"
	case EventTypeOutcome:
		return "outcome"
	default:
		return "unknown"
	}
}

// MarshalText writes the type by name so the log is greppable
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads

type ProjectilePayload struct {
	ID string `json:"id"`
	X  uint32 `json:"x"`
	Y  uint32 `json:"y"`
}

type CollisionPayload struct {
	Outgoing []string `json:"outgoing"`
	Incoming []string `json:"incoming"`
}

type ScorePayload struct {
	Score int `json:"score"`
}

type OutcomePayload struct {
	Outcome Outcome `json:"outcome"`
	Score   int     `json:"score"`
}

// NewEvent stamps an audit record with the current time
func NewEvent(eventType EventType, tick uint64, team int, participant string, payload any) Event {
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	return Event{
		Version:     EventVersion,
		Type:        eventType,
		Timestamp:   time.Now().UnixNano(),
		Tick:        tick,
		Team:        team,
		Participant: participant,
		Payload:     raw,
	}
}
