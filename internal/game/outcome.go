package game

import "fmt"

// Outcome is a team's position in the win/loss exchange
type Outcome uint8

const (
	Running Outcome = iota
	// Claimed means end-score was reached and a victory notice is on its way
	Claimed
	Won
	Lost
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Claimed:
		return "claimed"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// Terminal reports whether the team has stopped playing
func (o Outcome) Terminal() bool {
	return o == Won || o == Lost
}

// MarshalText renders the outcome as its name in JSON
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a name written by MarshalText
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, c := range []Outcome{Running, Claimed, Won, Lost} {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// outcomeMachine resolves the match between two teams that only talk through
// relay notices. Crossed claims go to the lower team index, which both sides
// can compute locally.
type outcomeMachine struct {
	state Outcome
	index int
}

// scored is called after every score increment. It returns true when the
// team has just claimed victory and must notify the peer.
func (m *outcomeMachine) scored(score, endScore int) bool {
	if m.state != Running || score < endScore {
		return false
	}
	m.state = Claimed
	return true
}

// victory handles the peer's claim. It returns true when a concede reply is due.
func (m *outcomeMachine) victory() (reply bool) {
	switch m.state {
	case Running:
		m.state = Lost
		return true
	case Claimed:
		if m.index == 0 {
			m.state = Won
		} else {
			m.state = Lost
		}
	}
	return false
}

// conceded handles the peer's acknowledgement of our claim
func (m *outcomeMachine) conceded() {
	if m.state == Claimed {
		m.state = Won
	}
}
