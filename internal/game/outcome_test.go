package game

import "testing"

// TestOutcomeMachine tests every transition of the win/loss exchange
func TestOutcomeMachine(t *testing.T) {
	t.Run("claim then concede", func(t *testing.T) {
		m := outcomeMachine{index: 1}
		if m.scored(4, 5) {
			t.Fatal("Should not claim below end score")
		}
		if !m.scored(5, 5) || m.state != Claimed {
			t.Fatalf("Expected Claimed, got %s", m.state)
		}
		if m.scored(6, 5) {
			t.Error("Should only claim once")
		}
		m.conceded()
		if m.state != Won {
			t.Errorf("Expected Won, got %s", m.state)
		}
	})

	t.Run("running receives victory", func(t *testing.T) {
		m := outcomeMachine{index: 0}
		if !m.victory() {
			t.Error("Expected a concede reply")
		}
		if m.state != Lost {
			t.Errorf("Expected Lost, got %s", m.state)
		}
	})

	t.Run("crossed claims favour lower index", func(t *testing.T) {
		low := outcomeMachine{index: 0}
		high := outcomeMachine{index: 1}
		low.scored(5, 5)
		high.scored(5, 5)

		if low.victory() || high.victory() {
			t.Error("Crossed claims need no reply")
		}
		if low.state != Won || high.state != Lost {
			t.Errorf("Expected Won/Lost, got %s/%s", low.state, high.state)
		}
	})

	t.Run("terminal states are sticky", func(t *testing.T) {
		m := outcomeMachine{state: Lost}
		m.conceded()
		m.victory()
		if m.scored(10, 5) || m.state != Lost {
			t.Errorf("Expected Lost to stick, got %s", m.state)
		}
	})
}
