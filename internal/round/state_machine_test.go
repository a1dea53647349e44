package round

import (
	"testing"

	"aster-hedge-bot/internal/trading"
)

func TestHappyPath(t *testing.T) {
	sm := NewStateMachine()
	steps := []struct {
		ev   Event
		want trading.RoundStatus
	}{
		{EventStart, trading.RoundOpening},
		{EventOpened, trading.RoundOpen},
		{EventCloseStart, trading.RoundClosing},
		{EventClosed, trading.RoundClosed},
	}
	for _, step := range steps {
		got, err := sm.Apply(step.ev)
		if err != nil {
			t.Fatalf("%s: %v", step.ev, err)
		}
		if got != step.want {
			t.Fatalf("%s: expected %s, got %s", step.ev, step.want, got)
		}
	}
	if !sm.Status().Terminal() {
		t.Fatalf("CLOSED must be terminal")
	}
}

func TestOpeningCanRollBackOrFail(t *testing.T) {
	sm := NewStateMachine()
	if _, err := sm.Apply(EventStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got, err := sm.Apply(EventRolledBack); err != nil || got != trading.RoundRolledBack {
		t.Fatalf("expected ROLLED_BACK, got %s err %v", got, err)
	}

	sm = NewStateMachine()
	if _, err := sm.Apply(EventStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got, err := sm.Apply(EventFailed); err != nil || got != trading.RoundFailed {
		t.Fatalf("expected FAILED, got %s err %v", got, err)
	}
}

func TestClosingCanFail(t *testing.T) {
	sm := NewStateMachine()
	for _, ev := range []Event{EventStart, EventOpened, EventCloseStart} {
		if _, err := sm.Apply(ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	if got, err := sm.Apply(EventFailed); err != nil || got != trading.RoundFailed {
		t.Fatalf("expected FAILED, got %s err %v", got, err)
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	sm := NewStateMachine()
	if _, err := sm.Apply(EventClosed); err == nil {
		t.Fatalf("PENDING must reject close")
	}
	if sm.Status() != trading.RoundPending {
		t.Fatalf("failed transition must not change state")
	}

	for _, ev := range []Event{EventStart, EventOpened, EventCloseStart, EventClosed} {
		if _, err := sm.Apply(ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	if _, err := sm.Apply(EventStart); err == nil {
		t.Fatalf("terminal state must reject events")
	}
}
