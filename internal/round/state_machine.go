package round

import (
	"fmt"

	"aster-hedge-bot/internal/trading"
)

// Event drives the round lifecycle.
type Event string

const (
	EventStart      Event = "start"       // PENDING -> OPENING
	EventOpened     Event = "opened"      // OPENING -> OPEN
	EventRolledBack Event = "rolled_back" // OPENING|CLOSING -> ROLLED_BACK
	EventFailed     Event = "failed"      // OPENING|CLOSING -> FAILED
	EventCloseStart Event = "close_start" // OPEN -> CLOSING
	EventClosed     Event = "closed"      // CLOSING -> CLOSED
)

// StateMachine guards round status transitions. Terminal states accept
// no further events.
type StateMachine struct {
	status trading.RoundStatus
}

func NewStateMachine() *StateMachine {
	return &StateMachine{status: trading.RoundPending}
}

func (m *StateMachine) Status() trading.RoundStatus { return m.status }

// Apply transitions to the next status or errors on an illegal event.
func (m *StateMachine) Apply(ev Event) (trading.RoundStatus, error) {
	next, ok := nextStatus(m.status, ev)
	if !ok {
		return m.status, fmt.Errorf("illegal transition: %s on %s", ev, m.status)
	}
	m.status = next
	return next, nil
}

func nextStatus(cur trading.RoundStatus, ev Event) (trading.RoundStatus, bool) {
	switch cur {
	case trading.RoundPending:
		if ev == EventStart {
			return trading.RoundOpening, true
		}
	case trading.RoundOpening:
		switch ev {
		case EventOpened:
			return trading.RoundOpen, true
		case EventRolledBack:
			return trading.RoundRolledBack, true
		case EventFailed:
			return trading.RoundFailed, true
		}
	case trading.RoundOpen:
		if ev == EventCloseStart {
			return trading.RoundClosing, true
		}
	case trading.RoundClosing:
		switch ev {
		case EventClosed:
			return trading.RoundClosed, true
		case EventRolledBack:
			return trading.RoundRolledBack, true
		case EventFailed:
			return trading.RoundFailed, true
		}
	}
	return cur, false
}
