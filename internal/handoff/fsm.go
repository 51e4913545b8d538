package handoff

import (
	"fmt"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// Event drives the handoff state machine.
type Event string

const (
	EventInitRequested Event = "INIT_REQUESTED"
	EventInitSucceeded Event = "INIT_SUCCEEDED"
	EventInitFailed    Event = "INIT_FAILED"
	EventEnded         Event = "ENDED"
)

// ErrInvalidTransition wraps a rejected state transition.
type ErrInvalidTransition struct {
	From  domain.HandoffStatus
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid handoff transition: %s on %s", e.Event, e.From)
}

// Transition is the single source of truth for status changes. Initialization
// always passes through INITIALIZING; teardown is accepted from any state so
// HandleEndHandoff stays idempotent.
func Transition(current domain.HandoffStatus, event Event) (domain.HandoffStatus, error) {
	switch event {
	case EventInitRequested:
		if current == domain.HandoffNotInitialized || current == domain.HandoffFailed {
			return domain.HandoffInitializing, nil
		}
	case EventInitSucceeded:
		if current == domain.HandoffInitializing {
			return domain.HandoffInitialized, nil
		}
	case EventInitFailed:
		if current == domain.HandoffInitializing {
			return domain.HandoffFailed, nil
		}
	case EventEnded:
		return domain.HandoffNotInitialized, nil
	}
	return current, &ErrInvalidTransition{From: current, Event: event}
}
