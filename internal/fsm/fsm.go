package fsm

import "fmt"

type State string

type Event string

const (
	StateDown        State = "down"
	StateDiscovering State = "discovering"
	StateStreaming   State = "streaming"
	StateHalted      State = "halted"
)

const (
	EventLost      Event = "lost"
	EventIdle      Event = "idle"
	EventStreaming Event = "streaming"
	EventViolation Event = "violation"
)

// Transition applies one cycle outcome. Halted is terminal.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateDown, StateDiscovering, StateStreaming:
	case StateHalted:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	switch event {
	case EventLost:
		return StateDown, nil
	case EventIdle:
		return StateDiscovering, nil
	case EventStreaming:
		return StateStreaming, nil
	case EventViolation:
		return StateHalted, nil
	default:
		return current, invalidTransition(current, event)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
