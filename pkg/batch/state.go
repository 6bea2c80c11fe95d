package batch

import "fmt"

// State is the position of a writer in its lifecycle.
// States advance monotonically except into StateError, which is reachable
// from any state and absorbing.
type State int

const (
	// StateStart is the initial state; only StartBatch is legal.
	StateStart State = iota

	// StateBatchStarted follows StartBatch.
	StateBatchStarted

	// StateChangesetStarted follows StartChangeset.
	StateChangesetStarted

	// StateOperationCreated follows a request or response message creation.
	StateOperationCreated

	// StateOperationStreamRequested means the caller owns the body stream.
	StateOperationStreamRequested

	// StateOperationStreamDisposed means the body stream was handed back.
	StateOperationStreamDisposed

	// StateChangesetCompleted follows EndChangeset.
	StateChangesetCompleted

	// StateBatchCompleted is terminal; follows EndBatch.
	StateBatchCompleted

	// StateError is terminal and absorbing; every call fails identically.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateBatchStarted:
		return "BatchStarted"
	case StateChangesetStarted:
		return "ChangesetStarted"
	case StateOperationCreated:
		return "OperationCreated"
	case StateOperationStreamRequested:
		return "OperationStreamRequested"
	case StateOperationStreamDisposed:
		return "OperationStreamDisposed"
	case StateChangesetCompleted:
		return "ChangesetCompleted"
	case StateBatchCompleted:
		return "BatchCompleted"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// legalSources lists, per target state, the states a writer may come from.
// Shared by every payload encoding; scope rules (changeset open or not) are
// checked separately by the writer before consulting this table.
var legalSources = map[State][]State{
	StateBatchStarted: {StateStart},
	StateChangesetStarted: {
		StateBatchStarted, StateChangesetCompleted,
		StateOperationCreated, StateOperationStreamDisposed,
	},
	StateOperationCreated: {
		StateBatchStarted, StateChangesetStarted, StateOperationCreated,
		StateOperationStreamDisposed, StateChangesetCompleted,
	},
	StateOperationStreamRequested: {StateOperationCreated},
	StateOperationStreamDisposed:  {StateOperationStreamRequested},
	StateChangesetCompleted: {
		StateChangesetStarted, StateOperationCreated, StateOperationStreamDisposed,
	},
	StateBatchCompleted: {
		StateBatchStarted, StateChangesetCompleted,
		StateOperationCreated, StateOperationStreamDisposed,
	},
}

// stateMachine tracks writer state and the terminal fault. It is the shared
// validation core used by both the multipart and JSON writers.
type stateMachine struct {
	state State
	fault error
}

// ready returns the stored fault if the writer has already failed.
func (m *stateMachine) ready() error {
	if m.state == StateError {
		return m.fault
	}
	return nil
}

// validate checks that moving to target is legal from the current state
// without mutating anything. Violations fault the machine.
func (m *stateMachine) validate(target State) error {
	for _, from := range legalSources[target] {
		if m.state == from {
			return nil
		}
	}
	return m.fail(newError(ReasonInvalidStateTransition,
		"cannot transition from state %s to state %s", m.state, target))
}

// transition moves to target. It must only be called after validate.
func (m *stateMachine) transition(target State) {
	m.state = target
}

// fail enters the terminal error state. The first fault is retained so every
// subsequent call fails identically.
func (m *stateMachine) fail(err error) error {
	if m.state != StateError {
		m.state = StateError
		m.fault = err
	}
	return m.fault
}
