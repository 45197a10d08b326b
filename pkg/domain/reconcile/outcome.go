package reconcile

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Change states. These stay untyped for statekit.StateID.
const (
	StatePending   = "pending"
	StateApplied   = "applied"
	StateUnchanged = "unchanged"
	StateFailed    = "failed"
)

// Change events.
const (
	EventApply = "apply"
	EventSkip  = "skip"
	EventFail  = "fail"
	EventReset = "reset"
)

// ChangeContext carries the change a machine tracks.
type ChangeContext struct {
	ChangeID string
}

// ChangeStateMachine tracks the outcome of applying one change.
type ChangeStateMachine struct {
	interpreter *statekit.Interpreter[ChangeContext]
}

func NewChangeStateMachine(changeID string) (*ChangeStateMachine, error) {
	builder := statekit.NewMachine[ChangeContext]("sync-change").
		WithInitial(statekit.StateID(StatePending)).
		WithContext(ChangeContext{ChangeID: changeID})

	builder.State(StatePending).
		On(EventApply).Target(StateApplied).
		On(EventSkip).Target(StateUnchanged).
		On(EventFail).Target(StateFailed).
		Done()

	// A failed write after a successful edit still fails the change.
	builder.State(StateApplied).
		On(EventFail).Target(StateFailed).
		On(EventReset).Target(StatePending).
		Done()

	builder.State(StateUnchanged).
		On(EventReset).Target(StatePending).
		Done()

	builder.State(StateFailed).
		On(EventReset).Target(StatePending).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build change state machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &ChangeStateMachine{interpreter: interpreter}, nil
}

// Transition sends event and fails when the current state does not accept it.
func (sm *ChangeStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if sm.Current() != before {
		return nil
	}
	return fmt.Errorf("event %q is not allowed while the change is %s", event, before)
}

func (sm *ChangeStateMachine) Current() string {
	return string(sm.interpreter.State().Value)
}

// Outcome is the result of applying one change.
type Outcome struct {
	Change Change
	Err    error
	sm     *ChangeStateMachine
}

// State returns the change's current state.
func (o *Outcome) State() string {
	return o.sm.Current()
}

// Fail moves the change to failed, keeping the first error.
func (o *Outcome) Fail(err error) {
	if o.Err == nil {
		o.Err = err
	}
	_ = o.sm.Transition(EventFail)
}

// NewOutcome starts tracking a change in the pending state.
func NewOutcome(c Change) (*Outcome, error) {
	sm, err := NewChangeStateMachine(c.ID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Change: c, sm: sm}, nil
}

// ApplyDocument applies changes in order to one document's content. Each
// change succeeds or fails on its own; a failed change leaves the content as
// it was before it.
func ApplyDocument(content string, changes []Change) (string, []*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(changes))
	for _, c := range changes {
		o, err := NewOutcome(c)
		if err != nil {
			return content, nil, err
		}
		outcomes = append(outcomes, o)

		next, changed, err := Apply(content, c)
		switch {
		case err != nil:
			o.Fail(err)
		case changed:
			content = next
			_ = o.sm.Transition(EventApply)
		default:
			_ = o.sm.Transition(EventSkip)
		}
	}
	return content, outcomes, nil
}
