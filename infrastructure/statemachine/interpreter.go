package statemachine

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// ErrTransitionNotAllowed indicates the chart has no transition to the requested status.
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// Interpreter wraps the statekit interpreter with toolchanger status handling.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for the toolchanger chart.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// New builds the chart and returns a started interpreter.
func New(name string, listener TransitionListener) (*Interpreter, error) {
	machine, err := NewToolchangerMachine()
	if err != nil {
		return nil, fmt.Errorf("build status chart: %w", err)
	}
	i := NewInterpreter(machine, NewContext(name, listener))
	i.Start()
	return i, nil
}

// Start enters the initial status.
func (i *Interpreter) Start() {
	i.interp.Start()
	i.ctx.Status = StatusFromMachine(i.interp.State().Value)
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// State returns the current status.
func (i *Interpreter) State() toolchanger.Status {
	return StatusFromMachine(i.interp.State().Value)
}

// ErrorMessage returns the message recorded by the last move into error.
func (i *Interpreter) ErrorMessage() string {
	return i.ctx.ErrorMessage
}

// CanTransition checks if a transition to the target status is possible.
func (i *Interpreter) CanTransition(to toolchanger.Status) bool {
	return i.State().CanTransitionTo(to)
}

// Transition moves the chart to status to. reason becomes the error message
// when to is the error status.
func (i *Interpreter) Transition(to toolchanger.Status, reason string) error {
	from := i.State()
	if !i.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", ErrTransitionNotAllowed, from, to)
	}

	i.interp.Send(statekit.Event{
		Type:    EventForTransition(to),
		Payload: TransitionPayload{To: to, Reason: reason},
	})

	if got := i.State(); got != to {
		return fmt.Errorf("%w: %s to %s, chart stayed in %s", ErrTransitionNotAllowed, from, to, got)
	}
	return nil
}

// Matches checks if the current status is s.
func (i *Interpreter) Matches(s toolchanger.Status) bool {
	return i.interp.Matches(statekit.StateID(s))
}
