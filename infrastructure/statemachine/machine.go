// Package statemachine provides the statekit chart that owns the toolchanger status.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// TransitionListener is notified after every status change.
type TransitionListener func(from, to toolchanger.Status, reason string)

// Context carries the toolchanger status through the state machine.
type Context struct {
	Name         string
	Status       toolchanger.Status
	ErrorMessage string
	Listener     TransitionListener
}

// NewContext creates a machine context in the uninitialized status.
func NewContext(name string, listener TransitionListener) *Context {
	return &Context{
		Name:     name,
		Status:   toolchanger.StatusUninitialized,
		Listener: listener,
	}
}

// Chart events.
const (
	EventInitialize statekit.EventType = "INITIALIZE"
	EventReady      statekit.EventType = "READY"
	EventChange     statekit.EventType = "CHANGE"
	EventAbort      statekit.EventType = "ABORT"
)

// machineID identifies the chart.
const machineID = "toolchanger"

const (
	stateUninitialized statekit.StateID = statekit.StateID(toolchanger.StatusUninitialized)
	stateInitializing  statekit.StateID = statekit.StateID(toolchanger.StatusInitializing)
	stateReady         statekit.StateID = statekit.StateID(toolchanger.StatusReady)
	stateChanging      statekit.StateID = statekit.StateID(toolchanger.StatusChanging)
	stateError         statekit.StateID = statekit.StateID(toolchanger.StatusError)
)

// NewToolchangerMachine creates the toolchanger status chart.
func NewToolchangerMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](machineID).
		WithInitial(stateUninitialized).
		WithContext(&Context{}).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(stateUninitialized).
			On(EventInitialize).Target(stateInitializing).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateInitializing).
			On(EventReady).Target(stateReady).Guard("canTransition").Do("recordTransition").
			On(EventAbort).Target(stateError).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateReady).
			On(EventInitialize).Target(stateInitializing).Guard("canTransition").Do("recordTransition").
			On(EventChange).Target(stateChanging).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateChanging).
			On(EventReady).Target(stateReady).Guard("canTransition").Do("recordTransition").
			On(EventAbort).Target(stateError).Guard("canTransition").Do("recordTransition").
			Done().
		State(stateError).
			On(EventInitialize).Target(stateInitializing).Guard("canTransition").Do("recordTransition").
			Done().
		Build()
}

// EventForTransition returns the event that moves the chart into status to.
func EventForTransition(to toolchanger.Status) statekit.EventType {
	switch to {
	case toolchanger.StatusInitializing:
		return EventInitialize
	case toolchanger.StatusReady:
		return EventReady
	case toolchanger.StatusChanging:
		return EventChange
	case toolchanger.StatusError:
		return EventAbort
	default:
		return statekit.EventType(to)
	}
}

// StatusFromMachine converts the machine state ID to a domain Status.
func StatusFromMachine(stateID statekit.StateID) toolchanger.Status {
	return toolchanger.Status(stateID)
}
