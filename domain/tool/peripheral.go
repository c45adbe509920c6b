package tool

import "context"

// Peripheral is an opaque capability handle (heater, stepper, fan) resolved
// by name after start-up.
type Peripheral interface {
	Name() string
}

// Lookup resolves peripheral names. Implementations return false for names
// they do not know.
type Lookup interface {
	Lookup(name string) (Peripheral, bool)
}

// Toolhead is the set of peripheral switching commands tool activation
// issues. Each method is one discrete command.
type Toolhead interface {
	// ActiveExtruder returns the name of the active extruder, or "".
	ActiveExtruder() string

	// ActivateExtruder switches the active extruder.
	ActivateExtruder(ctx context.Context, name string) error

	// StepperQueue returns the motion queue stepper currently follows, or "".
	StepperQueue(stepper string) string

	// SyncExtruderMotion makes stepper follow queue; an empty queue detaches it.
	SyncExtruderMotion(ctx context.Context, stepper, queue string) error

	// ActiveFan returns the name of the active part cooling fan, or "".
	ActiveFan() string

	// ActivateFan switches the active part cooling fan.
	ActivateFan(ctx context.Context, name string) error
}
