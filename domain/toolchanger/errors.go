package toolchanger

import "errors"

// Domain errors for the toolchanger.
var (
	// ErrDuplicateAssignment indicates a tool number already held by another tool.
	ErrDuplicateAssignment = errors.New("duplicate tool number")

	// ErrInvalidState indicates a request incompatible with the current status.
	ErrInvalidState = errors.New("invalid toolchanger state")

	// ErrToolNotFound indicates a lookup by number or name failed.
	ErrToolNotFound = errors.New("tool not found")

	// ErrScriptExecution indicates a hook raised internally.
	ErrScriptExecution = errors.New("script running error")

	// ErrUnexpectedStateDrift indicates the status changed while a hook ran.
	ErrUnexpectedStateDrift = errors.New("unexpected status during hook")

	// ErrInvalidPolicy indicates an unknown initialize_on value.
	ErrInvalidPolicy = errors.New("invalid initialize policy")

	// ErrInvalidArgument indicates a malformed command argument.
	ErrInvalidArgument = errors.New("invalid argument")
)
