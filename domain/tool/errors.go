package tool

import "errors"

// Domain errors for tools.
var (
	// ErrEmptyName indicates a tool was created with an empty name.
	ErrEmptyName = errors.New("tool name cannot be empty")

	// ErrInvalidNumber indicates a tool number below -1.
	ErrInvalidNumber = errors.New("invalid tool number")
)
