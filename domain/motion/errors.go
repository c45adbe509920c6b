package motion

import "errors"

// Domain errors for motion values.
var (
	// ErrInvalidAxis indicates an axis letter outside X, Y and Z.
	ErrInvalidAxis = errors.New("invalid axis")
)
