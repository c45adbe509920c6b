package params

import (
	"errors"
	"fmt"
)

// ErrInvalidLiteral indicates a parameter value outside the literal grammar.
var ErrInvalidLiteral = errors.New("invalid literal")

// FieldError names the parameter whose literal failed to parse.
type FieldError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("param %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *FieldError) Unwrap() error {
	return e.Err
}
