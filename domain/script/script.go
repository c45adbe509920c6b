// Package script defines the hook handle and the runner port used to execute
// user-supplied hook procedures.
package script

import (
	"context"
	"strings"
)

// Hook is a named, user-supplied procedure invoked at a transition point.
type Hook struct {
	// Name identifies the hook in logs and errors, e.g. "before_change_gcode".
	Name string

	// Source is the template text handed to the runner.
	Source string
}

// NewHook creates a hook.
func NewHook(name, source string) Hook {
	return Hook{Name: name, Source: source}
}

// IsEmpty reports whether the hook has no body.
func (h Hook) IsEmpty() bool {
	return strings.TrimSpace(h.Source) == ""
}

// Runner executes hooks synchronously with a context mapping.
// A runner may call back into the toolchanger while a hook is running.
type Runner interface {
	Run(ctx context.Context, hook Hook, vars map[string]any) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, hook Hook, vars map[string]any) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, hook Hook, vars map[string]any) error {
	return f(ctx, hook, vars)
}
