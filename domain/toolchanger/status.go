// Package toolchanger holds the toolchanger domain model: the status values,
// the initialization policy, the tool registry and the error taxonomy.
package toolchanger

import "fmt"

// Status is the single authoritative toolchanger status.
type Status string

// Toolchanger statuses.
const (
	StatusUninitialized Status = "uninitialized"
	StatusInitializing  Status = "initializing"
	StatusReady         Status = "ready"
	StatusChanging      Status = "changing"
	StatusError         Status = "error"
)

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusUninitialized, StatusInitializing, StatusReady, StatusChanging, StatusError:
		return true
	default:
		return false
	}
}

// IsBusy reports whether a sequence (initialize or tool change) is running.
func (s Status) IsBusy() bool {
	return s == StatusInitializing || s == StatusChanging
}

// AllStatuses returns every status.
func AllStatuses() []Status {
	return []Status{StatusUninitialized, StatusInitializing, StatusReady, StatusChanging, StatusError}
}

// InitPolicy decides when the toolchanger initializes itself.
type InitPolicy int

// Initialization policies.
const (
	InitOnHome InitPolicy = iota
	InitManual
	InitFirstUse
)

// String returns the configuration spelling of the policy.
func (p InitPolicy) String() string {
	switch p {
	case InitOnHome:
		return "home"
	case InitManual:
		return "manual"
	case InitFirstUse:
		return "first-use"
	default:
		return fmt.Sprintf("InitPolicy(%d)", int(p))
	}
}

// ParseInitPolicy parses "home", "manual" or "first-use". The empty string
// selects first-use.
func ParseInitPolicy(s string) (InitPolicy, error) {
	switch s {
	case "home":
		return InitOnHome, nil
	case "manual":
		return InitManual, nil
	case "first-use", "":
		return InitFirstUse, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

var transitions = map[Status][]Status{
	StatusUninitialized: {StatusInitializing},
	StatusInitializing:  {StatusReady, StatusError},
	StatusReady:         {StatusInitializing, StatusChanging},
	StatusChanging:      {StatusReady, StatusError},
	StatusError:         {StatusInitializing},
}

// CanTransitionTo reports whether the status chart allows moving from s to to.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}
