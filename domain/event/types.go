package event

import (
	"time"

	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// Type classifies journal events.
type Type string

// Event types for the toolchanger journal.
const (
	// Lifecycle events
	TypeInitialized Type = "toolchanger.initialized"
	TypeAborted     Type = "toolchanger.aborted"
	TypeFailed      Type = "toolchanger.failed"

	// Status chart events
	TypeStatusTransitioned Type = "status.transitioned"

	// Tool events
	TypeToolSelected   Type = "tool.selected"
	TypeToolUnselected Type = "tool.unselected"
	TypeToolAssigned   Type = "tool.assigned"
)

// AllTypes returns every journal event type.
func AllTypes() []Type {
	return []Type{
		TypeInitialized, TypeAborted, TypeFailed, TypeStatusTransitioned,
		TypeToolSelected, TypeToolUnselected, TypeToolAssigned,
	}
}

// InitializedPayload contains data for toolchanger.initialized events.
type InitializedPayload struct {
	Tool     string        `json:"tool,omitempty"`
	Number   int           `json:"tool_number"`
	Duration time.Duration `json:"duration"`
}

// AbortedPayload contains data for toolchanger.aborted events.
type AbortedPayload struct {
	Status  toolchanger.Status `json:"status"`
	Message string             `json:"message"`
}

// FailedPayload contains data for toolchanger.failed events.
type FailedPayload struct {
	Operation string             `json:"operation"`
	Status    toolchanger.Status `json:"status"`
	Error     string             `json:"error"`
}

// StatusTransitionedPayload contains data for status.transitioned events.
type StatusTransitionedPayload struct {
	From   toolchanger.Status `json:"from"`
	To     toolchanger.Status `json:"to"`
	Reason string             `json:"reason,omitempty"`
}

// ToolSelectedPayload contains data for tool.selected events.
type ToolSelectedPayload struct {
	Tool     string        `json:"tool"`
	Number   int           `json:"tool_number"`
	Previous string        `json:"previous,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ToolUnselectedPayload contains data for tool.unselected events.
type ToolUnselectedPayload struct {
	Previous string        `json:"previous,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ToolAssignedPayload contains data for tool.assigned events.
type ToolAssignedPayload struct {
	Tool      string `json:"tool"`
	Number    int    `json:"tool_number"`
	Previous  int    `json:"previous_number"`
	Displaced string `json:"displaced,omitempty"`
}
