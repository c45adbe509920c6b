package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// TransitionPayload carries the target status and reason with an event.
type TransitionPayload struct {
	To     toolchanger.Status
	Reason string
}

// recordTransition updates the context and notifies the listener.
// statekit actions receive a pointer to the context, so **Context here.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}

	c := *ctx
	from := c.Status
	to, reason := payloadOf(event)

	c.Status = to
	if to == toolchanger.StatusError {
		c.ErrorMessage = reason
	} else {
		c.ErrorMessage = ""
	}

	if c.Listener != nil {
		c.Listener(from, to, reason)
	}
}

// guardCanTransition rejects events whose target the status chart forbids.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil {
		return false
	}
	to, _ := payloadOf(event)
	return ctx.Status.CanTransitionTo(to)
}

func payloadOf(event statekit.Event) (toolchanger.Status, string) {
	if p, ok := event.Payload.(TransitionPayload); ok {
		return p.To, p.Reason
	}
	return statusFromEventType(event.Type), ""
}

func statusFromEventType(eventType statekit.EventType) toolchanger.Status {
	switch eventType {
	case EventInitialize:
		return toolchanger.StatusInitializing
	case EventReady:
		return toolchanger.StatusReady
	case EventChange:
		return toolchanger.StatusChanging
	case EventAbort:
		return toolchanger.StatusError
	default:
		return toolchanger.Status(eventType)
	}
}
