package application

import (
	"context"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// AssignTool registers tl under number. Without replace a number held by a
// different tool fails with ErrDuplicateAssignment. With replace the
// previous holder becomes unassigned.
func (t *Toolchanger) AssignTool(ctx context.Context, tl *tool.Tool, number int, replace bool) error {
	defer t.refreshSnapshot()

	previous := tl.Number()
	displaced, err := t.registry.Assign(tl, number, previous, replace)
	if err != nil {
		return err
	}
	if displaced != nil {
		displaced.SetNumber(tool.Unassigned)
	}
	tl.SetNumber(number)

	logging.Info().
		Add(logging.Toolchanger(t.name)).
		Add(logging.ToolName(tl.Name())).
		Add(logging.ToolNumber(number)).
		Msg("tool assigned")
	t.publish(ctx, event.TypeToolAssigned, event.ToolAssignedPayload{
		Tool:      tl.Name(),
		Number:    number,
		Previous:  previous,
		Displaced: targetName(displaced),
	})
	return nil
}

// Abort moves an initialize or tool change in progress to the error status
// with message. Outside of one it only responds with a diagnostic.
func (t *Toolchanger) Abort(ctx context.Context, message string) error {
	defer t.refreshSnapshot()

	status := t.chart.State()
	if !status.IsBusy() {
		t.respond(ctx, "SELECT_TOOL_ERROR called while not selecting, doing nothing")
		return nil
	}

	if err := t.transition(ctx, toolchanger.StatusError, message); err != nil {
		return err
	}
	logging.Warn().
		Add(logging.Toolchanger(t.name)).
		Add(logging.Status(status)).
		Add(logging.Reason(message)).
		Msg("sequence aborted")
	t.publish(ctx, event.TypeAborted, event.AbortedPayload{
		Status:  status,
		Message: message,
	})
	return nil
}
