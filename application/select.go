package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
)

// savedStateName is the command state saved around a tool change.
const savedStateName = "_toolchange_state"

// SelectTool makes target the active tool. A nil target parks the active
// tool and leaves none mounted. restoreAxis names the axes moved back to
// their pre-change position afterwards ("" moves none).
func (t *Toolchanger) SelectTool(ctx context.Context, target *tool.Tool, restoreAxis string) error {
	defer t.refreshSnapshot()

	axes, err := motion.ParseAxes(restoreAxis)
	if err != nil {
		return fmt.Errorf("select tool: %w", err)
	}

	if t.policy == toolchanger.InitFirstUse && t.chart.State() == toolchanger.StatusUninitialized {
		if err := t.Initialize(ctx, nil); err != nil {
			return err
		}
	}

	if status := t.chart.State(); status != toolchanger.StatusReady {
		return fmt.Errorf("%w: cannot select tool, toolchanger status is %s", toolchanger.ErrInvalidState, status)
	}

	if target == t.active {
		if target == nil {
			t.respond(ctx, "No tool selected")
		} else {
			t.respond(ctx, "Tool %s already selected", target.Name())
		}
		return nil
	}

	previous := t.active
	ctx, span := t.tracer.Start(ctx, telemetry.SpanSelectTool,
		attribute.String("toolchanger.name", t.name),
		attribute.String("tool.name", targetName(target)),
		attribute.String("tool.previous", targetName(previous)),
		attribute.String("restore_axis", restoreAxis),
	)
	start := time.Now()
	t.metrics.IncrementActiveSequences(ctx)
	defer t.metrics.DecrementActiveSequences(ctx)

	if err := t.transition(ctx, toolchanger.StatusChanging, "select "+targetName(target)); err != nil {
		span.End(err)
		return err
	}

	err = t.change(ctx, previous, target, axes)
	if err == nil {
		err = t.transition(ctx, toolchanger.StatusReady, "selected "+targetName(target))
	}
	d := time.Since(start)
	t.metrics.RecordToolChange(ctx, t.name, targetName(target), err == nil, d)
	span.End(err)
	if err != nil {
		t.fail(ctx, "select_tool", err)
		return err
	}

	logging.Info().
		Add(logging.Toolchanger(t.name)).
		Add(logging.ToolName(targetName(target))).
		Add(logging.Str("previous", targetName(previous))).
		Add(logging.RestoreAxis(restoreAxis)).
		Add(logging.Duration(d)).
		Msg("tool changed")

	if target == nil {
		t.publish(ctx, event.TypeToolUnselected, event.ToolUnselectedPayload{
			Previous: targetName(previous),
			Duration: d,
		})
		t.respond(ctx, "Tool unselected")
		return nil
	}

	t.publish(ctx, event.TypeToolSelected, event.ToolSelectedPayload{
		Tool:     target.Name(),
		Number:   target.Number(),
		Previous: targetName(previous),
		Duration: d,
	})
	t.respond(ctx, "Selected tool %d (%s)", target.Number(), target.Name())
	return nil
}

// change runs the body of a tool change while the status is changing.
func (t *Toolchanger) change(ctx context.Context, previous, target *tool.Tool, axes []motion.Axis) error {
	const expected = toolchanger.StatusChanging

	pos, err := t.motion.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := t.motion.SaveState(ctx, savedStateName); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	extra := map[string]any{
		"dropoff_tool": nameOrNil(previous),
		"pickup_tool":  nameOrNil(target),
	}
	if err := t.runHook(ctx, t.beforeChangeHook, expected, extra); err != nil {
		return err
	}

	if t.clearOffset {
		if err := t.motion.SetOffset(ctx, motion.Zero()); err != nil {
			return fmt.Errorf("clear offset: %w", err)
		}
	}

	if previous != nil {
		if err := t.runHook(ctx, previous.DropoffHook(), expected, extra); err != nil {
			return err
		}
		if err := previous.Deactivate(ctx, t.toolhead); err != nil {
			return err
		}
		t.active = nil
	}

	if target != nil {
		t.active = target
		if err := t.runHook(ctx, target.PickupHook(), expected, extra); err != nil {
			return err
		}
		if err := t.runHook(ctx, t.afterChangeHook, expected, extra); err != nil {
			return err
		}
		if err := target.Activate(ctx, t.toolhead); err != nil {
			return err
		}
		if err := t.applyOffset(ctx, target); err != nil {
			return err
		}
	}

	if len(axes) > 0 {
		if err := t.motion.Move(ctx, motion.Select(pos, axes)); err != nil {
			return fmt.Errorf("restore position: %w", err)
		}
	}

	// Restoring the saved state brings back the offset that was active when
	// it was saved.
	if err := t.motion.RestoreState(ctx, savedStateName, false); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if target != nil {
		return t.applyOffset(ctx, target)
	}
	return nil
}
