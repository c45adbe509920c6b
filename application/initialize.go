package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
)

// Initialize runs the initialize hook and, when target is set, makes target
// the active tool without a pickup sequence.
//
// Called again from inside the initialize hook, only the target is
// configured: the hook does not run twice and no second notification is sent.
func (t *Toolchanger) Initialize(ctx context.Context, target *tool.Tool) error {
	defer t.refreshSnapshot()

	status := t.chart.State()
	if status == toolchanger.StatusChanging {
		return fmt.Errorf("%w: cannot initialize while changing tools", toolchanger.ErrInvalidState)
	}

	if t.initInProgress {
		if target == nil {
			return nil
		}
		return t.configureTarget(ctx, target)
	}
	if status == toolchanger.StatusInitializing {
		return fmt.Errorf("%w: already initializing", toolchanger.ErrInvalidState)
	}

	ctx, span := t.tracer.Start(ctx, telemetry.SpanInitialize,
		attribute.String("toolchanger.name", t.name),
		attribute.String("tool.name", targetName(target)),
	)
	start := time.Now()
	t.metrics.IncrementActiveSequences(ctx)
	defer t.metrics.DecrementActiveSequences(ctx)

	if err := t.transition(ctx, toolchanger.StatusInitializing, "initialize"); err != nil {
		span.End(err)
		return err
	}

	t.initInProgress = true
	err := t.runInitialize(ctx, target)
	t.initInProgress = false

	if err == nil {
		err = t.transition(ctx, toolchanger.StatusReady, "initialized")
	}
	d := time.Since(start)
	t.metrics.RecordInitialization(ctx, t.name, err == nil, d)
	span.End(err)
	if err != nil {
		t.fail(ctx, "initialize", err)
		return err
	}

	active := "none"
	number := tool.Unassigned
	if t.active != nil {
		active = t.active.Name()
		number = t.active.Number()
	}
	logging.Info().
		Add(logging.Toolchanger(t.name)).
		Add(logging.ToolName(active)).
		Add(logging.Duration(d)).
		Msg("toolchanger initialized")
	t.publish(ctx, event.TypeInitialized, event.InitializedPayload{
		Tool:     targetName(t.active),
		Number:   number,
		Duration: d,
	})
	t.respond(ctx, "%s initialized, active %s", t.name, active)
	return nil
}

func (t *Toolchanger) runInitialize(ctx context.Context, target *tool.Tool) error {
	if err := t.runHook(ctx, t.initializeHook, toolchanger.StatusInitializing, nil); err != nil {
		return err
	}
	if target != nil {
		return t.configureTarget(ctx, target)
	}
	return nil
}

// configureTarget declares target as the mounted tool: peripherals are
// switched over, the after-change hook runs and the offset is applied.
func (t *Toolchanger) configureTarget(ctx context.Context, target *tool.Tool) error {
	if t.active != nil {
		if err := t.active.Deactivate(ctx, t.toolhead); err != nil {
			return err
		}
	}
	t.active = target
	if err := target.Activate(ctx, t.toolhead); err != nil {
		return err
	}
	if err := t.runHook(ctx, t.afterChangeHook, toolchanger.StatusInitializing, nil); err != nil {
		return err
	}
	return t.applyOffset(ctx, target)
}

func targetName(tl *tool.Tool) string {
	if tl == nil {
		return ""
	}
	return tl.Name()
}
