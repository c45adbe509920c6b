package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/script"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
)

// hookContext builds the variables handed to a hook: the extras, the active
// tool snapshot (empty without one) and the toolchanger snapshot.
func (t *Toolchanger) hookContext(extra map[string]any) map[string]any {
	vars := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		vars[k] = v
	}
	if t.active != nil {
		vars["tool"] = t.ToolStatus(t.active).Map()
	} else {
		vars["tool"] = map[string]any{}
	}
	vars["toolchanger"] = t.Status().Map()
	return vars
}

// runHook runs hook and checks that the status is still expected afterwards.
// Empty hooks are skipped.
func (t *Toolchanger) runHook(ctx context.Context, hook script.Hook, expected toolchanger.Status, extra map[string]any) error {
	if hook.IsEmpty() {
		return nil
	}

	ctx, span := t.tracer.Start(ctx, telemetry.SpanHook,
		attribute.String("toolchanger.name", t.name),
		attribute.String("hook.name", hook.Name),
	)
	start := time.Now()

	err := t.runner.Run(ctx, hook, t.hookContext(extra))
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", toolchanger.ErrScriptExecution, hook.Name, err)
	} else if got := t.chart.State(); got != expected {
		err = fmt.Errorf("%w: during %s, status = %s, message = %s",
			toolchanger.ErrUnexpectedStateDrift, hook.Name, got, t.chart.ErrorMessage())
	}

	d := time.Since(start)
	span.End(err)
	t.metrics.RecordHook(ctx, hook.Name, err == nil, d)
	logging.Debug().
		Add(logging.Toolchanger(t.name)).
		Add(logging.Hook(hook.Name)).
		Add(logging.Duration(d)).
		Add(logging.ErrorField(err)).
		Msg("hook finished")
	return err
}

// applyOffset sets the defined offset axes of tl. With a loaded mesh and both
// X and Y defined the mesh is shifted the opposite way.
func (t *Toolchanger) applyOffset(ctx context.Context, tl *tool.Tool) error {
	off := tl.Offset()
	if off.IsEmpty() {
		return nil
	}
	if err := t.motion.SetOffset(ctx, off); err != nil {
		return fmt.Errorf("set offset for %s: %w", tl.Name(), err)
	}
	if off.Has(motion.X) && off.Has(motion.Y) && t.motion.MeshActive(ctx) {
		if err := t.motion.SetMeshOffset(ctx, -*off.X, -*off.Y); err != nil {
			return fmt.Errorf("set mesh offset for %s: %w", tl.Name(), err)
		}
	}
	return nil
}

func nameOrNil(tl *tool.Tool) any {
	if tl == nil {
		return nil
	}
	return tl.Name()
}
