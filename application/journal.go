package application

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// transition moves the status chart and journals the change.
func (t *Toolchanger) transition(ctx context.Context, to toolchanger.Status, reason string) error {
	from := t.chart.State()
	if err := t.chart.Transition(to, reason); err != nil {
		return fmt.Errorf("%w: %w", toolchanger.ErrInvalidState, err)
	}
	t.publish(ctx, event.TypeStatusTransitioned, event.StatusTransitionedPayload{
		From:   from,
		To:     to,
		Reason: reason,
	})
	return nil
}

// onTransition runs inside the chart action for every status change.
func (t *Toolchanger) onTransition(from, to toolchanger.Status, reason string) {
	logging.Debug().
		Add(logging.Toolchanger(t.name)).
		Add(logging.FromStatus(from)).
		Add(logging.ToStatus(to)).
		Add(logging.Reason(reason)).
		Msg("status transition")
	t.metrics.RecordStatusTransition(context.Background(), t.name, string(from), string(to))
}

// fail records a mid-sequence failure. A sequence left busy moves to error so
// that only an explicit initialize recovers; a status already changed by a
// hook is kept.
func (t *Toolchanger) fail(ctx context.Context, op string, err error) {
	if t.chart.State().IsBusy() {
		if terr := t.transition(ctx, toolchanger.StatusError, err.Error()); terr != nil {
			logging.Warn().
				Add(logging.Toolchanger(t.name)).
				Add(logging.ErrorField(terr)).
				Msg("failed to record error status")
		}
	}

	status := t.chart.State()
	logging.Error().
		Add(logging.Toolchanger(t.name)).
		Add(logging.Operation(op)).
		Add(logging.Status(status)).
		Add(logging.ErrorField(err)).
		Msg("sequence failed")
	t.metrics.RecordError(ctx, op, map[string]string{
		"toolchanger.name": t.name,
		"status":           string(status),
	})
	t.publish(ctx, event.TypeFailed, event.FailedPayload{
		Operation: op,
		Status:    status,
		Error:     err.Error(),
	})
}

// publish refreshes the snapshot, then journals an event. Sinks reading the
// snapshot while the event is delivered see the state it describes.
func (t *Toolchanger) publish(ctx context.Context, typ event.Type, payload any) {
	t.refreshSnapshot()
	if t.publisher == nil {
		return
	}
	e, err := event.NewEvent(t.name, typ, payload)
	if err == nil {
		err = t.publisher.Publish(ctx, e)
	}
	if err != nil {
		logging.Warn().
			Add(logging.Toolchanger(t.name)).
			Add(logging.Str("event_type", string(typ))).
			Add(logging.ErrorField(err)).
			Msg("failed to journal event")
	}
}
