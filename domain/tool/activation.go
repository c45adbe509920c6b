package tool

import (
	"context"
	"fmt"
)

// Activate binds the tool's peripherals on th. Every step is skipped when the
// requested peripheral is already the active one.
//
// With a secondary stepper the active extruder's own stepper is detached from
// its queue before the tool's stepper is attached to it.
func (t *Tool) Activate(ctx context.Context, th Toolhead) error {
	if t.extruderName != "" && t.extruderName != th.ActiveExtruder() {
		if err := th.ActivateExtruder(ctx, t.extruderName); err != nil {
			return fmt.Errorf("activate extruder %s: %w", t.extruderName, err)
		}
	}

	hotend := th.ActiveExtruder()
	if t.extruderStepper != nil && hotend != "" && th.StepperQueue(t.extruderStepperName) != hotend {
		if err := th.SyncExtruderMotion(ctx, hotend, ""); err != nil {
			return fmt.Errorf("detach %s: %w", hotend, err)
		}
		if err := th.SyncExtruderMotion(ctx, t.extruderStepperName, hotend); err != nil {
			return fmt.Errorf("sync %s to %s: %w", t.extruderStepperName, hotend, err)
		}
	}

	if t.fan != nil && t.fanName != th.ActiveFan() {
		if err := th.ActivateFan(ctx, t.fanName); err != nil {
			return fmt.Errorf("activate fan %s: %w", t.fanName, err)
		}
	}
	return nil
}

// Deactivate detaches the tool's secondary stepper and hands the queue back
// to the active extruder's own stepper.
func (t *Tool) Deactivate(ctx context.Context, th Toolhead) error {
	if t.extruderStepper == nil {
		return nil
	}

	if err := th.SyncExtruderMotion(ctx, t.extruderStepperName, ""); err != nil {
		return fmt.Errorf("detach %s: %w", t.extruderStepperName, err)
	}
	if hotend := th.ActiveExtruder(); hotend != "" {
		if err := th.SyncExtruderMotion(ctx, hotend, hotend); err != nil {
			return fmt.Errorf("resync %s: %w", hotend, err)
		}
	}
	return nil
}
