// Package tool provides the Tool entity: one interchangeable tool unit with
// its number, offsets, peripheral bindings and parameters.
package tool

import (
	"fmt"

	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/params"
	"github.com/felixgeelhaar/toolchanger/domain/script"
)

// Unassigned is the tool number of a tool without a registry slot.
const Unassigned = -1

// DefaultRestoreAxis is the restore axis used by T<n> shortcuts unless
// configured otherwise.
const DefaultRestoreAxis = "XYZ"

// Config describes a tool at construction time.
type Config struct {
	Name        string
	Toolchanger string
	Number      int

	Offset motion.Partial

	Extruder        string
	ExtruderStepper string
	Fan             string

	// BaseParams are the owning toolchanger's params; Params override them.
	BaseParams params.Map
	Params     params.Map

	RestoreAxis string

	Pickup  script.Hook
	Dropoff script.Hook
}

// Tool is one tool unit. Peripheral handles are resolved lazily by Connect.
type Tool struct {
	name        string
	toolchanger string
	number      int

	offset motion.Partial

	extruderName        string
	extruderStepperName string
	fanName             string

	extruder        Peripheral
	extruderStepper Peripheral
	fan             Peripheral
	connected       bool

	params      params.Map
	restoreAxis string

	pickup  script.Hook
	dropoff script.Hook
}

// New validates cfg and creates a tool.
func New(cfg Config) (*Tool, error) {
	if cfg.Name == "" {
		return nil, ErrEmptyName
	}
	if cfg.Number < Unassigned {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNumber, cfg.Number)
	}
	restore := cfg.RestoreAxis
	if restore == "" {
		restore = DefaultRestoreAxis
	}
	if err := motion.ValidateAxes(restore); err != nil {
		return nil, fmt.Errorf("tool %s: %w", cfg.Name, err)
	}

	return &Tool{
		name:                cfg.Name,
		toolchanger:         cfg.Toolchanger,
		number:              cfg.Number,
		offset:              cfg.Offset,
		extruderName:        cfg.Extruder,
		extruderStepperName: cfg.ExtruderStepper,
		fanName:             cfg.Fan,
		params:              params.Merge(cfg.BaseParams, cfg.Params),
		restoreAxis:         restore,
		pickup:              cfg.Pickup,
		dropoff:             cfg.Dropoff,
	}, nil
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// Toolchanger returns the name of the owning toolchanger.
func (t *Tool) Toolchanger() string { return t.toolchanger }

// Number returns the assigned tool number or Unassigned.
func (t *Tool) Number() int { return t.number }

// SetNumber records the tool's registry number. Registry bookkeeping is the
// toolchanger's job; this only updates the entity.
func (t *Tool) SetNumber(n int) { t.number = n }

// Offset returns the configured coordinate offset.
func (t *Tool) Offset() motion.Partial { return t.offset }

// Params returns the effective parameters (toolchanger params overlaid with
// the tool's own).
func (t *Tool) Params() params.Map { return t.params }

// RestoreAxis returns the default restore axis of the tool's T<n> shortcut.
func (t *Tool) RestoreAxis() string { return t.restoreAxis }

// PickupHook returns the hook run after the tool is mounted.
func (t *Tool) PickupHook() script.Hook { return t.pickup }

// DropoffHook returns the hook run before the tool is parked.
func (t *Tool) DropoffHook() script.Hook { return t.dropoff }

// Extruder returns the configured extruder name.
func (t *Tool) Extruder() string { return t.extruderName }

// ExtruderStepper returns the configured secondary stepper name.
func (t *Tool) ExtruderStepper() string { return t.extruderStepperName }

// Fan returns the configured fan name.
func (t *Tool) Fan() string { return t.fanName }

// Connect resolves the peripheral bindings once. Later calls are no-ops.
// It returns the configured names that could not be resolved.
func (t *Tool) Connect(lookup Lookup) []string {
	if t.connected {
		return nil
	}
	t.connected = true

	var missing []string
	resolve := func(name string) Peripheral {
		if name == "" {
			return nil
		}
		p, ok := lookup.Lookup(name)
		if !ok {
			missing = append(missing, name)
			return nil
		}
		return p
	}

	t.extruder = resolve(t.extruderName)
	t.extruderStepper = resolve(t.extruderStepperName)
	t.fan = resolve(t.fanName)
	return missing
}

// Connected reports whether Connect has run.
func (t *Tool) Connected() bool { return t.connected }
