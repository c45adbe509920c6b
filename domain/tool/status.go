package tool

import (
	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/params"
)

// Status is a point-in-time snapshot of a tool.
type Status struct {
	Name            string     `json:"name"`
	Toolchanger     string     `json:"toolchanger"`
	Number          int        `json:"tool_number"`
	Extruder        string     `json:"extruder,omitempty"`
	ExtruderStepper string     `json:"extruder_stepper,omitempty"`
	Fan             string     `json:"fan,omitempty"`
	Active          bool       `json:"active"`
	OffsetX         float64    `json:"gcode_x_offset"`
	OffsetY         float64    `json:"gcode_y_offset"`
	OffsetZ         float64    `json:"gcode_z_offset"`
	Params          params.Map `json:"params"`
}

// Status snapshots the tool. active is supplied by the caller, which owns the
// active-tool slot.
func (t *Tool) Status(active bool) Status {
	return Status{
		Name:            t.name,
		Toolchanger:     t.toolchanger,
		Number:          t.number,
		Extruder:        t.extruderName,
		ExtruderStepper: t.extruderStepperName,
		Fan:             t.fanName,
		Active:          active,
		OffsetX:         t.offset.ValueOrZero(motion.X),
		OffsetY:         t.offset.ValueOrZero(motion.Y),
		OffsetZ:         t.offset.ValueOrZero(motion.Z),
		Params:          t.params,
	}
}

// Map flattens the snapshot into the hook context shape, params last.
func (s Status) Map() map[string]any {
	m := map[string]any{
		"name":             s.Name,
		"toolchanger":      s.Toolchanger,
		"tool_number":      s.Number,
		"extruder":         nilIfEmpty(s.Extruder),
		"extruder_stepper": nilIfEmpty(s.ExtruderStepper),
		"fan":              nilIfEmpty(s.Fan),
		"active":           s.Active,
		"gcode_x_offset":   s.OffsetX,
		"gcode_y_offset":   s.OffsetY,
		"gcode_z_offset":   s.OffsetZ,
	}
	for k, v := range s.Params.ToMap() {
		m[k] = v
	}
	return m
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
