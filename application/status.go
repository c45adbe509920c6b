package application

import (
	"github.com/felixgeelhaar/toolchanger/domain/params"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

// Status is a point-in-time snapshot of the toolchanger.
type Status struct {
	Name         string             `json:"name"`
	Status       toolchanger.Status `json:"status"`
	Tool         string             `json:"tool,omitempty"`
	ToolNumber   int                `json:"tool_number"`
	ToolNumbers  []int              `json:"tool_numbers"`
	ToolNames    []string           `json:"tool_names"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Params       params.Map         `json:"params"`
}

// Status snapshots the toolchanger. It reads live state and must be called
// from the command thread; other goroutines use Snapshot.
func (t *Toolchanger) Status() Status {
	s := Status{
		Name:        t.name,
		Status:      t.chart.State(),
		ToolNumber:  tool.Unassigned,
		ToolNumbers: t.registry.Numbers(),
		ToolNames:   t.registry.Names(),
		Params:      t.params,
	}
	if t.active != nil {
		s.Tool = t.active.Name()
		s.ToolNumber = t.active.Number()
	}
	if s.Status == toolchanger.StatusError {
		s.ErrorMessage = t.chart.ErrorMessage()
	}
	return s
}

// Snapshot returns the status as of the last completed state change. It is
// safe to call from any goroutine.
func (t *Toolchanger) Snapshot() Status {
	if s := t.snapshot.Load(); s != nil {
		return *s
	}
	return Status{Name: t.name, Status: toolchanger.StatusUninitialized, ToolNumber: tool.Unassigned}
}

// refreshSnapshot publishes the current status for Snapshot readers. Every
// state change on the command thread ends with a refresh.
func (t *Toolchanger) refreshSnapshot() {
	s := t.Status()
	s.Params = s.Params.Clone()
	t.snapshot.Store(&s)
}

// Map flattens the snapshot into the hook context shape, params last.
func (s Status) Map() map[string]any {
	m := map[string]any{
		"name":          s.Name,
		"status":        string(s.Status),
		"tool":          nil,
		"tool_number":   s.ToolNumber,
		"tool_numbers":  s.ToolNumbers,
		"tool_names":    s.ToolNames,
		"error_message": s.ErrorMessage,
	}
	if s.Tool != "" {
		m["tool"] = s.Tool
	}
	for k, v := range s.Params.ToMap() {
		m[k] = v
	}
	return m
}
