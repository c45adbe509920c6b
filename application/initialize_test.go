package application

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
)

func TestInitialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		opts         []Option
		target       string
		wantResponse string
		wantLog      []string
	}{
		{
			name:         "no target",
			opts:         []Option{WithTools(toolA())},
			wantResponse: "toolchanger initialized, active none",
		},
		{
			name:         "named toolchanger",
			opts:         []Option{WithName("left"), WithTools(toolA())},
			wantResponse: "left initialized, active none",
		},
		{
			name:         "with target",
			opts:         []Option{WithHooks(hook("initialize_gcode", "init"), hook("before_change_gcode", "before"), hook("after_change_gcode", "after")), WithTools(toolA())},
			target:       "A",
			wantResponse: "toolchanger initialized, active A",
			wantLog:      []string{"HOOK init", "HOOK after", "OFFSET X=1.000000 Y=2.000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tt.opts...)
			ctx := context.Background()

			var err error
			if tt.target != "" {
				err = h.tc.Initialize(ctx, h.tool(t, tt.target))
			} else {
				err = h.tc.Initialize(ctx, nil)
			}
			if err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}
			if h.tc.State() != toolchanger.StatusReady {
				t.Errorf("State() = %s, want ready", h.tc.State())
			}
			if !reflect.DeepEqual(h.responses, []string{tt.wantResponse}) {
				t.Errorf("responses = %v, want [%s]", h.responses, tt.wantResponse)
			}
			if !reflect.DeepEqual(h.rec.log, tt.wantLog) {
				t.Errorf("log = %v, want %v", h.rec.log, tt.wantLog)
			}
			want := []event.Type{event.TypeStatusTransitioned, event.TypeStatusTransitioned, event.TypeInitialized}
			if got := h.publisher.types(); !reflect.DeepEqual(got, want) {
				t.Errorf("events = %v, want %v", got, want)
			}
		})
	}
}

func TestInitialize_ReentrantFromHook(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		WithHooks(hook("initialize_gcode", "init"), hook("before_change_gcode", ""), hook("after_change_gcode", "")),
		WithTools(toolA(), toolB()),
	)
	calls := 0
	h.runner.on("init", func(ctx context.Context, _ map[string]any) error {
		calls++
		// Declares the mounted tool without a tool change.
		return h.tc.Initialize(ctx, h.tool(t, "B"))
	})

	if err := h.tc.Initialize(context.Background(), nil); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("initialize hook ran %d times, want 1", calls)
	}
	if h.tc.ActiveTool() != h.tool(t, "B") {
		t.Errorf("active = %v, want B", h.tc.ActiveTool())
	}
	if want := []string{"toolchanger initialized, active B"}; !reflect.DeepEqual(h.responses, want) {
		t.Errorf("responses = %v, want %v", h.responses, want)
	}
	if want := []string{"HOOK init", "FAN fan1"}; !reflect.DeepEqual(h.rec.log, want) {
		t.Errorf("log = %v, want %v", h.rec.log, want)
	}

	initialized := 0
	for _, typ := range h.publisher.types() {
		if typ == event.TypeInitialized {
			initialized++
		}
	}
	if initialized != 1 {
		t.Errorf("initialized events = %d, want 1", initialized)
	}
}

func TestInitialize_InvalidState(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		WithHooks(hook("initialize_gcode", ""), hook("before_change_gcode", "before"), hook("after_change_gcode", "")),
		WithTools(toolA()),
	)
	h.initialize(t)

	var innerErr error
	h.runner.on("before", func(ctx context.Context, _ map[string]any) error {
		innerErr = h.tc.Initialize(ctx, nil)
		return nil
	})

	if err := h.tc.SelectTool(context.Background(), h.tool(t, "A"), ""); err != nil {
		t.Fatalf("SelectTool() error = %v", err)
	}
	if !errors.Is(innerErr, toolchanger.ErrInvalidState) {
		t.Errorf("Initialize() while changing = %v, want ErrInvalidState", innerErr)
	}
}

func TestInitialize_HookFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		WithHooks(hook("initialize_gcode", "init"), hook("before_change_gcode", ""), hook("after_change_gcode", "")),
		WithTools(toolA()),
	)
	h.runner.on("init", func(context.Context, map[string]any) error {
		return errors.New("probe not found")
	})

	err := h.tc.Initialize(context.Background(), nil)
	if !errors.Is(err, toolchanger.ErrScriptExecution) {
		t.Fatalf("Initialize() error = %v, want ErrScriptExecution", err)
	}
	if h.tc.State() != toolchanger.StatusError {
		t.Errorf("State() = %s, want error", h.tc.State())
	}
	if len(h.responses) != 0 {
		t.Errorf("responses = %v, want none", h.responses)
	}

	// A second attempt with a working hook recovers.
	h.runner.on("init", func(context.Context, map[string]any) error { return nil })
	if err := h.tc.Initialize(context.Background(), nil); err != nil {
		t.Fatalf("recovery Initialize() error = %v", err)
	}
	if h.tc.State() != toolchanger.StatusReady {
		t.Errorf("State() = %s, want ready", h.tc.State())
	}
}

func TestInitialize_AbortFromHook(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		WithHooks(hook("initialize_gcode", "init"), hook("before_change_gcode", ""), hook("after_change_gcode", "")),
	)
	h.runner.on("init", func(ctx context.Context, _ map[string]any) error {
		return h.tc.Abort(ctx, "no tool detected")
	})

	err := h.tc.Initialize(context.Background(), nil)
	if !errors.Is(err, toolchanger.ErrUnexpectedStateDrift) {
		t.Fatalf("Initialize() error = %v, want ErrUnexpectedStateDrift", err)
	}
	s := h.tc.Status()
	if s.Status != toolchanger.StatusError || s.ErrorMessage != "no tool detected" {
		t.Errorf("status = %s/%q", s.Status, s.ErrorMessage)
	}
	if types := h.publisher.types(); !containsType(types, event.TypeAborted) {
		t.Errorf("events = %v, want aborted", types)
	}
}

func containsType(types []event.Type, want event.Type) bool {
	for _, typ := range types {
		if typ == want {
			return true
		}
	}
	return false
}
