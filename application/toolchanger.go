// Package application orchestrates the toolchanger: the status chart, tool
// registration, and the initialize and tool selection sequences with the
// hooks they run.
package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/params"
	"github.com/felixgeelhaar/toolchanger/domain/script"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/statemachine"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
)

// ErrMissingCollaborator indicates a required collaborator was not configured.
var ErrMissingCollaborator = errors.New("missing collaborator")

// Responder receives operator-facing messages.
type Responder interface {
	Respond(ctx context.Context, msg string)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, msg string)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, msg string) {
	f(ctx, msg)
}

// Config holds toolchanger configuration.
type Config struct {
	Name        string
	Policy      toolchanger.InitPolicy
	ClearOffset bool
	Params      params.Map

	InitializeHook   script.Hook
	BeforeChangeHook script.Hook
	AfterChangeHook  script.Hook

	Tools []tool.Config

	Runner      script.Runner
	Motion      motion.Controller
	Toolhead    tool.Toolhead
	Peripherals tool.Lookup
	Responder   Responder
	Publisher   event.Publisher
	Metrics     telemetry.Metrics
	Tracer      *telemetry.Tracer
}

func defaultConfig() Config {
	return Config{
		Name:        "toolchanger",
		Policy:      toolchanger.InitFirstUse,
		ClearOffset: true,
		Responder:   ResponderFunc(func(context.Context, string) {}),
		Metrics:     &telemetry.NoopMetricsProvider{},
		Tracer:      telemetry.NewNoopTracer(),
	}
}

// Toolchanger owns the tool registry, the active tool and the status chart.
// It performs no locking: callers drive it from a single command thread.
// Goroutines outside that thread read the published Snapshot instead.
type Toolchanger struct {
	name        string
	policy      toolchanger.InitPolicy
	clearOffset bool
	params      params.Map

	initializeHook   script.Hook
	beforeChangeHook script.Hook
	afterChangeHook  script.Hook

	tools    map[string]*tool.Tool
	order    []string
	registry *toolchanger.Registry
	active   *tool.Tool

	chart          *statemachine.Interpreter
	initInProgress bool
	snapshot       atomic.Pointer[Status]

	runner      script.Runner
	motion      motion.Controller
	toolhead    tool.Toolhead
	peripherals tool.Lookup
	responder   Responder
	publisher   event.Publisher
	metrics     telemetry.Metrics
	tracer      *telemetry.Tracer
}

// New creates a toolchanger. Tools configured with a non-negative number are
// assigned right away; a number collision fails construction.
func New(opts ...Option) (*Toolchanger, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case cfg.Runner == nil:
		return nil, fmt.Errorf("%w: script runner", ErrMissingCollaborator)
	case cfg.Motion == nil:
		return nil, fmt.Errorf("%w: motion controller", ErrMissingCollaborator)
	case cfg.Toolhead == nil:
		return nil, fmt.Errorf("%w: toolhead", ErrMissingCollaborator)
	}
	if cfg.Responder == nil {
		cfg.Responder = ResponderFunc(func(context.Context, string) {})
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &telemetry.NoopMetricsProvider{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoopTracer()
	}

	tc := &Toolchanger{
		name:             cfg.Name,
		policy:           cfg.Policy,
		clearOffset:      cfg.ClearOffset,
		params:           cfg.Params,
		initializeHook:   cfg.InitializeHook,
		beforeChangeHook: cfg.BeforeChangeHook,
		afterChangeHook:  cfg.AfterChangeHook,
		tools:            make(map[string]*tool.Tool, len(cfg.Tools)),
		registry:         toolchanger.NewRegistry(),
		runner:           cfg.Runner,
		motion:           cfg.Motion,
		toolhead:         cfg.Toolhead,
		peripherals:      cfg.Peripherals,
		responder:        cfg.Responder,
		publisher:        cfg.Publisher,
		metrics:          cfg.Metrics,
		tracer:           cfg.Tracer,
	}

	chart, err := statemachine.New(tc.name, tc.onTransition)
	if err != nil {
		return nil, err
	}
	tc.chart = chart

	for _, tcfg := range cfg.Tools {
		if _, dup := tc.tools[tcfg.Name]; dup {
			return nil, fmt.Errorf("%w: tool %s configured twice", toolchanger.ErrInvalidArgument, tcfg.Name)
		}
		number := tcfg.Number
		tcfg.Toolchanger = tc.name
		tcfg.BaseParams = tc.params
		tcfg.Number = tool.Unassigned
		t, err := tool.New(tcfg)
		if err != nil {
			return nil, err
		}
		tc.tools[t.Name()] = t
		tc.order = append(tc.order, t.Name())

		if number >= 0 {
			if _, err := tc.registry.Assign(t, number, tool.Unassigned, false); err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name(), err)
			}
			t.SetNumber(number)
		}
	}

	tc.refreshSnapshot()
	return tc, nil
}

// Connect resolves the peripheral bindings of every tool. Unknown names are
// logged and left unbound.
func (t *Toolchanger) Connect(ctx context.Context) {
	if t.peripherals == nil {
		return
	}
	for _, name := range t.order {
		for _, missing := range t.tools[name].Connect(t.peripherals) {
			logging.Warn().
				Add(logging.Toolchanger(t.name)).
				Add(logging.ToolName(name)).
				Add(logging.Str("peripheral", missing)).
				Msg("peripheral not found, binding skipped")
		}
	}
}

// Name returns the toolchanger name.
func (t *Toolchanger) Name() string { return t.name }

// Policy returns the initialization policy.
func (t *Toolchanger) Policy() toolchanger.InitPolicy { return t.policy }

// State returns the current status.
func (t *Toolchanger) State() toolchanger.Status { return t.chart.State() }

// ActiveTool returns the active tool, or nil.
func (t *Toolchanger) ActiveTool() *tool.Tool { return t.active }

// Tools returns every configured tool in configuration order.
func (t *Toolchanger) Tools() []*tool.Tool {
	out := make([]*tool.Tool, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.tools[name])
	}
	return out
}

// LookupTool returns the tool assigned to number, or nil.
func (t *Toolchanger) LookupTool(number int) *tool.Tool {
	return t.registry.Lookup(number)
}

// ToolByNumber returns the tool assigned to number.
func (t *Toolchanger) ToolByNumber(number int) (*tool.Tool, error) {
	if tl := t.registry.Lookup(number); tl != nil {
		return tl, nil
	}
	return nil, fmt.Errorf("%w: T%d", toolchanger.ErrToolNotFound, number)
}

// ToolByName returns the configured tool called name.
func (t *Toolchanger) ToolByName(name string) (*tool.Tool, error) {
	if tl, ok := t.tools[name]; ok {
		return tl, nil
	}
	return nil, fmt.Errorf("%w: %s", toolchanger.ErrToolNotFound, name)
}

// ToolStatus snapshots tl, marking it active when it is the active tool.
func (t *Toolchanger) ToolStatus(tl *tool.Tool) tool.Status {
	return tl.Status(tl == t.active)
}

// HandleHomingStarted initializes the toolchanger when the policy asks for
// initialization on homing and it has not been initialized yet.
func (t *Toolchanger) HandleHomingStarted(ctx context.Context) error {
	if t.policy != toolchanger.InitOnHome || t.chart.State() != toolchanger.StatusUninitialized {
		return nil
	}
	return t.Initialize(ctx, nil)
}

func (t *Toolchanger) respond(ctx context.Context, format string, args ...any) {
	t.responder.Respond(ctx, fmt.Sprintf(format, args...))
}
