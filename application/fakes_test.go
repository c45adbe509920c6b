package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/script"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
)

// recorder collects the commands issued by every fake in order.
type recorder struct {
	log []string
}

func (r *recorder) add(format string, args ...any) {
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

func (r *recorder) reset() {
	r.log = nil
}

type fakePeripheral string

func (p fakePeripheral) Name() string { return string(p) }

// fakeMachine implements motion.Controller, tool.Toolhead and tool.Lookup.
type fakeMachine struct {
	rec         *recorder
	pos         motion.Position
	mesh        bool
	extruder    string
	fan         string
	queues      map[string]string
	peripherals map[string]bool
}

func newFakeMachine(rec *recorder, peripherals ...string) *fakeMachine {
	m := &fakeMachine{
		rec:         rec,
		queues:      make(map[string]string),
		peripherals: make(map[string]bool),
	}
	for _, p := range peripherals {
		m.peripherals[p] = true
	}
	return m
}

func (m *fakeMachine) Position(context.Context) (motion.Position, error) { return m.pos, nil }

func (m *fakeMachine) SaveState(_ context.Context, name string) error {
	m.rec.add("SAVE %s", name)
	return nil
}

func (m *fakeMachine) RestoreState(_ context.Context, name string, move bool) error {
	m.rec.add("RESTORE %s MOVE=%t", name, move)
	return nil
}

func (m *fakeMachine) SetOffset(_ context.Context, p motion.Partial) error {
	m.rec.add("OFFSET %s", p)
	return nil
}

func (m *fakeMachine) MeshActive(context.Context) bool { return m.mesh }

func (m *fakeMachine) SetMeshOffset(_ context.Context, x, y float64) error {
	m.rec.add("MESH X=%g Y=%g", x, y)
	return nil
}

func (m *fakeMachine) Move(_ context.Context, p motion.Partial) error {
	m.rec.add("MOVE %s", p)
	return nil
}

func (m *fakeMachine) ActiveExtruder() string { return m.extruder }

func (m *fakeMachine) ActivateExtruder(_ context.Context, name string) error {
	m.rec.add("EXTRUDER %s", name)
	m.extruder = name
	return nil
}

func (m *fakeMachine) StepperQueue(stepper string) string { return m.queues[stepper] }

func (m *fakeMachine) SyncExtruderMotion(_ context.Context, stepper, queue string) error {
	m.rec.add("SYNC %s TO %q", stepper, queue)
	m.queues[stepper] = queue
	return nil
}

func (m *fakeMachine) ActiveFan() string { return m.fan }

func (m *fakeMachine) ActivateFan(_ context.Context, name string) error {
	m.rec.add("FAN %s", name)
	m.fan = name
	return nil
}

func (m *fakeMachine) Lookup(name string) (tool.Peripheral, bool) {
	if !m.peripherals[name] {
		return nil, false
	}
	return fakePeripheral(name), true
}

// fakeRunner records hook sources and runs an optional callback per source.
type fakeRunner struct {
	rec       *recorder
	callbacks map[string]func(ctx context.Context, vars map[string]any) error
	vars      map[string]map[string]any
}

func newFakeRunner(rec *recorder) *fakeRunner {
	return &fakeRunner{
		rec:       rec,
		callbacks: make(map[string]func(context.Context, map[string]any) error),
		vars:      make(map[string]map[string]any),
	}
}

func (r *fakeRunner) on(source string, fn func(ctx context.Context, vars map[string]any) error) {
	r.callbacks[source] = fn
}

func (r *fakeRunner) Run(ctx context.Context, hook script.Hook, vars map[string]any) error {
	r.rec.add("HOOK %s", hook.Source)
	r.vars[hook.Source] = vars
	if fn, ok := r.callbacks[hook.Source]; ok {
		return fn(ctx, vars)
	}
	return nil
}

type fakePublisher struct {
	events []event.Event
}

func (p *fakePublisher) Publish(_ context.Context, events ...event.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []event.Type {
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	tc        *Toolchanger
	rec       *recorder
	machine   *fakeMachine
	runner    *fakeRunner
	publisher *fakePublisher
	responses []string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{rec: &recorder{}, publisher: &fakePublisher{}}
	h.machine = newFakeMachine(h.rec, "extruder", "extruder1", "stepper1", "fan0", "fan1")
	h.runner = newFakeRunner(h.rec)

	base := []Option{
		WithScriptRunner(h.runner),
		WithMotion(h.machine),
		WithToolhead(h.machine),
		WithPeripherals(h.machine),
		WithPublisher(h.publisher),
		WithResponder(ResponderFunc(func(_ context.Context, msg string) {
			h.responses = append(h.responses, msg)
		})),
	}
	tc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tc.Connect(context.Background())
	h.tc = tc
	return h
}

func (h *harness) tool(t *testing.T, name string) *tool.Tool {
	t.Helper()
	tl, err := h.tc.ToolByName(name)
	if err != nil {
		t.Fatalf("ToolByName(%s) error = %v", name, err)
	}
	return tl
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	if err := h.tc.Initialize(context.Background(), nil); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	h.rec.reset()
	h.responses = nil
}

func hook(name, source string) script.Hook {
	return script.NewHook(name, source)
}

func toolA() tool.Config {
	return tool.Config{
		Name:    "A",
		Number:  0,
		Offset:  motion.Partial{X: motion.Float(1), Y: motion.Float(2)},
		Pickup:  hook("pickup_gcode", "pickup A"),
		Dropoff: hook("dropoff_gcode", "dropoff A"),
	}
}

func toolB() tool.Config {
	return tool.Config{
		Name:    "B",
		Number:  1,
		Fan:     "fan1",
		Pickup:  hook("pickup_gcode", "pickup B"),
		Dropoff: hook("dropoff_gcode", "dropoff B"),
	}
}
