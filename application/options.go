package application

import (
	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/params"
	"github.com/felixgeelhaar/toolchanger/domain/script"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
)

// Option configures the toolchanger.
type Option func(*Config)

// WithName sets the toolchanger name.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithInitPolicy sets when the toolchanger initializes itself.
func WithInitPolicy(p toolchanger.InitPolicy) Option {
	return func(c *Config) {
		c.Policy = p
	}
}

// WithClearOffset sets whether the offset is zeroed while changing.
func WithClearOffset(clear bool) Option {
	return func(c *Config) {
		c.ClearOffset = clear
	}
}

// WithParams sets the base params every tool inherits.
func WithParams(p params.Map) Option {
	return func(c *Config) {
		c.Params = p
	}
}

// WithHooks sets the initialize, before-change and after-change hooks.
func WithHooks(initialize, beforeChange, afterChange script.Hook) Option {
	return func(c *Config) {
		c.InitializeHook = initialize
		c.BeforeChangeHook = beforeChange
		c.AfterChangeHook = afterChange
	}
}

// WithTool adds a tool. Tools with a non-negative number are assigned at
// construction.
func WithTool(t tool.Config) Option {
	return func(c *Config) {
		c.Tools = append(c.Tools, t)
	}
}

// WithTools adds several tools.
func WithTools(tools ...tool.Config) Option {
	return func(c *Config) {
		c.Tools = append(c.Tools, tools...)
	}
}

// WithScriptRunner sets the hook runner.
func WithScriptRunner(r script.Runner) Option {
	return func(c *Config) {
		c.Runner = r
	}
}

// WithMotion sets the motion controller.
func WithMotion(m motion.Controller) Option {
	return func(c *Config) {
		c.Motion = m
	}
}

// WithToolhead sets the peripheral switching backend.
func WithToolhead(th tool.Toolhead) Option {
	return func(c *Config) {
		c.Toolhead = th
	}
}

// WithPeripherals sets the lookup used by Connect.
func WithPeripherals(l tool.Lookup) Option {
	return func(c *Config) {
		c.Peripherals = l
	}
}

// WithResponder sets where operator messages go.
func WithResponder(r Responder) Option {
	return func(c *Config) {
		c.Responder = r
	}
}

// WithPublisher journals lifecycle events.
func WithPublisher(p event.Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}
