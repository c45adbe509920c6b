package config

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/toolchanger/application"
	"github.com/felixgeelhaar/toolchanger/domain/config"
	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/params"
	"github.com/felixgeelhaar/toolchanger/domain/script"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/machine"
	"github.com/felixgeelhaar/toolchanger/infrastructure/mqtt"
	infrascript "github.com/felixgeelhaar/toolchanger/infrastructure/script"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/badger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/memory"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/dynamodb"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/mongodb"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/redis"
	"github.com/felixgeelhaar/toolchanger/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
)

// Hook names as they appear in logs and configuration.
const (
	HookInitialize   = "initialize_gcode"
	HookBeforeChange = "before_change_gcode"
	HookAfterChange  = "after_change_gcode"
	HookPickup       = "pickup_gcode"
	HookDropoff      = "dropoff_gcode"
)

// Journal drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongoDB  = "mongodb"
	DriverDynamoDB = "dynamodb"
)

// JournalStore is a queryable event store.
type JournalStore interface {
	event.Store
	event.Querier
	Close() error
}

// Builder turns a loaded configuration into runtime objects.
type Builder struct {
	config *config.Config
}

// NewBuilder creates a new configuration builder.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{config: cfg}
}

// BuildResult contains the parts of the toolchanger described by the file.
type BuildResult struct {
	// Options configure application.New; collaborators are added by the caller.
	Options []application.Option
	// Tools are the tool configs after defaults were applied.
	Tools []tool.Config
	// Policy is the parsed initialize policy.
	Policy toolchanger.InitPolicy
	// Params are the parsed toolchanger params.
	Params params.Map
	// Runner holds every hook already compiled. It has no executor; the
	// caller sets one before the toolchanger runs a hook.
	Runner *infrascript.Runner
}

// Build parses policies, params and hooks and produces the toolchanger
// options. Failures wrap config.ErrBuildFailed.
func (b *Builder) Build() (*BuildResult, error) {
	tc := b.config.Toolchanger

	policy, err := toolchanger.ParseInitPolicy(tc.InitializeOn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrBuildFailed, err)
	}

	base, err := parseParams(tc.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: toolchanger: %w", config.ErrBuildFailed, err)
	}

	tools := make([]tool.Config, 0, len(b.config.Tools))
	for _, t := range b.config.Tools {
		cfg, err := b.buildTool(t)
		if err != nil {
			return nil, fmt.Errorf("%w: tool %s: %w", config.ErrBuildFailed, t.Name, err)
		}
		tools = append(tools, cfg)
	}

	initialize := script.NewHook(HookInitialize, tc.InitializeGcode)
	beforeChange := script.NewHook(HookBeforeChange, tc.BeforeChangeGcode)
	afterChange := script.NewHook(HookAfterChange, tc.AfterChangeGcode)

	runner := infrascript.NewRunner(nil)
	if errs := compileHooks(runner, []script.Hook{initialize, beforeChange, afterChange}, tools); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %w", config.ErrBuildFailed, errs)
	}

	result := &BuildResult{
		Tools:  tools,
		Policy: policy,
		Params: base,
		Runner: runner,
	}
	result.Options = []application.Option{
		application.WithName(tc.Name),
		application.WithInitPolicy(policy),
		application.WithClearOffset(tc.ClearOffset()),
		application.WithParams(base),
		application.WithHooks(initialize, beforeChange, afterChange),
		application.WithTools(tools...),
	}
	return result, nil
}

// compileHooks parses every non-empty hook so a malformed template fails the
// build instead of the first tool change that runs it.
func compileHooks(runner *infrascript.Runner, toolchangerHooks []script.Hook, tools []tool.Config) config.ValidationErrors {
	var errs config.ValidationErrors
	check := func(path string, h script.Hook) {
		if h.IsEmpty() {
			return
		}
		if err := runner.Compile(h); err != nil {
			errs = append(errs, config.ValidationError{Path: path, Message: err.Error()})
		}
	}
	for _, h := range toolchangerHooks {
		check("toolchanger."+h.Name, h)
	}
	for _, t := range tools {
		check(fmt.Sprintf("tools.%s.%s", t.Name, HookPickup), t.Pickup)
		check(fmt.Sprintf("tools.%s.%s", t.Name, HookDropoff), t.Dropoff)
	}
	return errs
}

func (b *Builder) buildTool(tc config.ToolConfig) (tool.Config, error) {
	opts := tc.ToolOptions.WithDefaults(b.config.Toolchanger.ToolDefaults)

	p, err := parseParams(tc.Params)
	if err != nil {
		return tool.Config{}, err
	}

	number := tool.Unassigned
	if tc.ToolNumber != nil {
		number = *tc.ToolNumber
	}

	return tool.Config{
		Name:   tc.Name,
		Number: number,
		Offset: motion.Partial{
			X: opts.GcodeXOffset,
			Y: opts.GcodeYOffset,
			Z: opts.GcodeZOffset,
		},
		Extruder:        opts.Extruder,
		ExtruderStepper: opts.ExtruderStepper,
		Fan:             opts.Fan,
		Params:          p,
		RestoreAxis:     opts.RestoreAxis,
		Pickup:          script.NewHook(HookPickup, opts.PickupGcode),
		Dropoff:         script.NewHook(HookDropoff, opts.DropoffGcode),
	}, nil
}

func parseParams(raw config.RawParams) (params.Map, error) {
	m, err := params.ParseAll(raw.Keys(), raw.Values())
	if err != nil {
		return params.Map{}, fmt.Errorf("%w: %w", config.ErrInvalidParam, err)
	}
	return m, nil
}

// LoggingConfig returns the logger configuration.
func (b *Builder) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = b.config.Logging.Level
	cfg.Format = b.config.Logging.Format
	return cfg
}

// MachineConfig returns the simulated machine configuration.
func (b *Builder) MachineConfig() machine.Config {
	m := b.config.Machine
	return machine.Config{
		Extruders:  m.Extruders,
		Steppers:   m.Steppers,
		Fans:       m.Fans,
		MeshActive: m.MeshActive,
	}
}

// MQTTConfig returns the broker configuration and whether publishing is on.
func (b *Builder) MQTTConfig() (mqtt.Config, bool) {
	m := b.config.MQTT
	return mqtt.Config{
		Broker:      m.Broker,
		TopicPrefix: m.TopicPrefix,
		ClientID:    m.ClientID,
		Username:    m.Username,
		Password:    m.Password,
		KeepAlive:   m.KeepAlive.Duration(),
	}, m.Enabled
}

// TelemetryConfig returns the trace provider configuration. Tracing turned
// off maps to the none exporter.
func (b *Builder) TelemetryConfig(serviceVersion string) telemetry.ProviderConfig {
	t := b.config.Telemetry
	cfg := telemetry.ProviderConfig{
		ServiceName:    b.config.Toolchanger.Name,
		ServiceVersion: serviceVersion,
		Exporter:       telemetry.ExporterType(t.Exporter),
		Endpoint:       t.Endpoint,
		Insecure:       t.Insecure,
		SampleRate:     1.0,
	}
	if t.SampleRate != nil {
		cfg.SampleRate = *t.SampleRate
	}
	if !t.TracingEnabled() {
		cfg.Exporter = telemetry.ExporterNone
	}
	return cfg
}

// Metrics returns the OpenTelemetry metrics provider, or a no-op provider
// when metrics are disabled.
func (b *Builder) Metrics() telemetry.Metrics {
	if !b.config.Telemetry.MetricsEnabled() {
		return &telemetry.NoopMetricsProvider{}
	}
	return telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
}

// OpenJournal opens the journal store named by the journal driver.
func (b *Builder) OpenJournal(ctx context.Context) (JournalStore, error) {
	j := b.config.Journal
	switch j.Driver {
	case DriverMemory, "":
		return memory.NewEventStore(), nil

	case DriverSQLite:
		store, err := sqlite.NewEventStore(sqlite.ConfigFromDSN(j.DSN))
		if err != nil {
			return nil, err
		}
		return store, nil

	case DriverBadger:
		cfg, err := badger.ConfigFromDSN(j.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrBuildFailed, err)
		}
		store, err := badger.NewEventStore(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.DefaultConfig(), postgres.WithDSN(j.DSN))
		if err != nil {
			return nil, err
		}
		store := postgres.NewEventStore(pool, "")
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case DriverRedis:
		cfg, err := redis.ConfigFromDSN(j.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrBuildFailed, err)
		}
		store, err := redis.NewEventStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil

	case DriverMongoDB:
		client, err := mongodb.NewClient(ctx, mongodb.WithURI(j.DSN))
		if err != nil {
			return nil, err
		}
		if err := client.CreateIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return mongodb.NewEventStore(client), nil

	case DriverDynamoDB:
		cfg, err := dynamodb.ConfigFromDSN(j.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrBuildFailed, err)
		}
		client, err := dynamodb.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := client.CreateTable(ctx); err != nil {
			return nil, err
		}
		return dynamodb.NewEventStore(client), nil

	default:
		return nil, fmt.Errorf("%w: unknown journal driver %q", config.ErrBuildFailed, j.Driver)
	}
}
