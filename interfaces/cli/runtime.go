package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/felixgeelhaar/toolchanger/application"
	domainconfig "github.com/felixgeelhaar/toolchanger/domain/config"
	infraconfig "github.com/felixgeelhaar/toolchanger/infrastructure/config"
	infraevent "github.com/felixgeelhaar/toolchanger/infrastructure/event"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/machine"
	"github.com/felixgeelhaar/toolchanger/infrastructure/mqtt"
	"github.com/felixgeelhaar/toolchanger/infrastructure/telemetry"
	"github.com/felixgeelhaar/toolchanger/interfaces/command"
)

// runtime is a fully wired toolchanger on the simulated machine.
type runtime struct {
	config      *domainconfig.Config
	toolchanger *application.Toolchanger
	machine     *machine.Machine
	dispatcher  *command.Dispatcher

	journal   infraconfig.JournalStore
	publisher *infraevent.Publisher
	mqtt      *mqtt.Publisher
	provider  *telemetry.Provider
}

type runtimeOptions struct {
	configPath string
	strictEnv  bool
	verbose    bool
	// out receives command responses that are not captured per call.
	out io.Writer
}

func loadConfig(path string, strict bool) (*domainconfig.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path is required (-c flag)")
	}
	loader := infraconfig.NewLoaderWithOptions(infraconfig.WithStrictEnv(strict))
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func initLogging(b *infraconfig.Builder, verbose bool) {
	logging.Init(b.LoggingConfig())
	if verbose {
		logging.SetLevel("debug")
	}
}

// newRuntime loads the configuration and wires every collaborator. The
// caller must close the runtime.
func newRuntime(ctx context.Context, opts runtimeOptions) (_ *runtime, err error) {
	cfg, err := loadConfig(opts.configPath, opts.strictEnv)
	if err != nil {
		return nil, err
	}
	builder := infraconfig.NewBuilder(cfg)
	initLogging(builder, opts.verbose)

	result, err := builder.Build()
	if err != nil {
		return nil, err
	}

	rt := &runtime{config: cfg}
	defer func() {
		if err != nil {
			_ = rt.close(context.WithoutCancel(ctx))
		}
	}()

	rt.provider, err = telemetry.NewProvider(ctx, builder.TelemetryConfig(Version))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	rt.journal, err = builder.OpenJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	var pubOpts []infraevent.PublisherOption
	if cfg.Journal.BufferSize > 0 {
		pubOpts = append(pubOpts,
			infraevent.WithBufferSize(cfg.Journal.BufferSize),
			infraevent.WithFlushInterval(cfg.Journal.FlushInterval.Duration()),
		)
	}
	rt.publisher = infraevent.NewPublisher(rt.journal, pubOpts...)

	rt.machine = machine.New(builder.MachineConfig())

	out := opts.out
	if out == nil {
		out = io.Discard
	}
	rt.dispatcher = command.NewDispatcher(
		command.WithFallback(rt.machine),
		command.WithWriter(out),
	)
	rt.dispatcher.RegisterHelp()
	result.Runner.SetExecutor(rt.dispatcher)

	appOpts := append(slices.Clone(result.Options),
		application.WithScriptRunner(result.Runner),
		application.WithMotion(rt.machine),
		application.WithToolhead(rt.machine),
		application.WithPeripherals(rt.machine),
		application.WithResponder(rt.dispatcher),
		application.WithPublisher(rt.publisher),
		application.WithMetrics(builder.Metrics()),
		application.WithTracer(rt.provider.Tracer()),
	)
	rt.toolchanger, err = application.New(appOpts...)
	if err != nil {
		return nil, err
	}

	command.RegisterToolchanger(rt.dispatcher, rt.toolchanger)
	rt.machine.OnHomingStarted(rt.toolchanger.HandleHomingStarted)
	rt.toolchanger.Connect(ctx)

	if mqttCfg, enabled := builder.MQTTConfig(); enabled {
		rt.mqtt, err = mqtt.Connect(ctx, mqttCfg, cfg.Toolchanger.Name,
			mqtt.WithStatusSource(func() any { return rt.status() }))
		if err != nil {
			return nil, err
		}
		rt.publisher.AddSink(rt.mqtt)
	}

	return rt, nil
}

// close flushes the journal and releases every connection.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if rt.publisher != nil {
		errs = append(errs, rt.publisher.Close())
	}
	if rt.mqtt != nil {
		errs = append(errs, rt.mqtt.Close(ctx))
	}
	if rt.journal != nil {
		errs = append(errs, rt.journal.Close())
	}
	if rt.provider != nil {
		errs = append(errs, rt.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// status returns the published status mapping. MQTT and MCP call it from
// their own goroutines, so it never reads live toolchanger state.
func (rt *runtime) status() map[string]any {
	return rt.toolchanger.Snapshot().Map()
}
