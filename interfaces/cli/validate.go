package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/toolchanger/infrastructure/config"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	strict     bool
	showSchema bool
	watch      bool
}

func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a machine configuration file",
		Long: `Validate a machine configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Initialize policy, log level, journal driver and exporter names
  - Unique tool names and tool numbers
  - Param literals and restore axes
  - Environment variable references (in strict mode)

Examples:
  toolchanger validate -c machine.yaml
  toolchanger validate -c machine.yaml --strict
  toolchanger validate -c machine.yaml --watch
  toolchanger validate --schema`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showSchema {
				return a.showConfigSchema()
			}
			if opts.watch {
				return a.watchConfig(cmd.Context(), opts)
			}
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on missing environment variables")
	cmd.Flags().BoolVar(&opts.showSchema, "schema", false, "Show JSON schema for configuration")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-validate whenever the file changes")

	return cmd
}

func (a *App) validateConfig(opts *validateOptions) error {
	cfg, err := loadConfig(opts.configPath, opts.strict)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := infraconfig.NewBuilder(cfg).Build()
	if err != nil {
		return fmt.Errorf("configuration build failed: %w", err)
	}

	tc := cfg.Toolchanger
	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", tc.Name)
	fmt.Fprintf(a.stdout, "  Initialize on: %s\n", result.Policy)
	fmt.Fprintf(a.stdout, "  Clear offset for toolchange: %t\n", tc.ClearOffset())
	if result.Params.Len() > 0 {
		fmt.Fprintf(a.stdout, "  Params: %d\n", result.Params.Len())
	}

	fmt.Fprintf(a.stdout, "\nTools: %d\n", len(result.Tools))
	for _, t := range result.Tools {
		number := "unassigned"
		if t.Number >= 0 {
			number = fmt.Sprintf("T%d", t.Number)
		}
		fmt.Fprintf(a.stdout, "  - %s (%s)", t.Name, number)
		if t.Extruder != "" {
			fmt.Fprintf(a.stdout, " extruder=%s", t.Extruder)
		}
		if t.Fan != "" {
			fmt.Fprintf(a.stdout, " fan=%s", t.Fan)
		}
		fmt.Fprintln(a.stdout)
	}

	fmt.Fprintf(a.stdout, "\nJournal: %s\n", cfg.Journal.Driver)
	if cfg.MQTT.Enabled {
		fmt.Fprintf(a.stdout, "MQTT: %s (prefix %s)\n", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
	}
	if cfg.Telemetry.Exporter != "" {
		fmt.Fprintf(a.stdout, "Telemetry: %s\n", cfg.Telemetry.Exporter)
	}

	return nil
}

func (a *App) showConfigSchema() error {
	schemaJSON, err := infraconfig.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Fprintln(a.stdout, schemaJSON)
	return nil
}

// watchConfig validates the file once, then again after every write until
// ctx is cancelled. Validation failures are reported, not returned.
func (a *App) watchConfig(ctx context.Context, opts *validateOptions) error {
	if opts.configPath == "" {
		return fmt.Errorf("--watch requires --config")
	}
	path, err := filepath.Abs(opts.configPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	a.revalidate(opts)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			logging.Debug().
				Add(logging.Component("cli")).
				Add(logging.Str("file", ev.Name)).
				Add(logging.Operation(ev.Op.String())).
				Msg("configuration changed")
			fmt.Fprintf(a.stdout, "\n--- %s changed ---\n", filepath.Base(path))
			a.revalidate(opts)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().
				Add(logging.Component("cli")).
				Add(logging.ErrorField(werr)).
				Msg("watch error")
		}
	}
}

func (a *App) revalidate(opts *validateOptions) {
	if err := a.validateConfig(opts); err != nil {
		fmt.Fprintf(a.stdout, "✗ %v\n", err)
	}
}
