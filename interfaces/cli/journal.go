package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	infraconfig "github.com/felixgeelhaar/toolchanger/infrastructure/config"
)

type journalOptions struct {
	configPath string
	stream     string
	types      []string
	limit      int
	jsonOutput bool
}

func (a *App) newJournalCmd() *cobra.Command {
	opts := &journalOptions{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the toolchanger event journal",
		Long: `Show events recorded in the configured journal store.

Only persistent drivers (sqlite, badger, postgres, redis, mongodb, dynamodb)
keep events between runs. Use "journal export" to archive a stream.

Examples:
  toolchanger journal -c machine.yaml
  toolchanger journal -c machine.yaml --type tool.selected --limit 20
  toolchanger journal -c machine.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showJournal(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().StringVar(&opts.stream, "stream", "", "Stream to show (defaults to the toolchanger name)")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "Only show these event types")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of events (0 = all)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output events as JSON")

	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(a.newJournalExportCmd())

	return cmd
}

func (a *App) showJournal(ctx context.Context, opts *journalOptions) (err error) {
	store, stream, err := openJournal(ctx, opts.configPath, opts.stream)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	events, err := store.Query(ctx, stream, journalQuery(opts.types, opts.limit))
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal events: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	if len(events) == 0 {
		fmt.Fprintf(a.stdout, "No events for %s\n", stream)
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(a.stdout, "%6d  %s  %-32s %s\n",
			e.Sequence, e.Timestamp.Format(time.RFC3339), e.Type, string(e.Payload))
	}
	return nil
}

// openJournal opens the configured journal and resolves the stream name.
func openJournal(ctx context.Context, configPath, stream string) (infraconfig.JournalStore, string, error) {
	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return nil, "", err
	}
	builder := infraconfig.NewBuilder(cfg)
	initLogging(builder, false)

	store, err := builder.OpenJournal(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("journal: %w", err)
	}
	if stream == "" {
		stream = cfg.Toolchanger.Name
	}
	return store, stream, nil
}

func journalQuery(types []string, limit int) event.QueryOptions {
	query := event.QueryOptions{Limit: limit}
	for _, t := range types {
		query.Types = append(query.Types, event.Type(t))
	}
	return query
}
