package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolchanger/infrastructure/archive"
)

type journalExportOptions struct {
	configPath string
	stream     string
	types      []string
	to         string
	gzip       bool
	jsonOutput bool
}

func (a *App) newJournalExportCmd() *cobra.Command {
	opts := &journalExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive a journal stream to a directory or object storage",
		Long: `Write the events of a journal stream as JSON lines to an archive target.

Targets:
  /path/or/file:///path                 local directory
  s3://bucket/prefix?region=&endpoint=  Amazon S3 or S3-compatible storage
  gs://bucket/prefix?credentials=       Google Cloud Storage
  azblob://container/prefix?account=    Azure Blob Storage

S3 keys are read from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY. Azure reads
AZURE_STORAGE_CONNECTION_STRING or AZURE_STORAGE_KEY. Otherwise each provider
falls back to its default credential chain.

Examples:
  toolchanger journal export -c machine.yaml --to ./archive
  toolchanger journal export -c machine.yaml --to s3://farm-logs/printers --gzip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportJournal(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().StringVar(&opts.stream, "stream", "", "Stream to export (defaults to the toolchanger name)")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "Only export these event types")
	cmd.Flags().StringVar(&opts.to, "to", "", "Archive target URL (required)")
	cmd.Flags().BoolVar(&opts.gzip, "gzip", false, "Compress the archive with gzip")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the export result as JSON")

	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (a *App) exportJournal(ctx context.Context, opts *journalExportOptions) (err error) {
	target, err := archive.ParseTarget(opts.to)
	if err != nil {
		return err
	}

	store, stream, err := openJournal(ctx, opts.configPath, opts.stream)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sink, err := archive.Open(ctx, target)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	exporter := archive.NewExporter(store, sink,
		archive.WithPrefix(target.KeyPrefix()),
		archive.WithCompression(opts.gzip),
	)

	res, err := exporter.Export(ctx, stream, journalQuery(opts.types, 0))
	if errors.Is(err, archive.ErrEmptyStream) {
		fmt.Fprintf(a.stdout, "No events for %s\n", stream)
		return nil
	}
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	fmt.Fprintf(a.stdout, "✓ Exported %d event(s) of %s to %s:%s\n", res.Events, stream, res.Sink, res.Key)
	fmt.Fprintf(a.stdout, "  sha256 %s (%d bytes)\n", res.Checksum, res.Bytes)
	return nil
}
