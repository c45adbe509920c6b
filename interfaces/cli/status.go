package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolchanger/interfaces/command"
)

type statusOptions struct {
	configPath string
	initialize bool
	jsonOutput bool
}

func (a *App) newStatusCmd() *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the toolchanger status after startup",
		Long: `Print the toolchanger status as seen right after startup, optionally
after initialization.

Examples:
  toolchanger status -c machine.yaml
  toolchanger status -c machine.yaml --init --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printStatus(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().BoolVar(&opts.initialize, "init", false, "Initialize the toolchanger first")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output status as JSON")

	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (a *App) printStatus(ctx context.Context, opts *statusOptions) (err error) {
	rt, err := newRuntime(ctx, runtimeOptions{configPath: opts.configPath})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if opts.initialize {
		if err := rt.dispatcher.Execute(ctx, command.CmdInitialize); err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(rt.toolchanger.Status(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	out, err := rt.dispatcher.Run(ctx, command.CmdStatus)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, out)
	return nil
}
