package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/mcp"
)

type mcpOptions struct {
	configPath string
	httpAddr   string
	verbose    bool
}

func (a *App) newMCPCmd() *cobra.Command {
	opts := &mcpOptions{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the toolchanger over the Model Context Protocol",
		Long: `Serve the toolchanger commands as MCP tools, on stdio by default or over
HTTP with --http.

Examples:
  toolchanger mcp -c machine.yaml
  toolchanger mcp -c machine.yaml --http :8090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serveMCP(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "Serve over HTTP on this address instead of stdio")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (a *App) serveMCP(ctx context.Context, opts *mcpOptions) (err error) {
	rt, err := newRuntime(ctx, runtimeOptions{
		configPath: opts.configPath,
		verbose:    opts.verbose,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	srv := mcp.NewServer(mcp.ServerConfig{
		Name:     rt.config.Toolchanger.Name,
		Version:  Version,
		Executor: rt.dispatcher,
		Status:   rt.status,
	})
	srv.Use(mcp.Recover(), mcp.RequestID())

	if opts.httpAddr != "" {
		logging.Info().
			Add(logging.Component("cli")).
			Add(logging.Str("addr", opts.httpAddr)).
			Msg("serving MCP over HTTP")
		if err := srv.ServeHTTP(ctx, opts.httpAddr); err != nil {
			return fmt.Errorf("mcp http: %w", err)
		}
		return nil
	}

	if err := srv.ServeStdio(ctx); err != nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}
