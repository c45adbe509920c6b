// Package cli provides the toolchanger command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolchanger"
)

// Version is the release version reported to MCP clients and telemetry.
var Version = toolchanger.Version

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "toolchanger",
		Short: "Toolchanger controller for multi-tool 3D printers",
		Long: `toolchanger drives a toolchanger through its lifecycle: initialization,
tool selection with pickup and dropoff hooks, offsets, peripheral switching
and failure recovery.

Commands are extended G-code lines such as SELECT_TOOL TOOL=T1 or T0.
Hooks are G-code templates rendered with the toolchanger and tool status.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newExportSchemaCmd(),
		app.newRunCmd(),
		app.newStatusCmd(),
		app.newJournalCmd(),
		app.newMCPCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithInput sets the reader used by the console.
func (a *App) WithInput(stdin io.Reader) *App {
	a.stdin = stdin
	a.root.SetIn(stdin)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "toolchanger version %s\n", toolchanger.GetVersion())
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", toolchanger.GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", toolchanger.BuildDate)
		},
	}
}
