package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolchanger/interfaces/command"
)

// runOptions holds options for the run command.
type runOptions struct {
	configPath string
	strictEnv  bool
	verbose    bool
	keepGoing  bool
	initialize bool
	showStatus bool
	exec       []string
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [script...]",
		Short: "Run toolchanger commands against the simulated machine",
		Long: `Run command lines from script files, --exec flags or stdin.

Each line is one command: a toolchanger command such as SELECT_TOOL TOOL=T1,
a T<n> shortcut, HELP, or a machine command handled by the simulation.
Blank lines and lines starting with # or ; are skipped.

Examples:
  # Interactive console
  toolchanger run -c machine.yaml

  # Run a script, initializing first
  toolchanger run -c machine.yaml --init swap.gcode

  # One-off commands
  toolchanger run -c machine.yaml -e "G28" -e "T1" --status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConsole(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().BoolVar(&opts.strictEnv, "strict", false, "Fail on missing environment variables")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "Continue after a failed command")
	cmd.Flags().BoolVar(&opts.initialize, "init", false, "Run INITIALIZE_TOOLCHANGER before the first line")
	cmd.Flags().BoolVar(&opts.showStatus, "status", false, "Print TOOLCHANGER_STATUS after the last line")
	cmd.Flags().StringArrayVarP(&opts.exec, "exec", "e", nil, "Command line to run (repeatable)")

	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// runConsole wires a runtime and feeds it every input line in order.
func (a *App) runConsole(ctx context.Context, opts *runOptions, scripts []string) (err error) {
	rt, err := newRuntime(ctx, runtimeOptions{
		configPath: opts.configPath,
		strictEnv:  opts.strictEnv,
		verbose:    opts.verbose,
		out:        a.stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	c := &console{dispatcher: rt.dispatcher, stderr: a.stderr, keepGoing: opts.keepGoing}

	if opts.initialize {
		if err := c.exec(ctx, command.CmdInitialize); err != nil {
			return err
		}
	}

	switch {
	case len(scripts) > 0:
		for _, path := range scripts {
			if err := c.runFile(ctx, path); err != nil {
				return err
			}
		}
	case len(opts.exec) > 0:
		for _, line := range opts.exec {
			if err := c.exec(ctx, line); err != nil {
				return err
			}
		}
	default:
		if err := c.runReader(ctx, a.stdin); err != nil {
			return err
		}
	}

	if opts.showStatus {
		if err := c.exec(ctx, command.CmdStatus); err != nil {
			return err
		}
	}
	return c.result()
}

// console executes lines and tracks failures.
type console struct {
	dispatcher *command.Dispatcher
	stderr     io.Writer
	keepGoing  bool
	failed     int
}

func (c *console) runFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return c.runReader(ctx, f)
}

func (c *console) runReader(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if err := c.exec(ctx, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// exec runs one line. A failure is reported on stderr and returned unless
// keepGoing is set.
func (c *console) exec(ctx context.Context, line string) error {
	err := c.dispatcher.Execute(ctx, line)
	if err == nil {
		return nil
	}
	c.failed++
	fmt.Fprintf(c.stderr, "!! %v\n", err)
	if c.keepGoing {
		return nil
	}
	return fmt.Errorf("%s: %w", line, err)
}

func (c *console) result() error {
	if c.failed > 0 {
		return fmt.Errorf("%d command(s) failed", c.failed)
	}
	return nil
}
