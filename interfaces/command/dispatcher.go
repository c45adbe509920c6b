package command

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/script"
)

// Handler runs one command.
type Handler func(ctx context.Context, cmd *Command) error

type entry struct {
	handler Handler
	help    string
}

type nestedKey struct{}

type outputKey struct{}

// WithOutput routes responses of commands run with ctx to w.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// Dispatcher runs command lines one at a time. Commands issued while another
// is running on the same context chain (hook scripts calling back in) bypass
// the lock.
type Dispatcher struct {
	mu       sync.Mutex
	regMu    sync.RWMutex
	commands map[string]entry
	fallback script.Executor
	out      io.Writer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFallback sends lines without a registered handler to exec.
func WithFallback(exec script.Executor) DispatcherOption {
	return func(d *Dispatcher) {
		d.fallback = exec
	}
}

// WithWriter sets the default response writer.
func WithWriter(w io.Writer) DispatcherOption {
	return func(d *Dispatcher) {
		d.out = w
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		commands: make(map[string]entry),
		out:      io.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register installs h under name, replacing any existing handler.
func (d *Dispatcher) Register(name string, h Handler, help string) {
	d.regMu.Lock()
	defer d.regMu.Unlock()
	d.commands[strings.ToUpper(name)] = entry{handler: h, help: help}
}

// RegisterIfAbsent installs h under name unless a handler exists. Existing
// handlers are preserved. It reports whether h was installed.
func (d *Dispatcher) RegisterIfAbsent(name string, h Handler, help string) bool {
	d.regMu.Lock()
	defer d.regMu.Unlock()
	key := strings.ToUpper(name)
	if _, ok := d.commands[key]; ok {
		return false
	}
	d.commands[key] = entry{handler: h, help: help}
	return true
}

// Lookup reports whether name has a handler.
func (d *Dispatcher) Lookup(name string) bool {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	_, ok := d.commands[strings.ToUpper(name)]
	return ok
}

// Commands returns the help text of every registered command.
func (d *Dispatcher) Commands() map[string]string {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	out := make(map[string]string, len(d.commands))
	for name, e := range d.commands {
		out[name] = e.help
	}
	return out
}

// Names returns the registered command names in order.
func (d *Dispatcher) Names() []string {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterHelp installs HELP, which lists every command with its help text.
func (d *Dispatcher) RegisterHelp() {
	d.Register("HELP", func(ctx context.Context, _ *Command) error {
		help := d.Commands()
		for _, name := range d.Names() {
			if help[name] == "" {
				d.Respond(ctx, name)
				continue
			}
			d.Respond(ctx, name+": "+help[name])
		}
		return nil
	}, "List available commands")
}

// Execute runs one command line. Blank lines are ignored.
func (d *Dispatcher) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if ctx.Value(nestedKey{}) == nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		ctx = context.WithValue(ctx, nestedKey{}, true)
	}

	name := strings.ToUpper(strings.Fields(line)[0])
	d.regMu.RLock()
	e, ok := d.commands[name]
	d.regMu.RUnlock()

	if !ok {
		if d.fallback == nil {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		}
		return d.fallback.Execute(ctx, line)
	}

	cmd, err := Parse(line)
	if err != nil {
		return err
	}
	logging.Debug().
		Add(logging.Component("command")).
		Add(logging.Str("command", cmd.Name)).
		Msg("dispatching")
	return e.handler(ctx, cmd)
}

// Run executes line and returns everything it responded.
func (d *Dispatcher) Run(ctx context.Context, line string) (string, error) {
	var buf strings.Builder
	err := d.Execute(WithOutput(ctx, &buf), line)
	return buf.String(), err
}

// Respond writes msg to the writer bound to ctx, or the default writer.
func (d *Dispatcher) Respond(ctx context.Context, msg string) {
	w := d.out
	if v, ok := ctx.Value(outputKey{}).(io.Writer); ok {
		w = v
	}
	fmt.Fprintln(w, msg)
}

var _ script.Executor = (*Dispatcher)(nil)
