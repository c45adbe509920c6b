// Package script runs hooks. A hook source is a text/template; the rendered
// text is split into command lines which are executed one by one.
package script

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/felixgeelhaar/toolchanger/domain/script"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// Executor executes one command line.
type Executor interface {
	Execute(ctx context.Context, line string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, line string) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, line string) error {
	return f(ctx, line)
}

// Runner renders hooks and feeds the resulting lines to an Executor.
type Runner struct {
	exec  Executor
	funcs template.FuncMap
	cache map[string]*template.Template
	mu    sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithFuncs adds template functions.
func WithFuncs(funcs template.FuncMap) Option {
	return func(r *Runner) {
		for k, v := range funcs {
			r.funcs[k] = v
		}
	}
}

// NewRunner creates a runner executing lines on exec.
func NewRunner(exec Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:  exec,
		funcs: defaultFuncs(),
		cache: make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetExecutor replaces the executor. The command dispatcher and the runner
// reference each other, so one side is wired after construction.
func (r *Runner) SetExecutor(exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec = exec
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}
			return v
		},
	}
}

// Compile parses the hook so template errors surface at load time.
func (r *Runner) Compile(h script.Hook) error {
	_, err := r.template(h)
	return err
}

func (r *Runner) template(h script.Hook) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[h.Source]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(h.Name).Funcs(r.funcs).Parse(h.Source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", h.Name, err)
	}
	r.cache[h.Source] = tmpl
	return tmpl, nil
}

// Render renders the hook and returns its command lines. Blank lines and
// lines starting with ';' or '#' are dropped.
func (r *Runner) Render(h script.Hook, vars map[string]any) ([]string, error) {
	tmpl, err := r.template(h)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render %s: %w", h.Name, err)
	}

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Run renders h and executes every line in order, stopping at the first
// failure.
func (r *Runner) Run(ctx context.Context, h script.Hook, vars map[string]any) error {
	lines, err := r.Render(h, vars)
	if err != nil {
		return err
	}

	r.mu.Lock()
	exec := r.exec
	r.mu.Unlock()
	if exec == nil {
		return fmt.Errorf("%s: no command executor", h.Name)
	}

	for i, line := range lines {
		logging.Trace().
			Add(logging.Hook(h.Name)).
			Add(logging.Str("line", line)).
			Msg("executing")
		if err := exec.Execute(ctx, line); err != nil {
			return fmt.Errorf("%s line %d (%s): %w", h.Name, i+1, line, err)
		}
	}
	return nil
}

var _ script.Runner = (*Runner)(nil)
