package command

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/toolchanger/infrastructure/script"
)

func TestDispatcher_Execute(t *testing.T) {
	t.Parallel()

	var fallback []string
	out := &bytes.Buffer{}
	d := NewDispatcher(
		WithWriter(out),
		WithFallback(script.ExecutorFunc(func(_ context.Context, line string) error {
			fallback = append(fallback, line)
			return nil
		})),
	)
	d.Register("ECHO", func(ctx context.Context, cmd *Command) error {
		d.Respond(ctx, cmd.Get("MSG", ""))
		return nil
	}, "echo MSG")

	ctx := context.Background()
	for _, line := range []string{"echo MSG=hi", "", "G0 X1", "M400"} {
		if err := d.Execute(ctx, line); err != nil {
			t.Fatalf("Execute(%q) error = %v", line, err)
		}
	}
	if out.String() != "hi\n" {
		t.Errorf("output = %q", out.String())
	}
	if len(fallback) != 2 || fallback[0] != "G0 X1" || fallback[1] != "M400" {
		t.Errorf("fallback = %v", fallback)
	}

	got, err := d.Run(ctx, "ECHO MSG=captured")
	if err != nil || got != "captured\n" {
		t.Errorf("Run() = %q, %v", got, err)
	}
	if out.String() != "hi\n" {
		t.Error("Run() leaked into the default writer")
	}

	if err := d.Execute(ctx, "ECHO broken"); !errors.Is(err, ErrMalformed) {
		t.Errorf("malformed error = %v", err)
	}
}

func TestDispatcher_UnknownWithoutFallback(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	if err := d.Execute(context.Background(), "NOPE"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Execute() error = %v, want ErrUnknownCommand", err)
	}
}

func TestDispatcher_RegisterIfAbsent(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	var called string
	first := func(context.Context, *Command) error { called = "first"; return nil }
	second := func(context.Context, *Command) error { called = "second"; return nil }

	if !d.RegisterIfAbsent("T0", first, "") {
		t.Fatal("first registration not installed")
	}
	if d.RegisterIfAbsent("t0", second, "") {
		t.Error("second registration replaced the first")
	}
	_ = d.Execute(context.Background(), "T0")
	if called != "first" {
		t.Errorf("called = %s, want first", called)
	}

	d.Register("T0", second, "")
	_ = d.Execute(context.Background(), "T0")
	if called != "second" {
		t.Errorf("called = %s after Register, want second", called)
	}
	if names := d.Names(); len(names) != 1 || names[0] != "T0" || !d.Lookup("t0") {
		t.Errorf("Names() = %v", names)
	}
}

func TestDispatcher_NestedCommandsBypassLock(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	var inner bool
	d.Register("INNER", func(context.Context, *Command) error {
		inner = true
		return nil
	}, "")
	d.Register("OUTER", func(ctx context.Context, _ *Command) error {
		return d.Execute(ctx, "INNER")
	}, "")

	done := make(chan error, 1)
	go func() { done <- d.Execute(context.Background(), "OUTER") }()

	select {
	case err := <-done:
		if err != nil || !inner {
			t.Errorf("OUTER = %v, inner ran = %v", err, inner)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested command deadlocked")
	}
}

func TestDispatcher_Serializes(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	var running, peak atomic.Int32
	d.Register("WORK", func(context.Context, *Command) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Execute(context.Background(), "WORK")
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestDispatcher_Help(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	d.Register("ZAP", func(context.Context, *Command) error { return nil }, "")
	d.Register("ECHO", func(context.Context, *Command) error { return nil }, "echo MSG")
	d.RegisterHelp()

	out, err := d.Run(context.Background(), "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	want := "ECHO: echo MSG\nHELP: List available commands\nZAP\n"
	if out != want {
		t.Errorf("help = %q, want %q", out, want)
	}
}
