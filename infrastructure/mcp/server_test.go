package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/felixgeelhaar/toolchanger/infrastructure/mcp"
)

// fakeExecutor records command lines and answers with a canned response.
type fakeExecutor struct {
	mu    sync.Mutex
	lines []string
	out   string
	err   error
}

func (f *fakeExecutor) Run(_ context.Context, line string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
	return f.out, f.err
}

func (f *fakeExecutor) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

func newServer(exec *fakeExecutor, status mcp.StatusSource) *mcp.ToolchangerServer {
	return mcp.NewServer(mcp.ServerConfig{
		Name:     "toolchanger",
		Version:  "test",
		Executor: exec,
		Status:   status,
	})
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	srv := newServer(&fakeExecutor{}, nil)
	if srv.Server() == nil {
		t.Fatal("Server() returned nil")
	}
	if info := srv.Info(); info.Name != "toolchanger" || !info.Capabilities.Tools {
		t.Errorf("Info() = %+v", info)
	}

	want := []string{"abort", "assign_tool", "initialize", "run_command", "select_tool", "status", "unselect_tool"}
	if got := srv.Tools(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tools() = %v, want %v", got, want)
	}
}

func TestServer_CommandLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool  string
		input string
		want  string
	}{
		{"select_tool", `{"tool":"T1"}`, "SELECT_TOOL TOOL=T1"},
		{"select_tool", `{"number":2,"restore_axis":"Z"}`, "SELECT_TOOL T=2 RESTORE_AXIS=Z"},
		{"select_tool", `{"number":0}`, "SELECT_TOOL T=0"},
		{"unselect_tool", `{}`, "UNSELECT_TOOL"},
		{"unselect_tool", `{"restore_axis":"XY"}`, "UNSELECT_TOOL RESTORE_AXIS=XY"},
		{"initialize", ``, "INITIALIZE_TOOLCHANGER"},
		{"initialize", `{"tool":"T0"}`, "INITIALIZE_TOOLCHANGER TOOL=T0"},
		{"assign_tool", `{"tool":"T3","number":7}`, "ASSIGN_TOOL TOOL=T3 N=7"},
		{"abort", `{"message":"dock \"jammed\""}`, `SELECT_TOOL_ERROR MESSAGE="dock 'jammed'"`},
		{"abort", `{}`, "SELECT_TOOL_ERROR"},
		{"run_command", `{"line":"G28 Z"}`, "G28 Z"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			exec := &fakeExecutor{out: "ok\n"}
			out, err := newServer(exec, nil).Call(context.Background(), tt.tool, json.RawMessage(tt.input))
			if err != nil {
				t.Fatalf("Call(%s) error = %v", tt.tool, err)
			}
			if out != "ok" {
				t.Errorf("output = %q, want trimmed response", out)
			}
			if got := exec.last(); got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool  string
		input string
	}{
		{"select_tool", `{}`},
		{"select_tool", `{"number":"two"}`},
		{"assign_tool", `{"tool":"T0"}`},
		{"assign_tool", `{"number":1}`},
		{"run_command", `{"line":"  "}`},
		{"initialize", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.tool+tt.input, func(t *testing.T) {
			t.Parallel()
			exec := &fakeExecutor{}
			_, err := newServer(exec, nil).Call(context.Background(), tt.tool, json.RawMessage(tt.input))
			if !errors.Is(err, mcp.ErrInvalidInput) {
				t.Errorf("Call() = %v, want ErrInvalidInput", err)
			}
			if len(exec.lines) != 0 {
				t.Errorf("executor ran %v", exec.lines)
			}
		})
	}
}

func TestServer_ErrorsPropagate(t *testing.T) {
	t.Parallel()

	boom := errors.New("cannot select tool")
	exec := &fakeExecutor{out: "partial\n", err: boom}
	out, err := newServer(exec, nil).Call(context.Background(), "select_tool", json.RawMessage(`{"tool":"T0"}`))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if out != "partial" {
		t.Errorf("out = %q", out)
	}

	if _, err := newServer(exec, nil).Call(context.Background(), "home", nil); !errors.Is(err, mcp.ErrUnknownTool) {
		t.Errorf("unknown tool: %v", err)
	}
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	status := func() map[string]any {
		return map[string]any{"status": "ready", "tool": "T0", "tool_number": 0}
	}
	exec := &fakeExecutor{out: "tc: status=ready\n"}

	out, err := newServer(exec, status).Call(context.Background(), "status", nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("status output is not JSON: %v", err)
	}
	if got["status"] != "ready" || got["tool"] != "T0" {
		t.Errorf("status = %v", got)
	}
	if len(exec.lines) != 0 {
		t.Errorf("status source should not run commands: %v", exec.lines)
	}

	out, err = newServer(exec, nil).Call(context.Background(), "status", nil)
	if err != nil || out != "tc: status=ready" || exec.last() != "TOOLCHANGER_STATUS" {
		t.Errorf("fallback status = %q, %v, line %q", out, err, exec.last())
	}
}
