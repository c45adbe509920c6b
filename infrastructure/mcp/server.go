package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	mcpserver "github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// ErrUnknownTool is returned by Call for a tool the server does not expose.
var ErrUnknownTool = errors.New("unknown mcp tool")

// ErrInvalidInput wraps malformed tool arguments.
var ErrInvalidInput = errors.New("invalid mcp tool input")

// Executor runs one extended command line and returns its responses.
// *command.Dispatcher satisfies it.
type Executor interface {
	Run(ctx context.Context, line string) (string, error)
}

// StatusSource returns the current toolchanger status mapping. It is called
// from request goroutines and must not read state owned by the command thread.
type StatusSource func() map[string]any

// Handler handles one tool call.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// ToolchangerServer exposes toolchanger commands as MCP tools.
type ToolchangerServer struct {
	srv      *mcpgo.Server
	info     mcpgo.ServerInfo
	exec     Executor
	status   StatusSource
	handlers map[string]Handler
}

// ServerConfig configures a toolchanger MCP server.
type ServerConfig struct {
	Name    string
	Version string

	// Executor runs the generated command lines.
	Executor Executor

	// Status backs the status tool.
	Status StatusSource

	Description  string
	Instructions string
}

const defaultInstructions = "Drive the toolchanger with select_tool, unselect_tool and initialize. " +
	"Use status to read the current tool and state. run_command accepts any extended command line."

// NewServer creates an MCP server wired to the given executor.
func NewServer(cfg ServerConfig) *ToolchangerServer {
	info := mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: cfg.Description,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	instructions := cfg.Instructions
	if instructions == "" {
		instructions = defaultInstructions
	}

	s := &ToolchangerServer{
		srv:      mcpgo.NewServer(info, mcpgo.WithInstructions(instructions)),
		info:     info,
		exec:     cfg.Executor,
		status:   cfg.Status,
		handlers: make(map[string]Handler),
	}
	s.registerTools()
	return s
}

func (s *ToolchangerServer) registerTools() {
	s.register("select_tool", "Select a tool by name or number. Arguments: tool, number, restore_axis.", s.selectTool)
	s.register("unselect_tool", "Put the active tool away. Arguments: restore_axis.", s.unselectTool)
	s.register("initialize", "Initialize the toolchanger, optionally with the tool currently mounted. Arguments: tool, number.", s.initialize)
	s.register("assign_tool", "Assign a tool number to a tool. Arguments: tool, number.", s.assignTool)
	s.register("abort", "Abort the running tool change. Arguments: message.", s.abort)
	s.register("status", "Return the toolchanger status as JSON.", s.statusTool)
	s.register("run_command", "Run one extended command line. Arguments: line.", s.runCommand)
}

func (s *ToolchangerServer) register(name, description string, h Handler) {
	s.handlers[name] = h
	s.srv.Tool(name).
		Description(description).
		Handler(func(ctx context.Context, input json.RawMessage) (string, error) {
			out, err := h(ctx, input)
			logging.Debug().
				Add(logging.Component("mcp")).
				Add(logging.Operation(name)).
				Add(logging.ErrorField(err)).
				Msg("tool call")
			return out, err
		})
}

// Call invokes a tool handler directly.
func (s *ToolchangerServer) Call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	h, ok := s.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return h(ctx, input)
}

// Tools returns the exposed tool names, sorted.
func (s *ToolchangerServer) Tools() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type selectArgs struct {
	Tool        string `json:"tool,omitempty"`
	Number      *int   `json:"number,omitempty"`
	RestoreAxis string `json:"restore_axis,omitempty"`
	Message     string `json:"message,omitempty"`
	Line        string `json:"line,omitempty"`
}

func decode(input json.RawMessage) (selectArgs, error) {
	var a selectArgs
	if len(input) == 0 || string(input) == "null" {
		return a, nil
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return a, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return a, nil
}

// commandLine renders name and its arguments; empty values are skipped.
func commandLine(name string, kv ...string) string {
	var b strings.Builder
	b.WriteString(name)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		v := kv[i+1]
		if strings.ContainsAny(v, " \t") {
			v = `"` + v + `"`
		}
		fmt.Fprintf(&b, " %s=%s", kv[i], v)
	}
	return b.String()
}

func numberArg(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprint(*n)
}

func (s *ToolchangerServer) run(ctx context.Context, line string) (string, error) {
	out, err := s.exec.Run(ctx, line)
	return strings.TrimRight(out, "\n"), err
}

func (s *ToolchangerServer) selectTool(ctx context.Context, input json.RawMessage) (string, error) {
	a, err := decode(input)
	if err != nil {
		return "", err
	}
	if a.Tool == "" && a.Number == nil {
		return "", fmt.Errorf("%w: tool or number is required", ErrInvalidInput)
	}
	return s.run(ctx, commandLine("SELECT_TOOL",
		"TOOL", a.Tool,
		"T", numberArg(a.Number),
		"RESTORE_AXIS", a.RestoreAxis,
	))
}

func (s *ToolchangerServer) unselectTool(ctx context.Context, input json.RawMessage) (string, error) {
	a, err := decode(input)
	if err != nil {
		return "", err
	}
	return s.run(ctx, commandLine("UNSELECT_TOOL", "RESTORE_AXIS", a.RestoreAxis))
}

func (s *ToolchangerServer) initialize(ctx context.Context, input json.RawMessage) (string, error) {
	a, err := decode(input)
	if err != nil {
		return "", err
	}
	return s.run(ctx, commandLine("INITIALIZE_TOOLCHANGER",
		"TOOL", a.Tool,
		"T", numberArg(a.Number),
	))
}

func (s *ToolchangerServer) assignTool(ctx context.Context, input json.RawMessage) (string, error) {
	a, err := decode(input)
	if err != nil {
		return "", err
	}
	if a.Tool == "" || a.Number == nil {
		return "", fmt.Errorf("%w: tool and number are required", ErrInvalidInput)
	}
	return s.run(ctx, commandLine("ASSIGN_TOOL", "TOOL", a.Tool, "N", numberArg(a.Number)))
}

func (s *ToolchangerServer) abort(ctx context.Context, input json.RawMessage) (string, error) {
	a, err := decode(input)
	if err != nil {
		return "", err
	}
	msg := strings.ReplaceAll(a.Message, `"`, "'")
	return s.run(ctx, commandLine("SELECT_TOOL_ERROR", "MESSAGE", msg))
}

func (s *ToolchangerServer) statusTool(ctx context.Context, _ json.RawMessage) (string, error) {
	if s.status == nil {
		return s.run(ctx, "TOOLCHANGER_STATUS")
	}
	data, err := json.Marshal(s.status())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *ToolchangerServer) runCommand(ctx context.Context, input json.RawMessage) (string, error) {
	a, err := decode(input)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a.Line) == "" {
		return "", fmt.Errorf("%w: line is required", ErrInvalidInput)
	}
	return s.run(ctx, a.Line)
}

// Server returns the underlying mcp-go server.
func (s *ToolchangerServer) Server() *mcpgo.Server {
	return s.srv
}

// Info returns the server metadata.
func (s *ToolchangerServer) Info() mcpgo.ServerInfo {
	return s.info
}

// Use adds middleware to the server.
func (s *ToolchangerServer) Use(middlewares ...mcpserver.Middleware) {
	s.srv.Use(middlewares...)
}

// ServeStdio runs the server over stdin/stdout.
func (s *ToolchangerServer) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP with SSE.
func (s *ToolchangerServer) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}
