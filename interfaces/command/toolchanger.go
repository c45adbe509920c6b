package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/toolchanger/application"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/domain/toolchanger"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// Toolchanger command names.
const (
	CmdInitialize      = "INITIALIZE_TOOLCHANGER"
	CmdSelectTool      = "SELECT_TOOL"
	CmdUnselectTool    = "UNSELECT_TOOL"
	CmdSelectToolError = "SELECT_TOOL_ERROR"
	CmdAssignTool      = "ASSIGN_TOOL"
	CmdStatus          = "TOOLCHANGER_STATUS"
)

// RegisterToolchanger installs the toolchanger commands on d, plus a T<n>
// shortcut for every tool that already has a number.
func RegisterToolchanger(d *Dispatcher, tc *application.Toolchanger) {
	c := &commands{d: d, tc: tc}

	d.Register(CmdInitialize, c.initialize, "Initialize the toolchanger, optionally declaring the mounted tool")
	d.Register(CmdSelectTool, c.selectTool, "Select a tool by TOOL=name or T=number")
	d.Register(CmdUnselectTool, c.unselectTool, "Park the active tool")
	d.Register(CmdSelectToolError, c.selectToolError, "Abort the running tool change with MESSAGE")
	d.Register(CmdAssignTool, c.assignTool, "Assign tool TOOL the number N")
	d.Register(CmdStatus, c.status, "Report toolchanger and tool status")

	for _, tl := range tc.Tools() {
		if tl.Number() >= 0 {
			c.registerShortcut(tl)
		}
	}
}

type commands struct {
	d  *Dispatcher
	tc *application.Toolchanger
}

// registerShortcut adds T<n> for tl unless T<n> already exists. The
// restore axis is the one configured on tl at registration time.
func (c *commands) registerShortcut(tl *tool.Tool) {
	number := tl.Number()
	restore := tl.RestoreAxis()
	name := fmt.Sprintf("T%d", number)

	installed := c.d.RegisterIfAbsent(name, func(ctx context.Context, _ *Command) error {
		target := c.tc.LookupTool(number)
		if target == nil {
			return fmt.Errorf("%w: Select tool: T%d not found", toolchanger.ErrToolNotFound, number)
		}
		return c.tc.SelectTool(ctx, target, restore)
	}, fmt.Sprintf("Select tool %d", number))

	if installed {
		logging.Debug().
			Add(logging.Toolchanger(c.tc.Name())).
			Add(logging.Str("command", name)).
			Add(logging.RestoreAxis(restore)).
			Msg("shortcut registered")
	}
}

// numbered resolves T=number. ok is false when T is absent.
func (c *commands) numbered(cmd *Command, notFound string) (tl *tool.Tool, ok bool, err error) {
	if !cmd.Has("T") {
		return nil, false, nil
	}
	number, err := cmd.GetInt("T", 0, 0)
	if err != nil {
		return nil, true, err
	}
	if tl = c.tc.LookupTool(number); tl == nil {
		return nil, true, fmt.Errorf("%w: "+notFound, toolchanger.ErrToolNotFound, number)
	}
	return tl, true, nil
}

// initialize declares TOOL=name or T=number as mounted. T wins when both are
// given.
func (c *commands) initialize(ctx context.Context, cmd *Command) error {
	var target *tool.Tool
	if name := cmd.Get("TOOL", ""); name != "" {
		tl, err := c.tc.ToolByName(name)
		if err != nil {
			return err
		}
		target = tl
	}
	tl, ok, err := c.numbered(cmd, "Tool #%d is not assigned")
	if err != nil {
		return err
	}
	if ok {
		target = tl
	}
	return c.tc.Initialize(ctx, target)
}

// selectTool changes to TOOL=name, or to T=number when TOOL is absent. T is
// not parsed when TOOL is given.
func (c *commands) selectTool(ctx context.Context, cmd *Command) error {
	restore := cmd.Get("RESTORE_AXIS", tool.DefaultRestoreAxis)
	if name := cmd.Get("TOOL", ""); name != "" {
		tl, err := c.tc.ToolByName(name)
		if err != nil {
			return err
		}
		return c.tc.SelectTool(ctx, tl, restore)
	}
	tl, ok, err := c.numbered(cmd, "Select tool: T%d not found")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: Either TOOL or T needs to be specified", ErrMissingParam)
	}
	return c.tc.SelectTool(ctx, tl, restore)
}

func (c *commands) unselectTool(ctx context.Context, cmd *Command) error {
	return c.tc.SelectTool(ctx, nil, cmd.Get("RESTORE_AXIS", ""))
}

func (c *commands) selectToolError(ctx context.Context, cmd *Command) error {
	return c.tc.Abort(ctx, cmd.Get("MESSAGE", ""))
}

func (c *commands) assignTool(ctx context.Context, cmd *Command) error {
	name, err := cmd.Require("TOOL")
	if err != nil {
		return err
	}
	tl, err := c.tc.ToolByName(name)
	if err != nil {
		return err
	}
	if !cmd.Has("N") {
		return fmt.Errorf("%w: %s requires N", ErrMissingParam, cmd.Name)
	}
	number, err := cmd.GetInt("N", 0, 0)
	if err != nil {
		return err
	}

	if err := c.tc.AssignTool(ctx, tl, number, true); err != nil {
		return err
	}
	c.registerShortcut(tl)
	return nil
}

func (c *commands) status(ctx context.Context, _ *Command) error {
	s := c.tc.Status()
	active := s.Tool
	if active == "" {
		active = "none"
	}
	line := fmt.Sprintf("%s: status=%s tool=%s tool_number=%d tools=%s",
		s.Name, s.Status, active, s.ToolNumber, formatRegistry(s.ToolNumbers, s.ToolNames))
	if s.ErrorMessage != "" {
		line += fmt.Sprintf(" error=%q", s.ErrorMessage)
	}
	c.d.Respond(ctx, line)

	for _, tl := range c.tc.Tools() {
		ts := c.tc.ToolStatus(tl)
		c.d.Respond(ctx, fmt.Sprintf("  %s: tool_number=%d active=%t offset=%g,%g,%g extruder=%s fan=%s",
			ts.Name, ts.Number, ts.Active, ts.OffsetX, ts.OffsetY, ts.OffsetZ,
			orDash(ts.Extruder), orDash(ts.Fan)))
	}
	return nil
}

func formatRegistry(numbers []int, names []string) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("T%d=%s", n, names[i])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
