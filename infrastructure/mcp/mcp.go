// Package mcp exposes the toolchanger command surface over the Model Context
// Protocol using github.com/felixgeelhaar/mcp-go.
//
// Every command tool renders a console command line and runs it through the
// same dispatcher the console uses, so an MCP call and a console line never
// interleave. The status tool reads the snapshot the toolchanger publishes
// after each state change and never touches live state.
package mcp

import (
	mcpgo "github.com/felixgeelhaar/mcp-go"
)

// Middleware installed by the CLI in front of every tool call.
var (
	Recover   = mcpgo.Recover
	RequestID = mcpgo.RequestID
)
