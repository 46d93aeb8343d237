// Package mcp exposes plug control as Model Context Protocol tools over
// stdio, so LLM agents can inspect and switch devices.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/sebmichel83/mydlink-hub/pkg/device"
	"github.com/sebmichel83/mydlink-hub/pkg/device/schema"
)

// Server wraps the MCP server with the hub's device control functionality
type Server struct {
	mcpServer  *server.MCPServer
	controller device.Controller
	validator  *schema.Validator
}

// NewServer creates a new MCP server for device control
func NewServer(controller device.Controller, validator *schema.Validator) *Server {
	s := &Server{
		controller: controller,
		validator:  validator,
	}

	s.mcpServer = server.NewMCPServer(
		"mydlink-hub",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
