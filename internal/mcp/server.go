// Package mcp exposes public event data to agents over the Model Context
// Protocol.
package mcp

import (
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/mcp/resources"
	"github.com/Togather-Foundation/gatherings/internal/mcp/tools"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the read-only event tools and the API
// description resource.
type Server struct {
	mcp       *mcpserver.MCPServer
	events    *tools.EventTools
	resources *resources.APIResources
}

// Config holds configuration for the MCP server.
type Config struct {
	Name    string
	Version string
	// BaseURL prefixes the event links returned by tools.
	BaseURL string
}

func NewServer(cfg Config, eventsService *events.Service, openAPI resources.DocumentLoader) *Server {
	mcpServer := mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("Query public community events: list them with filters, fetch one by id, and read the REST API description."),
	)

	srv := &Server{
		mcp:       mcpServer,
		events:    tools.NewEventTools(eventsService, cfg.BaseURL),
		resources: resources.NewAPIResources(openAPI),
	}
	srv.registerTools()
	srv.registerResources()
	return srv
}

// MCPServer returns the underlying MCP server for use with transports.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(s.events.ListEventsTool(), s.events.ListEventsHandler)
	s.mcp.AddTool(s.events.GetEventTool(), s.events.GetEventHandler)
}

func (s *Server) registerResources() {
	s.mcp.AddResource(s.resources.OpenAPIResource(), s.resources.OpenAPIHandler)
}
