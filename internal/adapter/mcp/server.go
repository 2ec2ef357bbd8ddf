// Package mcp exposes the review workflow to AI agents over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/humancheck/humancheck/internal/domain/review"
)

// ReviewWorkflow is the slice of the review service the MCP tools need.
type ReviewWorkflow interface {
	Create(ctx context.Context, req *review.CreateRequest) (*review.Review, error)
	Get(ctx context.Context, id string) (*review.Review, error)
	GetDecision(ctx context.Context, reviewID string) (*review.Decision, error)
	AwaitDecision(ctx context.Context, reviewID string, timeout time.Duration) (*review.Decision, error)
}

// ServerConfig holds the MCP server configuration.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string // empty disables auth
}

// ServerDeps holds the service dependencies the tools call into.
type ServerDeps struct {
	Reviews ReviewWorkflow
}

// Server hosts the MCP tools over streamable HTTP.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves the MCP endpoint in the background.
func (s *Server) Start() error {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           AuthMiddleware(s.cfg.APIKey, streamable),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the MCP endpoint down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
