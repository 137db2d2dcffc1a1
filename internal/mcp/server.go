package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/logging"
)

// ServerName is reported to MCP clients during initialization
const ServerName = "slotfill"

// Server exposes the uploader as MCP tools over stdio
type Server struct {
	uploader Uploader
	store    Pinger
	audit    *audit.Logger
	logger   *zap.Logger
	options  *ServerOptions
	mcp      *server.MCPServer

	// Rate limiting
	rateLimiter *RateLimiter

	sessionID string
	startTime time.Time
}

// ServerOptions configuration for the server
type ServerOptions struct {
	// BatchMode and AutoApprove let submit_assignments write without a
	// confirmed flag from the client.
	BatchMode   bool
	AutoApprove bool
	Timeout     time.Duration // per tool call
	RateLimit   int           // requests per minute
	HourlyLimit int           // requests per hour
	Version     string
}

// NewServer creates a new MCP server
func NewServer(uploader Uploader, store Pinger, auditLogger *audit.Logger, logger *zap.Logger, options *ServerOptions) *Server {
	if options == nil {
		options = &ServerOptions{
			Timeout:   30 * time.Second,
			RateLimit: 60,
		}
	}
	if options.Version == "" {
		options.Version = "dev"
	}

	s := &Server{
		uploader:    uploader,
		store:       store,
		audit:       auditLogger,
		logger:      logging.OrNop(logger).Named("mcp"),
		options:     options,
		rateLimiter: NewRateLimiter(options.RateLimit, options.HourlyLimit),
		sessionID:   "mcp-" + uuid.NewString(),
		startTime:   time.Now(),
	}

	s.mcp = server.NewMCPServer(ServerName, options.Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithToolHandlerMiddleware(s.guard),
		server.WithRecovery(),
	)
	s.registerTools()
	s.registerPrompts()
	return s
}

// MCPServer returns the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Start serves MCP on stdin and stdout until ctx is cancelled or stdin closes
func (s *Server) Start(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.audit.LogSystem(audit.EventStartup, "MCP server started", map[string]interface{}{
		"session_id": s.sessionID,
		"batch_mode": s.options.BatchMode,
	})
	s.logger.Info("serving MCP on stdio", zap.String("session_id", s.sessionID))

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	err := stdio.Listen(ctx, in, out)

	s.audit.LogSystem(audit.EventShutdown, "MCP server stopped", map[string]interface{}{
		"session_id": s.sessionID,
		"duration":   time.Since(s.startTime).String(),
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// guard rate limits, times out and audits every tool call
func (s *Server) guard(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool := req.Params.Name
		if !s.rateLimiter.Allow(tool) {
			s.audit.Log(&audit.AuditEvent{
				Type:     audit.EventRateLimited,
				Severity: audit.SeverityWarning,
				Source:   "mcp",
				Resource: tool,
				Action:   "tools/call",
				Result:   "DENIED",
			})
			return mcp.NewToolResultError("Rate limit exceeded"), nil
		}

		if s.options.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
			defer cancel()
		}

		start := time.Now()
		result, err := next(ctx, req)

		event := &audit.AuditEvent{
			Type:     audit.EventToolCall,
			Severity: audit.SeverityInfo,
			Source:   "mcp",
			Resource: tool,
			Action:   "tools/call",
			Result:   "SUCCESS",
			Details: map[string]interface{}{
				"session_id": s.sessionID,
				"duration":   time.Since(start).String(),
			},
		}
		if err != nil || (result != nil && result.IsError) {
			event.Severity = audit.SeverityWarning
			event.Result = "FAILED"
		}
		s.audit.Log(event)
		return result, err
	}
}
