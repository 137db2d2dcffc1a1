package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/contentops/slotfill/internal/mcp"
)

var (
	serveBatch       bool
	serveAutoApprove bool
	serveTimeout     time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI agents can discover image
slots and assign images.

The server communicates over stdio (stdin/stdout) using the MCP protocol. Logs
go to stderr.

Examples:
  # Start server; writes need a confirmation round trip
  slotfill serve

  # Let agents write without confirmation (use with caution!)
  slotfill serve --auto-approve --timeout 30s`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Ensure serve command outputs to stderr (important for MCP protocol)
	serveCmd.SetOut(os.Stderr)
	serveCmd.SetErr(os.Stderr)

	serveCmd.Flags().BoolVar(&serveBatch, "batch", false, "enable batch mode (no confirmation round trip)")
	serveCmd.Flags().BoolVar(&serveAutoApprove, "auto-approve", false, "auto-approve all writes (dangerous)")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 0, "per tool call timeout (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	timeout := env.cfg.Server.Timeout
	if serveTimeout > 0 {
		timeout = serveTimeout
	}

	server := mcp.NewServer(env.service, env.store, env.audit, env.logger, &mcp.ServerOptions{
		BatchMode:   serveBatch || env.cfg.Security.BatchMode,
		AutoApprove: serveAutoApprove || env.cfg.Security.AutoApprove,
		Timeout:     timeout,
		RateLimit:   env.cfg.Server.RateLimit.RequestsPerMinute,
		HourlyLimit: env.cfg.Server.RateLimit.RequestsPerHour,
		Version:     version,
	})

	ctx, cancel := signalContext()
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
