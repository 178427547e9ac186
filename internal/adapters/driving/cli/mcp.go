package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/strata-cli/internal/adapters/driving/mcp"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes a "research" tool that runs the research loop, a
"list_runs" tool, and resources for recorded runs:
  strata://runs
  strata://runs/{runId}/versions/{seq}
  strata://runs/{runId}/report

By default the server communicates over stdio using JSON-RPC. Use --port to
serve over HTTP instead. Prompt files under ~/.strata/prompts are reloaded
when they change while the server is running.

Examples:
  # Stdio mode (default, for desktop assistants)
  strata mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  strata mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	research, closeFn, err := openResearch()
	if err != nil {
		return err
	}
	defer closeFn()

	server, err := mcp.NewServer(&mcp.Ports{
		Research: research,
		History:  historyService,
		Settings: settingsService,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if promptWatcher != nil {
		if err := promptWatcher.Start(ctx); err != nil {
			logger.Warn("Prompt reloading disabled: %v", err)
		} else {
			defer promptWatcher.Stop() //nolint:errcheck // best effort on shutdown
		}
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
