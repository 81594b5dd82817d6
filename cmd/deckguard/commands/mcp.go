package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deckguard/deckguard/internal/audit"
	mcpserver "github.com/deckguard/deckguard/internal/mcp"
	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start deckguard as an MCP server (stdio)",
		Long: `Exposes deckguard as an MCP tool server. Add to your MCP client config:

  {
    "mcpServers": {
      "deckguard": {
        "command": "deckguard",
        "args": ["mcp", "--config", "./deckguard.yaml"]
      }
    }
  }

Tools: validate_image_url, validate_image_urls, preflight_markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// stdout carries the protocol; logs go to stderr only.
			logger := newLogger(os.Stderr, "error")

			factory := newGuardFactory(nil, logger)
			defer factory.Close() //nolint:errcheck // best-effort cleanup

			auditStore, err := audit.NewStore(cfg.Audit.Path, logger)
			if err != nil {
				return fmt.Errorf("opening audit db: %w", err)
			}
			defer func() { _ = auditStore.Close() }()

			checker := preflight.NewChecker(factory.build(cfg), preflight.Options{
				Source: "mcp",
				Audit:  auditStore,
				Logger: logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return mcpserver.Serve(ctx, mcpserver.NewServer(checker, version, logger))
		},
	}
}
