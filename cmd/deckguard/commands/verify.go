package commands

import (
	"fmt"

	"github.com/deckguard/deckguard/internal/config"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Validate the deckguard configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validation error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config %s is valid\n", cfgFile)
			fmt.Fprintf(out, "  Port: %d\n", cfg.Server.Port)
			fmt.Fprintf(out, "  Probe timeout: %s\n", cfg.Guard.ProbeTimeout)
			fmt.Fprintf(out, "  Strict probe: %v\n", cfg.Guard.StrictProbe)
			fmt.Fprintf(out, "  Blocked hosts: %d\n", len(cfg.Guard.BlockedHosts))
			fmt.Fprintf(out, "  DNS cache: %s (ttl %s)\n", cfg.DNSCache.Backend, cfg.DNSCache.TTL)
			fmt.Fprintf(out, "  Audit: %s (retention %d days)\n", cfg.Audit.Path, cfg.Audit.RetentionDays)
			fmt.Fprintf(out, "  Webhooks: %d\n", len(cfg.Webhooks))
			return nil
		},
	}
}
