package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deckguard/deckguard/internal/audit"
	"github.com/deckguard/deckguard/internal/config"
	"github.com/deckguard/deckguard/internal/server"
	"github.com/deckguard/deckguard/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port int
	var bind string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deckguard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(os.Stderr, cfg.Server.LogLevel)

			var traceOut io.Writer = os.Stderr
			if cfg.Tracing.Stdout {
				traceOut = os.Stdout
			}
			shutdownTracing, err := tracing.Setup(cfg.Tracing, traceOut, version)
			if err != nil {
				return err
			}
			defer func() { _ = shutdownTracing(context.Background()) }()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			factory := newGuardFactory(reg, logger)
			defer factory.Close() //nolint:errcheck // best-effort cleanup
			guard := factory.build(cfg)

			store, err := audit.NewStore(cfg.Audit.Path, logger)
			if err != nil {
				return fmt.Errorf("opening audit db: %w", err)
			}

			webhooks := server.NewWebhookNotifier(cfg.Webhooks, guard.Single(), nil, logger)

			srv, err := server.NewServer(cfg, server.Deps{
				Guard:    guard,
				Audit:    store,
				Webhooks: webhooks,
				Gatherer: reg,
				Version:  version,
			}, logger)
			if err != nil {
				_ = store.Close()
				return err
			}

			printBanner(cmd.OutOrStdout(), cfg, webhooks.Len())

			// Graceful shutdown on SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				go func() {
					err := config.Watch(ctx, cfgFile, func(next *config.Config) {
						srv.SetGuard(factory.build(next))
						logger.Info("guard reloaded",
							"strict_probe", next.Guard.StrictProbe,
							"blocked_hosts", len(next.Guard.BlockedHosts),
							"dns_cache", next.DNSCache.Backend,
						)
					}, logger)
					if err != nil {
						logger.Warn("config hot reload disabled", "error", err)
					}
				}()
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "address to bind (default: 127.0.0.1)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload guard settings when the config file changes")
	return cmd
}

func printBanner(w io.Writer, cfg *config.Config, webhooks int) {
	bindAddr := cfg.Server.Bind
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}

	mode := "fail-open probe"
	if cfg.Guard.StrictProbe {
		mode = "strict probe"
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  deckguard")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Validate:   http://%s:%d/v1/validate\n", bindAddr, cfg.Server.Port)
	fmt.Fprintf(w, "  Preflight:  http://%s:%d/v1/preflight\n", bindAddr, cfg.Server.Port)
	fmt.Fprintf(w, "  Health:     http://%s:%d/health\n", bindAddr, cfg.Server.Port)
	fmt.Fprintf(w, "  Metrics:    http://%s:%d/metrics\n", bindAddr, cfg.Server.Port)
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Mode: %s  |  DNS cache: %s  |  Webhooks: %d\n", mode, cfg.DNSCache.Backend, webhooks)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}
