// Package server exposes image URL validation and deck preflight over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/deckguard/deckguard/internal/audit"
	"github.com/deckguard/deckguard/internal/config"
	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/deckguard/deckguard/internal/urlguard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators a Server is wired with. Audit and Webhooks
// are optional.
type Deps struct {
	Guard    *urlguard.Guard
	Audit    *audit.Store
	Webhooks *WebhookNotifier
	Gatherer prometheus.Gatherer
	Version  string
}

// Server is the deckguard HTTP API server.
type Server struct {
	cfg      *config.Config
	srv      *http.Server
	ln       net.Listener
	handler  http.Handler
	checker  atomic.Pointer[preflight.Checker]
	audit    *audit.Store
	webhooks *WebhookNotifier
	limiter  *RateLimiter
	version  string
	logger   *slog.Logger
	bg       context.Context
	stop     context.CancelFunc
}

// NewServer wires the routes and binds the listener.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Guard == nil {
		return nil, errors.New("server: guard is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:      cfg,
		audit:    deps.Audit,
		webhooks: deps.Webhooks,
		limiter:  NewRateLimiter(cfg.RateLimit.PerClient, cfg.RateLimit.WindowS),
		version:  deps.Version,
		logger:   logger,
	}
	s.bg, s.stop = context.WithCancel(context.Background())
	s.SetGuard(deps.Guard)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	mux.HandleFunc("POST /v1/preflight", s.handlePreflight)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	var h http.Handler = mux
	h = limitBody(h)
	h = rateLimit(s.limiter)(h)
	h = securityHeaders(h)
	h = logging(logger)(h)
	h = recovery(logger)(h)
	h = requestID(h)
	s.handler = h

	// Bind to 127.0.0.1 by default (localhost only).
	bind := cfg.Server.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}

	// Try configured port, auto-find next available if busy.
	ln, actualPort, err := listenAutoPort(bind, cfg.Server.Port, logger)
	if err != nil {
		return nil, fmt.Errorf("binding port: %w", err)
	}
	cfg.Server.Port = actualPort
	s.ln = ln

	s.srv = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Preflight of a large deck can walk many redirect chains.
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
	return s, nil
}

// SetGuard swaps the guard used by subsequent requests. In-flight
// requests finish with the guard they started with.
func (s *Server) SetGuard(g *urlguard.Guard) {
	opts := preflight.Options{Source: "api", Logger: s.logger}
	if s.audit != nil {
		opts.Audit = s.audit
	}
	if s.webhooks != nil {
		opts.Notifier = s.webhooks
	}
	s.checker.Store(preflight.NewChecker(g, opts))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// listenAutoPort tries the configured port; if busy, scans up to 10 higher ports.
func listenAutoPort(bind string, port int, logger *slog.Logger) (net.Listener, int, error) {
	addr := net.JoinHostPort(bind, fmt.Sprint(port))
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		// When port is 0, the OS assigns a random port; return the actual port.
		actual := ln.Addr().(*net.TCPAddr).Port
		return ln, actual, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, 0, err
	}

	logger.Warn("port in use, searching for available port", "port", port)
	for offset := 1; offset <= 10; offset++ {
		tryPort := port + offset
		ln, err = net.Listen("tcp", net.JoinHostPort(bind, fmt.Sprint(tryPort)))
		if err == nil {
			logger.Info("using alternative port", "original", port, "actual", tryPort)
			return ln, tryPort, nil
		}
	}
	return nil, 0, fmt.Errorf("port %d and next 10 ports are all in use", port)
}

// Port returns the actual port the server is bound to.
func (s *Server) Port() int {
	return s.cfg.Server.Port
}

// housekeeping sweeps idle rate-limit counters and purges expired audit
// entries.
func (s *Server) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	s.purgeAudit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Sweep()
			s.purgeAudit()
		}
	}
}

func (s *Server) purgeAudit() {
	if s.audit == nil || s.cfg.Audit.RetentionDays <= 0 {
		return
	}
	n, err := s.audit.PurgeOlderThan(s.cfg.Audit.RetentionDays)
	if err != nil {
		s.logger.Error("audit purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("purged audit entries", "count", n, "retention_days", s.cfg.Audit.RetentionDays)
	}
}

// Start begins listening. Blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("deckguard server starting",
		"addr", s.ln.Addr().String(),
		"strict_probe", s.cfg.Guard.StrictProbe,
		"dns_cache", s.cfg.DNSCache.Backend,
		"rate_limit", s.cfg.RateLimit.PerClient,
	)

	go s.housekeeping(s.bg)

	err := s.srv.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and closes the audit store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	s.stop()
	err := s.srv.Shutdown(ctx)
	if s.audit != nil {
		if cerr := s.audit.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
