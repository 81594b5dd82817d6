package commands

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/deckguard/deckguard/internal/config"
	"github.com/deckguard/deckguard/internal/urlguard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// guardFactory builds Guards from config. Metrics and the DNS cache outlive
// any single Guard so a config reload keeps counters and warm entries.
type guardFactory struct {
	mu      sync.Mutex
	base    urlguard.Resolver
	prober  urlguard.Prober // nil probes over the network
	metrics *urlguard.Metrics
	memory  *urlguard.MemoryStore
	redis   *redis.Client
	redisOf config.RedisConfig
	logger  *slog.Logger
}

// newGuardFactory creates a factory. reg may be nil when metrics are not
// exported.
func newGuardFactory(reg prometheus.Registerer, logger *slog.Logger) *guardFactory {
	f := &guardFactory{
		base:   net.DefaultResolver,
		memory: urlguard.NewMemoryStore(),
		logger: logger,
	}
	if reg != nil {
		f.metrics = urlguard.NewMetrics(reg)
	}
	return f
}

// build returns a Guard for cfg.
func (f *guardFactory) build(cfg *config.Config) *urlguard.Guard {
	return urlguard.New(urlguard.Options{
		Resolver:     f.resolver(cfg.DNSCache),
		Prober:       f.prober,
		BlockedHosts: cfg.Guard.BlockedHosts,
		ProbeTimeout: cfg.Guard.ProbeTimeout,
		DNSTimeout:   cfg.Guard.DNSTimeout,
		Concurrency:  cfg.Guard.Concurrency,
		StrictProbe:  cfg.Guard.StrictProbe,
		Metrics:      f.metrics,
		Logger:       f.logger,
	})
}

func (f *guardFactory) resolver(c config.DNSCacheConfig) urlguard.Resolver {
	switch c.Backend {
	case "memory":
		return urlguard.NewCachingResolver(f.base, f.memory, c.TTL, f.logger)
	case "redis":
		return urlguard.NewCachingResolver(f.base, urlguard.NewRedisStore(f.redisClient(c.Redis), c.Redis.Prefix), c.TTL, f.logger)
	default:
		return f.base
	}
}

// redisClient returns a client for rc, replacing the current one when the
// address or database changed.
func (f *guardFactory) redisClient(rc config.RedisConfig) *redis.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.redis != nil && f.redisOf.Addr == rc.Addr && f.redisOf.DB == rc.DB {
		return f.redis
	}
	if f.redis != nil {
		old := f.redis
		// In-flight lookups on the previous guard still hold the old client.
		time.AfterFunc(time.Minute, func() { _ = old.Close() })
	}
	f.redis = redis.NewClient(&redis.Options{Addr: rc.Addr, DB: rc.DB})
	f.redisOf = rc

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.redis.Ping(ctx).Err(); err != nil {
		// Lookups fall through to DNS while Redis is unreachable.
		f.logger.Warn("dns cache redis unreachable", "addr", rc.Addr, "error", err)
	}
	return f.redis
}

// Close releases the Redis client, if any.
func (f *guardFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redis == nil {
		return nil
	}
	return f.redis.Close()
}
