package urlguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCacheTTL is how long a positive DNS answer is reused.
	DefaultCacheTTL = 30 * time.Second
	// MaxCacheTTL caps configured TTLs; longer reuse widens the rebinding window.
	MaxCacheTTL = 5 * time.Minute
)

// CacheStore persists positive DNS answers.
type CacheStore interface {
	Get(ctx context.Context, host string) ([]net.IPAddr, bool, error)
	Set(ctx context.Context, host string, addrs []net.IPAddr, ttl time.Duration) error
}

// CachingResolver reuses successful lookups for a short TTL. Failed and
// empty lookups are never stored, and a store error falls through to a
// live lookup. Answers are classified by the validator on every call
// whether they came from the cache or not.
type CachingResolver struct {
	next   Resolver
	store  CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingResolver wraps next. ttl is clamped to (0, MaxCacheTTL].
func NewCachingResolver(next Resolver, store CacheStore, ttl time.Duration, logger *slog.Logger) *CachingResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingResolver{next: next, store: store, ttl: ttl, logger: logger}
}

// LookupIPAddr implements Resolver.
func (c *CachingResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	addrs, ok, err := c.store.Get(ctx, host)
	if err != nil {
		c.logger.Warn("dns cache read failed", "host", host, "error", err)
	} else if ok && len(addrs) > 0 {
		return addrs, nil
	}

	addrs, err = c.next.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return addrs, err
	}
	if err := c.store.Set(ctx, host, addrs, c.ttl); err != nil {
		c.logger.Warn("dns cache write failed", "host", host, "error", err)
	}
	return addrs, nil
}

// MemoryStore is an in-process CacheStore.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates a store that sweeps expired entries every minute.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(DefaultCacheTTL, time.Minute)}
}

// Get implements CacheStore.
func (m *MemoryStore) Get(_ context.Context, host string) ([]net.IPAddr, bool, error) {
	v, ok := m.c.Get(host)
	if !ok {
		return nil, false, nil
	}
	addrs, ok := v.([]net.IPAddr)
	if !ok {
		return nil, false, nil
	}
	return cloneAddrs(addrs), true, nil
}

// Set implements CacheStore.
func (m *MemoryStore) Set(_ context.Context, host string, addrs []net.IPAddr, ttl time.Duration) error {
	m.c.Set(host, cloneAddrs(addrs), ttl)
	return nil
}

// RedisStore shares cached answers between deckguard instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. Keys are prefix+host.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "deckguard:dns:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements CacheStore.
func (r *RedisStore) Get(ctx context.Context, host string) ([]net.IPAddr, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+host).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var ips []string
	if err := json.Unmarshal(raw, &ips); err != nil {
		return nil, false, fmt.Errorf("decoding cached answer: %w", err)
	}
	addrs := make([]net.IPAddr, 0, len(ips))
	for _, s := range ips {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, false, fmt.Errorf("decoding cached address %q: %w", s, err)
		}
		addrs = append(addrs, net.IPAddr{IP: a.AsSlice(), Zone: a.Zone()})
	}
	return addrs, true, nil
}

// Set implements CacheStore.
func (r *RedisStore) Set(ctx context.Context, host string, addrs []net.IPAddr, ttl time.Duration) error {
	ips := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, addrFromIP(a).String())
	}
	data, err := json.Marshal(ips)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+host, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func cloneAddrs(in []net.IPAddr) []net.IPAddr {
	out := make([]net.IPAddr, len(in))
	for i, a := range in {
		out[i] = net.IPAddr{IP: append(net.IP(nil), a.IP...), Zone: a.Zone}
	}
	return out
}
