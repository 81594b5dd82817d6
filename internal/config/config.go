package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level deckguard configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Guard     GuardConfig     `yaml:"guard"`
	DNSCache  DNSCacheConfig  `yaml:"dns_cache"`
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Webhooks  []Webhook       `yaml:"webhooks"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"` // Address to bind (default: 127.0.0.1)
	LogLevel string `yaml:"log_level"`
}

// GuardConfig tunes URL validation. The redirect limit is fixed.
type GuardConfig struct {
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	DNSTimeout   time.Duration `yaml:"dns_timeout"`
	Concurrency  int           `yaml:"concurrency"`
	// StrictProbe rejects a URL whose redirect probe fails in transport
	// instead of accepting it as non-redirecting.
	StrictProbe  bool     `yaml:"strict_probe"`
	BlockedHosts []string `yaml:"blocked_hosts,omitempty"` // ".example.com" blocks the domain and subdomains
}

// DNSCacheConfig selects where positive DNS answers are cached.
type DNSCacheConfig struct {
	Backend string        `yaml:"backend"` // none, memory, redis
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
}

// RedisConfig locates the shared cache.
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	DB     int    `yaml:"db"`
	Prefix string `yaml:"prefix,omitempty"`
}

// AuditConfig configures the verdict log.
type AuditConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"` // auto-purge entries older than N days (0 = keep forever)
}

// RateLimitConfig bounds API requests per client.
type RateLimitConfig struct {
	PerClient int `yaml:"per_client"` // 0 = unlimited
	WindowS   int `yaml:"window_s"`
}

// Webhook defines an outgoing notification endpoint.
type Webhook struct {
	URL      string   `yaml:"url"`
	Events   []string `yaml:"events"`             // url_rejected
	Template string   `yaml:"template,omitempty"` // plain text with {{URL}}, {{REASON}}, {{SOURCE}}, {{TIMESTAMP}}
}

// TracingConfig enables OpenTelemetry spans.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	Stdout  bool `yaml:"stdout"`
}

// Load reads and parses a deckguard config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply zero-value defaults after unmarshal
	cfg.applyDefaults()
	return cfg, nil
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Port:     8080,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Guard: GuardConfig{
			ProbeTimeout: 5 * time.Second,
			DNSTimeout:   5 * time.Second,
			Concurrency:  8,
		},
		DNSCache: DNSCacheConfig{
			Backend: "memory",
			TTL:     30 * time.Second,
		},
		Audit: AuditConfig{
			Path:          "deckguard.db",
			RetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			PerClient: 120,
			WindowS:   60,
		},
	}
}

func (c *Config) applyDefaults() {
	d := Defaults()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
	if c.Guard.ProbeTimeout == 0 {
		c.Guard.ProbeTimeout = d.Guard.ProbeTimeout
	}
	if c.Guard.DNSTimeout == 0 {
		c.Guard.DNSTimeout = d.Guard.DNSTimeout
	}
	if c.Guard.Concurrency == 0 {
		c.Guard.Concurrency = d.Guard.Concurrency
	}
	if c.DNSCache.Backend == "" {
		c.DNSCache.Backend = d.DNSCache.Backend
	}
	if c.DNSCache.TTL == 0 {
		c.DNSCache.TTL = d.DNSCache.TTL
	}
	if c.RateLimit.WindowS == 0 {
		c.RateLimit.WindowS = d.RateLimit.WindowS
	}
}

// Save writes the config to a YAML file at the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the config is consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.Server.LogLevel)
	}
	if c.Guard.ProbeTimeout < 0 || c.Guard.ProbeTimeout > 30*time.Second {
		return fmt.Errorf("guard.probe_timeout %s out of range (0-30s)", c.Guard.ProbeTimeout)
	}
	if c.Guard.DNSTimeout < 0 || c.Guard.DNSTimeout > 30*time.Second {
		return fmt.Errorf("guard.dns_timeout %s out of range (0-30s)", c.Guard.DNSTimeout)
	}
	if c.Guard.Concurrency < 0 || c.Guard.Concurrency > 256 {
		return fmt.Errorf("guard.concurrency %d out of range (1-256)", c.Guard.Concurrency)
	}
	switch c.DNSCache.Backend {
	case "none", "memory":
	case "redis":
		if c.DNSCache.Redis.Addr == "" {
			return fmt.Errorf("dns_cache.redis.addr is required when backend is redis")
		}
	default:
		return fmt.Errorf("invalid dns_cache.backend %q", c.DNSCache.Backend)
	}
	if c.DNSCache.TTL < 0 || c.DNSCache.TTL > 5*time.Minute {
		return fmt.Errorf("dns_cache.ttl %s out of range (0-5m)", c.DNSCache.TTL)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}
	if c.RateLimit.PerClient < 0 || c.RateLimit.WindowS < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook %d has no url", i)
		}
		for _, ev := range wh.Events {
			if ev != EventURLRejected {
				return fmt.Errorf("webhook %q has unknown event %q", wh.URL, ev)
			}
		}
	}
	return nil
}

// EventURLRejected is the only webhook event deckguard emits.
const EventURLRejected = "url_rejected"
