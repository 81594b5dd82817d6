package urlguard

import (
	"context"
	"log/slog"
	"net/netip"
	"net/url"
	"time"
)

// MaxURLLength is the longest URL accepted, in bytes.
const MaxURLLength = 2048

// Validator checks exactly one URL without following redirects.
type Validator struct {
	hosts      *HostnameClassifier
	resolver   Resolver
	dnsTimeout time.Duration
	logger     *slog.Logger
}

// NewValidator creates a single-hop validator. A nil hosts classifier uses
// the built-in deny-list only.
func NewValidator(hosts *HostnameClassifier, resolver Resolver, dnsTimeout time.Duration, logger *slog.Logger) *Validator {
	if hosts == nil {
		hosts = NewHostnameClassifier(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{hosts: hosts, resolver: resolver, dnsTimeout: dnsTimeout, logger: logger}
}

// ValidateURL runs the single-hop checks on raw.
func (v *Validator) ValidateURL(ctx context.Context, raw string) Verdict {
	_, verdict := v.check(ctx, raw)
	return verdict
}

// check validates raw and, on success, returns its parsed form.
func (v *Validator) check(ctx context.Context, raw string) (*url.URL, Verdict) {
	if len(raw) > MaxURLLength {
		return nil, Reject(ReasonURLTooLong)
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil, Reject(ReasonInvalidFormat)
	}
	// Allow-list: http, ftp, file, data, javascript and the rest all land here.
	if u.Scheme != "https" {
		return nil, Reject(ReasonProtocolNotAllowed)
	}
	if u.Opaque != "" || u.Host == "" || u.User != nil {
		return nil, Reject(ReasonInvalidFormat)
	}

	host := NormalizeHostname(u.Hostname())
	if host == "" {
		return nil, Reject(ReasonInvalidFormat)
	}
	if pattern, blocked := v.hosts.Match(host); blocked {
		v.logger.Debug("hostname rejected", "host", host, "pattern", pattern)
		return nil, Reject(ReasonHostnameNotAllowed)
	}

	// IP literals are classified directly; resolving them means nothing.
	if addr, err := netip.ParseAddr(host); err == nil {
		if block, blocked := MatchAddr(addr); blocked {
			v.logger.Debug("ip literal rejected", "host", host, "range", block)
			return nil, Reject(ReasonIPNotAllowed)
		}
		return u, Accept()
	}
	if LooksLikeAlternativeIP(host) {
		v.logger.Debug("alternative ip encoding rejected", "host", host)
		return nil, Reject(ReasonIPNotAllowed)
	}

	addrs, err := resolve(ctx, v.resolver, host, v.dnsTimeout)
	if err != nil {
		v.logger.Debug("resolution failed", "host", host, "error", err)
		return nil, Reject(ReasonResolutionFailure)
	}
	// Every answer must be safe: the renderer may pick any of them.
	for _, a := range addrs {
		addr := addrFromIP(a)
		if block, blocked := MatchAddr(addr); blocked {
			v.logger.Warn("hostname resolves to blocked address",
				"host", host, "addr", addr.String(), "range", block)
			return nil, Reject(ReasonIPNotAllowed)
		}
	}
	return u, Accept()
}
