package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"
)

// ErrBlockedDial is returned when a connection target is in a blocked range.
var ErrBlockedDial = errors.New("destination address is blocked")

// GuardedDialer resolves and classifies at connect time, then connects to
// the validated IP rather than re-resolving the name. This closes the
// window where a name validated a moment ago is rebound to an internal
// address before the connection is made.
type GuardedDialer struct {
	resolver   Resolver
	dnsTimeout time.Duration
	dialer     *net.Dialer
}

// NewGuardedDialer creates a dialer. A nil resolver uses net.DefaultResolver.
func NewGuardedDialer(resolver Resolver, dnsTimeout time.Duration) *GuardedDialer {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &GuardedDialer{
		resolver:   resolver,
		dnsTimeout: dnsTimeout,
		dialer:     &net.Dialer{Timeout: 5 * time.Second},
	}
}

// DialContext has the signature http.Transport expects.
func (d *GuardedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		if block, blocked := MatchAddr(ip); blocked {
			return nil, fmt.Errorf("%w: %s (%s)", ErrBlockedDial, host, block)
		}
		return d.dialer.DialContext(ctx, network, addr)
	}

	answers, err := resolve(ctx, d.resolver, host, d.dnsTimeout)
	if err != nil {
		return nil, err
	}
	// Reject if ANY resolved IP is in a blocked range
	for _, a := range answers {
		ip := addrFromIP(a)
		if block, blocked := MatchAddr(ip); blocked {
			return nil, fmt.Errorf("%w: %s resolves to %s (%s)", ErrBlockedDial, host, ip, block)
		}
	}

	var lastErr error
	for _, a := range answers {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(addrFromIP(a).String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// NewGuardedTransport returns a transport that only connects through d.
// Environment proxies are ignored: a proxy would make the connection on
// our behalf and skip the address check.
func NewGuardedTransport(d *GuardedDialer) *http.Transport {
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           d.DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
