package urlguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Resolver looks up every A and AAAA record for a host. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DefaultDNSTimeout bounds a single lookup when the caller's context has
// no earlier deadline.
const DefaultDNSTimeout = 5 * time.Second

// ErrNoAddresses is returned when a lookup succeeds with an empty answer.
var ErrNoAddresses = errors.New("no addresses")

// resolve runs one bounded lookup and returns all answers.
func resolve(ctx context.Context, r Resolver, host string, timeout time.Duration) ([]net.IPAddr, error) {
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolving %q: %w", host, ErrNoAddresses)
	}
	return addrs, nil
}

// StaticResolver answers from a fixed table. Hosts missing from the table
// fail to resolve. Used by tests and the offline CLI mode.
type StaticResolver map[string][]string

// LookupIPAddr implements Resolver.
func (s StaticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := s[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}
