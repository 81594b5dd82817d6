package urlguard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultProbeTimeout is the hard limit on one HEAD probe.
const DefaultProbeTimeout = 5 * time.Second

// ProbeKind discriminates probe outcomes.
type ProbeKind int

const (
	ProbeNoRedirect ProbeKind = iota
	ProbeRedirect
	// ProbeFailed covers transport errors and timeouts.
	ProbeFailed
	// ProbeBlocked means the guarded dialer refused the destination.
	ProbeBlocked
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeRedirect:
		return "redirect"
	case ProbeFailed:
		return "failed"
	case ProbeBlocked:
		return "blocked"
	default:
		return "no_redirect"
	}
}

// ProbeResult is the outcome of one probe. Target is set only for
// ProbeRedirect and is always absolute.
type ProbeResult struct {
	Kind   ProbeKind
	Target string
	Err    error
}

// Prober discovers whether a URL redirects.
type Prober interface {
	Probe(ctx context.Context, rawURL string) ProbeResult
}

// RedirectProbe issues a single HEAD request and reports a 3xx Location
// without following it or reading a body.
type RedirectProbe struct {
	client  *http.Client
	timeout time.Duration
}

// NewRedirectProbe builds a probe over transport. A nil transport dials
// through a GuardedDialer on the default resolver.
func NewRedirectProbe(transport http.RoundTripper, timeout time.Duration) *RedirectProbe {
	if transport == nil {
		transport = NewGuardedTransport(NewGuardedDialer(nil, DefaultDNSTimeout))
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &RedirectProbe{
		client: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

// Probe implements Prober.
func (p *RedirectProbe) Probe(ctx context.Context, rawURL string) ProbeResult {
	// Cancelling the context tears down the in-flight request on timeout.
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ProbeResult{Kind: ProbeFailed, Err: err}
	}
	req.Header.Set("User-Agent", "deckguard-probe/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedDial) {
			return ProbeResult{Kind: ProbeBlocked, Err: err}
		}
		return ProbeResult{Kind: ProbeFailed, Err: err}
	}
	_ = resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return ProbeResult{Kind: ProbeNoRedirect}
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return ProbeResult{Kind: ProbeNoRedirect}
	}
	// Any Location that parses becomes the next hop, host or not: file:,
	// mailto: and javascript: targets are rejected there.
	target, err := req.URL.Parse(loc)
	if err != nil {
		return ProbeResult{Kind: ProbeNoRedirect}
	}
	target.Fragment, target.RawFragment = "", ""
	return ProbeResult{Kind: ProbeRedirect, Target: target.String()}
}
