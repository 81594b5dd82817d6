package urlguard

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRedirects is the number of redirects a chain may follow.
const MaxRedirects = 3

// Hop records one validated step of a chain. Target is empty on the
// final hop.
type Hop struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Target string `json:"target,omitempty"`
}

// ChainValidator validates a URL and every redirect it leads to. Hops run
// strictly in sequence: hop N+1 starts only after hop N is validated and
// probed.
type ChainValidator struct {
	single      *Validator
	probe       Prober
	strictProbe bool
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewChainValidator wires a chain. With strictProbe, a probe that fails in
// transport rejects the URL instead of ending the chain as accepted.
func NewChainValidator(single *Validator, probe Prober, strictProbe bool, tracer trace.Tracer, logger *slog.Logger) *ChainValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainValidator{
		single:      single,
		probe:       probe,
		strictProbe: strictProbe,
		tracer:      tracer,
		logger:      logger,
	}
}

// ValidateChain runs the validate, probe, follow loop until the chain is
// accepted or rejected. The hops walked so far are returned either way.
func (c *ChainValidator) ValidateChain(ctx context.Context, raw string) (Verdict, []Hop) {
	ctx, span := c.tracer.Start(ctx, "urlguard.chain")
	defer span.End()

	verdict, hops := c.walk(ctx, raw)
	span.SetAttributes(
		attribute.String("urlguard.verdict", verdict.Label()),
		attribute.Int("urlguard.hops", len(hops)),
	)
	if !verdict.Valid {
		span.SetStatus(codes.Error, string(verdict.Reason))
	}
	return verdict, hops
}

func (c *ChainValidator) walk(ctx context.Context, raw string) (Verdict, []Hop) {
	visited := make(map[string]struct{})
	var hops []Hop
	current := raw

	for hop := 0; ; hop++ {
		verdict, u, probe := c.step(ctx, hop, current, visited)
		if !verdict.Valid {
			return verdict, hops
		}

		h := Hop{Index: hop, URL: current}
		switch probe.Kind {
		case ProbeRedirect:
			h.Target = probe.Target
			hops = append(hops, h)
			current = probe.Target
			continue
		case ProbeBlocked:
			c.logger.Warn("probe refused blocked destination", "host", u.Hostname(), "error", probe.Err)
			return Reject(ReasonIPNotAllowed), hops
		case ProbeFailed:
			// A cancelled caller must not turn into an accept.
			if ctx.Err() != nil || c.strictProbe {
				c.logger.Debug("probe failed, rejecting", "host", u.Hostname(), "error", probe.Err)
				return Reject(ReasonValidationError), hops
			}
			c.logger.Debug("probe failed, treating as no redirect", "host", u.Hostname(), "error", probe.Err)
		}
		hops = append(hops, h)
		return Accept(), hops
	}
}

// step validates the hop, applies the hop limit and loop guard, and probes.
func (c *ChainValidator) step(ctx context.Context, hop int, current string, visited map[string]struct{}) (Verdict, *url.URL, ProbeResult) {
	ctx, span := c.tracer.Start(ctx, "urlguard.hop", trace.WithAttributes(attribute.Int("urlguard.hop", hop)))
	defer span.End()

	u, verdict := c.single.check(ctx, current)
	if !verdict.Valid {
		span.SetAttributes(attribute.String("urlguard.reason", string(verdict.Reason)))
		return verdict, nil, ProbeResult{}
	}
	span.SetAttributes(attribute.String("net.peer.name", u.Hostname()))

	if hop > MaxRedirects {
		return Reject(ReasonTooManyRedirects), u, ProbeResult{}
	}
	key := visitKey(u)
	if _, seen := visited[key]; seen {
		return Reject(ReasonRedirectLoop), u, ProbeResult{}
	}
	visited[key] = struct{}{}

	probe := c.probe.Probe(ctx, u.String())
	span.SetAttributes(attribute.String("urlguard.probe", probe.Kind.String()))
	return Accept(), u, probe
}

// visitKey identifies a URL for loop detection: host case and fragment
// do not make a different destination.
func visitKey(u *url.URL) string {
	k := *u
	k.Host = strings.ToLower(k.Host)
	k.Fragment, k.RawFragment = "", ""
	return k.String()
}
