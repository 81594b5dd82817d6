// Package urlguard vets externally referenced image URLs before a deck is
// rendered. It rejects anything that could make the renderer reach an
// internal destination: non-HTTPS schemes, internal hostnames, private,
// link-local and reserved addresses (directly, through DNS, or through
// IPv4-mapped and alternative encodings), and redirect chains that lead to
// any of those.
//
// Every call returns a Verdict; nothing in this package returns an error
// for a bad URL. Internal failures are recovered and reported as
// ReasonValidationError.
package urlguard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel validations in ValidateImageURLs.
const DefaultConcurrency = 8

// Options configures a Guard. The zero value is usable and resolves with
// the system resolver, probing through a guarded transport.
type Options struct {
	Resolver     Resolver
	Prober       Prober
	Transport    http.RoundTripper // used by the default Prober
	BlockedHosts []string
	ProbeTimeout time.Duration
	DNSTimeout   time.Duration
	Concurrency  int
	StrictProbe  bool
	Metrics      *Metrics
	Tracer       trace.Tracer
	Logger       *slog.Logger
}

// Guard is the entry point for image URL validation. It is safe for
// concurrent use and keeps no state between calls.
type Guard struct {
	chain       *ChainValidator
	single      *Validator
	concurrency int
	metrics     *Metrics
	logger      *slog.Logger
}

// Result is a verdict together with the redirect hops that produced it.
type Result struct {
	URL      string
	Verdict  Verdict
	Hops     []Hop
	Duration time.Duration
}

// New builds a Guard from opts.
func New(opts Options) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	dnsTimeout := opts.DNSTimeout
	if dnsTimeout <= 0 {
		dnsTimeout = DefaultDNSTimeout
	}
	prober := opts.Prober
	if prober == nil {
		transport := opts.Transport
		if transport == nil {
			transport = NewGuardedTransport(NewGuardedDialer(resolver, dnsTimeout))
		}
		prober = NewRedirectProbe(transport, opts.ProbeTimeout)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/deckguard/deckguard/internal/urlguard")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	single := NewValidator(NewHostnameClassifier(opts.BlockedHosts), resolver, dnsTimeout, logger)
	return &Guard{
		chain:       NewChainValidator(single, prober, opts.StrictProbe, tracer, logger),
		single:      single,
		concurrency: concurrency,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Single exposes the one-hop validator, for callers that vet URLs they
// will not follow (webhook endpoints, for example).
func (g *Guard) Single() *Validator {
	return g.single
}

// ValidateImageURL validates raw and every redirect it leads to.
func (g *Guard) ValidateImageURL(ctx context.Context, raw string) Verdict {
	return g.Check(ctx, raw).Verdict
}

// ValidateImageValue validates a loosely typed value such as an element
// of a decoded JSON array. Anything that is not a string is MissingUrl.
func (g *Guard) ValidateImageValue(ctx context.Context, v any) Verdict {
	return g.CheckValue(ctx, v).Verdict
}

// CheckValue is Check for a loosely typed value. A value that is not a
// string is MissingUrl and is reported with its JSON form as the URL.
func (g *Guard) CheckValue(ctx context.Context, v any) Result {
	switch s := v.(type) {
	case string:
		return g.Check(ctx, s)
	case *string:
		if s != nil {
			return g.Check(ctx, *s)
		}
	}
	res := Result{URL: describeValue(v), Verdict: Reject(ReasonMissingURL)}
	g.metrics.observe(res.Verdict, 0, 0)
	return res
}

func describeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// ValidateImageURLs validates every URL independently. Results are in
// input order and one failure never affects another URL's verdict.
func (g *Guard) ValidateImageURLs(ctx context.Context, raws []string) []Verdict {
	results := g.CheckAll(ctx, raws)
	verdicts := make([]Verdict, len(results))
	for i, r := range results {
		verdicts[i] = r.Verdict
	}
	return verdicts
}

// CheckAll is ValidateImageURLs with hop detail.
func (g *Guard) CheckAll(ctx context.Context, raws []string) []Result {
	return g.checkEach(len(raws), func(i int) Result { return g.Check(ctx, raws[i]) })
}

// CheckAllValues is CheckAll over loosely typed values.
func (g *Guard) CheckAllValues(ctx context.Context, vs []any) []Result {
	return g.checkEach(len(vs), func(i int) Result { return g.CheckValue(ctx, vs[i]) })
}

func (g *Guard) checkEach(n int, check func(i int) Result) []Result {
	results := make([]Result, n)
	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i := range n {
		eg.Go(func() error {
			results[i] = check(i)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// Check validates raw and returns the verdict with its hop trail.
func (g *Guard) Check(ctx context.Context, raw string) Result {
	start := time.Now()
	res := Result{URL: raw}

	trimmed, verdict := precheck(raw)
	if verdict.Valid {
		verdict, res.Hops = g.safeChain(ctx, trimmed)
	}
	res.Verdict = verdict
	res.Duration = time.Since(start)
	g.metrics.observe(verdict, len(res.Hops), res.Duration)
	return res
}

// safeChain converts a panic anywhere in the chain into ValidationError.
// The detail is logged here and never returned.
func (g *Guard) safeChain(ctx context.Context, u string) (verdict Verdict, hops []Hop) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic recovered during url validation",
				"error", r, "stack", string(debug.Stack()))
			verdict, hops = Reject(ReasonValidationError), nil
		}
	}()
	return g.chain.ValidateChain(ctx, u)
}

// precheck applies the input sanity checks that run before any parsing.
// The backslash, %40 and double-slash checks are best-effort heuristics
// against parser-differential tricks; the strict parser in the single-hop
// validator is the primary defence.
func precheck(raw string) (string, Verdict) {
	if raw == "" {
		return "", Reject(ReasonMissingURL)
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", Reject(ReasonEmptyURL)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return "", Reject(ReasonInvalidCharacters)
		}
	}
	if strings.Contains(s, `\`) {
		return "", Reject(ReasonInvalidFormat)
	}
	if strings.Contains(strings.ToLower(s), "%40") {
		return "", Reject(ReasonInvalidFormat)
	}
	if hasDoubleSlashAfterAuthority(s) {
		return "", Reject(ReasonInvalidFormat)
	}
	return s, Accept()
}

// hasDoubleSlashAfterAuthority matches https://host//path.
func hasDoubleSlashAfterAuthority(s string) bool {
	i := strings.Index(s, "://")
	if i < 0 {
		return false
	}
	rest := s[i+3:]
	j := strings.IndexAny(rest, "/?#")
	if j < 0 {
		return false
	}
	return strings.HasPrefix(rest[j:], "//")
}
