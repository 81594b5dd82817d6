// Package preflight vets every external image in a Markdown deck before it
// is handed to the renderer.
package preflight

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deckguard/deckguard/internal/audit"
	"github.com/deckguard/deckguard/internal/markdown"
	"github.com/deckguard/deckguard/internal/urlguard"
)

// Recorder receives one audit entry per verdict. *audit.Store satisfies it.
type Recorder interface {
	Log(audit.Entry)
}

// Notifier is told about every rejected URL.
type Notifier interface {
	NotifyRejected(url string, reason urlguard.Reason, source string)
}

// ImageResult is the verdict for one image of the deck.
type ImageResult struct {
	URL     string           `json:"url"`
	Verdict urlguard.Verdict `json:"verdict"`
	Hops    []urlguard.Hop   `json:"hops,omitempty"`
}

// Error names the first image that failed, in document order.
type Error struct {
	URL    string
	Reason urlguard.Reason
}

func (e *Error) Error() string {
	return fmt.Sprintf("Image URL validation failed for %q: %s", e.URL, e.Reason.Message())
}

// Result is the outcome of a preflight. The deck may be rendered only
// when OK is true.
type Result struct {
	OK     bool          `json:"ok"`
	Images []ImageResult `json:"images"`
	Err    *Error        `json:"-"`
}

// Options wires a Checker. Audit and Notifier are optional.
type Options struct {
	Source   string // recorded with every audit entry: api, preflight, mcp, cli
	Audit    Recorder
	Notifier Notifier
	Logger   *slog.Logger
}

// Checker runs preflights against one Guard.
type Checker struct {
	guard    *urlguard.Guard
	source   string
	audit    Recorder
	notifier Notifier
	logger   *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(guard *urlguard.Guard, opts Options) *Checker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Source == "" {
		opts.Source = "preflight"
	}
	return &Checker{
		guard:    guard,
		source:   opts.Source,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
}

// Check extracts and validates every external image in src. A deck with
// no external images passes.
func (c *Checker) Check(ctx context.Context, src []byte) Result {
	urls := markdown.ExtractImageURLs(src)
	results := c.Validate(ctx, urls)

	res := Result{OK: true, Images: make([]ImageResult, len(results))}
	for i, r := range results {
		res.Images[i] = ImageResult{URL: r.URL, Verdict: r.Verdict, Hops: r.Hops}
		if !r.Verdict.Valid && res.Err == nil {
			res.OK = false
			res.Err = &Error{URL: r.URL, Reason: r.Verdict.Reason}
		}
	}
	if res.OK {
		c.logger.Debug("preflight passed", "images", len(urls))
	} else {
		c.logger.Info("preflight failed", "images", len(urls), "url", res.Err.URL, "reason", res.Err.Reason)
	}
	return res
}

// Validate checks raws with the guard and records each verdict.
func (c *Checker) Validate(ctx context.Context, raws []string) []urlguard.Result {
	results := c.guard.CheckAll(ctx, raws)
	for _, r := range results {
		c.record(r)
	}
	return results
}

// ValidateValues is Validate for loosely typed input such as the elements
// of a decoded JSON array. Values that are not strings report MissingUrl.
func (c *Checker) ValidateValues(ctx context.Context, vs []any) []urlguard.Result {
	results := c.guard.CheckAllValues(ctx, vs)
	for _, r := range results {
		c.record(r)
	}
	return results
}

func (c *Checker) record(r urlguard.Result) {
	if c.audit != nil {
		c.audit.Log(audit.Entry{
			Source:    c.source,
			URL:       r.URL,
			Valid:     r.Verdict.Valid,
			Reason:    string(r.Verdict.Reason),
			Hops:      len(r.Hops),
			LatencyMs: r.Duration.Milliseconds(),
		})
	}
	if !r.Verdict.Valid && c.notifier != nil {
		c.notifier.NotifyRejected(r.URL, r.Verdict.Reason, c.source)
	}
}
