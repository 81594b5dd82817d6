package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/deckguard/deckguard/internal/urlguard"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxURLs bounds one validate_image_urls call.
const maxURLs = 100

type handlers struct {
	checker *preflight.Checker
	logger  *slog.Logger
}

// --- Tool inputs and outputs ---

type validateURLInput struct {
	URL string `json:"url" jsonschema:"the image URL to validate"`
}

type validateURLsInput struct {
	URLs []string `json:"urls" jsonschema:"image URLs to validate, at most 100"`
}

type preflightInput struct {
	Markdown string `json:"markdown" jsonschema:"the Markdown source of the deck"`
}

// URLResult is the verdict for one URL.
type URLResult struct {
	URL     string   `json:"url"`
	Valid   bool     `json:"valid"`
	Reason  string   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
	Chain   []string `json:"chain,omitempty"`
}

type validateURLsOutput struct {
	Results []URLResult `json:"results"`
}

type preflightOutput struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Images []URLResult `json:"images"`
}

// --- Tool definitions ---

func readOnly() *mcp.ToolAnnotations {
	f := false
	return &mcp.ToolAnnotations{
		ReadOnlyHint:    true,
		DestructiveHint: &f,
	}
}

func validateImageURLTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "validate_image_url",
		Description: "Check whether an image URL is safe for the deck renderer to fetch. " +
			"Rejects non-HTTPS schemes, internal hostnames, private, loopback, link-local and " +
			"cloud metadata addresses, and redirect chains that lead to any of them.",
		Annotations: readOnly(),
	}
}

func validateImageURLsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "validate_image_urls",
		Description: "Validate up to 100 image URLs independently. Results are returned in input order.",
		Annotations: readOnly(),
	}
}

func preflightMarkdownTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "preflight_markdown",
		Description: "Extract every external image from a Markdown deck and validate it. " +
			"ok is false when any image would be refused at export time.",
		Annotations: readOnly(),
	}
}

// --- Handlers ---

func (h *handlers) handleValidateImageURL(ctx context.Context, _ *mcp.CallToolRequest, in validateURLInput) (*mcp.CallToolResult, URLResult, error) {
	res := h.checker.Validate(ctx, []string{in.URL})
	return nil, toURLResult(res[0]), nil
}

func (h *handlers) handleValidateImageURLs(ctx context.Context, _ *mcp.CallToolRequest, in validateURLsInput) (*mcp.CallToolResult, validateURLsOutput, error) {
	if len(in.URLs) > maxURLs {
		return nil, validateURLsOutput{}, errors.New("too many urls (max 100)")
	}
	results := h.checker.Validate(ctx, in.URLs)
	out := validateURLsOutput{Results: make([]URLResult, len(results))}
	for i, r := range results {
		out.Results[i] = toURLResult(r)
	}
	return nil, out, nil
}

func (h *handlers) handlePreflightMarkdown(ctx context.Context, _ *mcp.CallToolRequest, in preflightInput) (*mcp.CallToolResult, preflightOutput, error) {
	res := h.checker.Check(ctx, []byte(in.Markdown))
	out := preflightOutput{OK: res.OK, Images: make([]URLResult, len(res.Images))}
	for i, img := range res.Images {
		out.Images[i] = toURLResult(urlguard.Result{URL: img.URL, Verdict: img.Verdict, Hops: img.Hops})
	}
	if !res.OK {
		out.Error = res.Err.Error()
		h.logger.Info("mcp preflight rejected deck", "url", res.Err.URL, "reason", res.Err.Reason)
	}
	return nil, out, nil
}

func toURLResult(r urlguard.Result) URLResult {
	out := URLResult{
		URL:     r.URL,
		Valid:   r.Verdict.Valid,
		Reason:  string(r.Verdict.Reason),
		Message: r.Verdict.Message(),
	}
	// Only report a chain when a redirect was actually followed.
	if len(r.Hops) > 1 {
		for _, hop := range r.Hops {
			out.Chain = append(out.Chain, hop.URL)
		}
	}
	return out
}
