// Package sdk provides a Go client for the deckguard API.
//
// Basic usage:
//
//	c := sdk.NewClient("http://localhost:8080")
//	results, err := c.Validate(ctx, []string{"https://cdn.example.com/logo.png"})
//
// Preflight a deck before export:
//
//	res, err := c.Preflight(ctx, markdown)
//	var pe *sdk.PreflightError
//	if errors.As(err, &pe) {
//		// pe.Response.Error names the first rejected image
//	}
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ValidateRequest is sent to POST /v1/validate.
type ValidateRequest struct {
	URLs []string `json:"urls"`
}

// Hop is one validated step of a redirect chain.
type Hop struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Target string `json:"target,omitempty"`
}

// URLResult is the verdict for one URL.
type URLResult struct {
	URL     string `json:"url"`
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`  // MissingUrl, ProtocolNotAllowed, IpNotAllowed, ...
	Message string `json:"message,omitempty"` // human-readable reason
	Hops    []Hop  `json:"hops,omitempty"`
}

// ValidateResponse is returned by POST /v1/validate.
type ValidateResponse struct {
	Results []URLResult `json:"results"`
}

// PreflightRequest is sent to POST /v1/preflight.
type PreflightRequest struct {
	Markdown string `json:"markdown"`
}

// PreflightResponse is returned by POST /v1/preflight.
type PreflightResponse struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Images []URLResult `json:"images"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// PreflightError is returned when the deck references an image that
// must not be fetched.
type PreflightError struct {
	Response PreflightResponse
}

func (e *PreflightError) Error() string {
	return "deckguard: " + e.Response.Error
}

// APIError is returned for any other non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deckguard: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Client talks to a deckguard server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the deckguard server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// A preflight walks every redirect chain of the deck.
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Validate checks each URL independently. Results are in input order.
func (c *Client) Validate(ctx context.Context, urls []string) ([]URLResult, error) {
	if urls == nil {
		urls = []string{}
	}
	var resp ValidateResponse
	status, err := c.post(ctx, "/v1/validate", ValidateRequest{URLs: urls}, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Message: "validate failed"}
	}
	return resp.Results, nil
}

// Preflight validates every external image of a Markdown deck. A deck
// with a rejected image returns the response along with a PreflightError.
func (c *Client) Preflight(ctx context.Context, markdown string) (*PreflightResponse, error) {
	var resp PreflightResponse
	status, err := c.post(ctx, "/v1/preflight", PreflightRequest{Markdown: markdown}, &resp)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &resp, nil
	case http.StatusUnprocessableEntity:
		return &resp, &PreflightError{Response: resp}
	default:
		return nil, &APIError{StatusCode: status, Message: resp.Error}
	}
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	defer httpResp.Body.Close()

	var resp HealthResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding health: %w", err)
	}
	return &resp, nil
}

// post sends body as JSON and decodes the reply into out. Error bodies
// ({"error": "..."}) are decoded into an APIError.
func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity:
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("decoding response (HTTP %d): %w", httpResp.StatusCode, err)
		}
		return httpResp.StatusCode, nil
	default:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(httpResp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(httpResp.StatusCode)
		}
		return 0, &APIError{StatusCode: httpResp.StatusCode, Message: e.Error}
	}
}
