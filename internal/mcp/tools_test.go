package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/deckguard/deckguard/internal/urlguard"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type redirectProber map[string]string

func (p redirectProber) Probe(_ context.Context, raw string) urlguard.ProbeResult {
	if target, ok := p[raw]; ok {
		return urlguard.ProbeResult{Kind: urlguard.ProbeRedirect, Target: target}
	}
	return urlguard.ProbeResult{Kind: urlguard.ProbeNoRedirect}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	guard := urlguard.New(urlguard.Options{
		Resolver: urlguard.StaticResolver{
			"img.example.com": {"93.184.216.34"},
			"cdn.example.com": {"93.184.216.35"},
			"evil.example":    {"169.254.169.254"},
		},
		Prober: redirectProber{
			"https://img.example.com/moved.png": "https://cdn.example.com/a.png",
		},
		Logger: testLogger(),
	})
	checker := preflight.NewChecker(guard, preflight.Options{Source: "mcp", Logger: testLogger()})
	srv := NewServer(checker, "test", testLogger())

	ctx := context.Background()
	st, ct := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	if out != nil && !res.IsError {
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return res
}

func TestListTools(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		require.NotNil(t, tool.Annotations)
		assert.True(t, tool.Annotations.ReadOnlyHint, tool.Name)
	}
	assert.ElementsMatch(t, []string{"validate_image_url", "validate_image_urls", "preflight_markdown"}, names)
}

func TestValidateImageURL(t *testing.T) {
	cs := connect(t)

	tests := []struct {
		url    string
		valid  bool
		reason string
	}{
		{"https://img.example.com/a.png", true, ""},
		{"http://img.example.com/a.png", false, "ProtocolNotAllowed"},
		{"https://evil.example/latest/meta-data/", false, "IpNotAllowed"},
		{"https://localhost/a.png", false, "HostnameNotAllowed"},
		{"", false, "MissingUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			var got URLResult
			call(t, cs, "validate_image_url", map[string]any{"url": tt.url}, &got)
			assert.Equal(t, tt.url, got.URL)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.reason, got.Reason)
			if !tt.valid {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestValidateImageURL_ReportsChain(t *testing.T) {
	cs := connect(t)

	var got URLResult
	call(t, cs, "validate_image_url", map[string]any{"url": "https://img.example.com/moved.png"}, &got)
	assert.True(t, got.Valid)
	assert.Equal(t, []string{"https://img.example.com/moved.png", "https://cdn.example.com/a.png"}, got.Chain)
}

func TestValidateImageURLs(t *testing.T) {
	cs := connect(t)

	var got validateURLsOutput
	call(t, cs, "validate_image_urls", map[string]any{"urls": []string{
		"https://evil.example/x",
		"https://img.example.com/a.png",
		"ftp://img.example.com/a.png",
	}}, &got)
	require.Len(t, got.Results, 3)
	assert.Equal(t, "IpNotAllowed", got.Results[0].Reason)
	assert.True(t, got.Results[1].Valid)
	assert.Equal(t, "ProtocolNotAllowed", got.Results[2].Reason)
}

func TestValidateImageURLs_TooMany(t *testing.T) {
	cs := connect(t)

	urls := make([]string, maxURLs+1)
	for i := range urls {
		urls[i] = "https://img.example.com/a.png"
	}
	res := call(t, cs, "validate_image_urls", map[string]any{"urls": urls}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "too many urls")
}

func TestPreflightMarkdown(t *testing.T) {
	cs := connect(t)

	var ok preflightOutput
	call(t, cs, "preflight_markdown", map[string]any{
		"markdown": "# Deck\n\n![logo](https://img.example.com/a.png)\n![local](./b.png)\n",
	}, &ok)
	assert.True(t, ok.OK)
	assert.Empty(t, ok.Error)
	require.Len(t, ok.Images, 1)

	var failed preflightOutput
	call(t, cs, "preflight_markdown", map[string]any{
		"markdown": "![a](https://img.example.com/a.png)\n\n---\n\n![b](https://evil.example/latest/meta-data/)\n",
	}, &failed)
	assert.False(t, failed.OK)
	assert.True(t, strings.HasPrefix(failed.Error, `Image URL validation failed for "https://evil.example/latest/meta-data/"`))
	require.Len(t, failed.Images, 2)
	assert.Equal(t, "IpNotAllowed", failed.Images[1].Reason)
}
