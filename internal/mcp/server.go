// Package mcp exposes image URL validation as Model Context Protocol tools
// so agents drafting decks can vet images before export.
package mcp

import (
	"context"
	"log/slog"

	"github.com/deckguard/deckguard/internal/preflight"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server exposing the deckguard tools.
func NewServer(checker *preflight.Checker, version string, logger *slog.Logger) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "deckguard",
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: "deckguard vets image URLs referenced by Markdown slide decks. " +
			"Use these tools before exporting a deck: only HTTPS images that resolve to " +
			"public addresses, including every redirect, are accepted.",
	})

	h := &handlers{checker: checker, logger: logger}
	mcp.AddTool(s, validateImageURLTool(), h.handleValidateImageURL)
	mcp.AddTool(s, validateImageURLsTool(), h.handleValidateImageURLs)
	mcp.AddTool(s, preflightMarkdownTool(), h.handlePreflightMarkdown)
	return s
}

// Serve runs the MCP server on stdio until ctx is done or the client
// disconnects.
func Serve(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
