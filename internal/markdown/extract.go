// Package markdown finds the external images a slide deck references.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var parser = goldmark.New().Parser()

// ExtractImageURLs returns the destination of every image in src that the
// renderer would fetch over the network, in document order and without
// duplicates. Inline and reference-style images are both covered. data:
// URIs and relative or root-relative paths are skipped because they never
// leave the renderer's sandbox; anything carrying a scheme is kept so that
// unsafe schemes reach the validator and are rejected there.
func ExtractImageURLs(src []byte) []string {
	doc := parser.Parse(text.NewReader(src))

	seen := make(map[string]struct{})
	var urls []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := strings.TrimSpace(string(img.Destination))
		if !isExternal(dest) {
			return ast.WalkContinue, nil
		}
		if _, dup := seen[dest]; !dup {
			seen[dest] = struct{}{}
			urls = append(urls, dest)
		}
		return ast.WalkContinue, nil
	})
	return urls
}

func isExternal(dest string) bool {
	if dest == "" {
		return false
	}
	if strings.HasPrefix(dest, "//") {
		return true
	}
	scheme, ok := schemeOf(dest)
	if !ok {
		return false
	}
	return !strings.EqualFold(scheme, "data")
}

// schemeOf returns the RFC 3986 scheme prefix of s, if any.
func schemeOf(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9', c == '+', c == '-', c == '.':
			if i == 0 {
				return "", false
			}
		case c == ':':
			if i == 0 {
				return "", false
			}
			return s[:i], true
		default:
			return "", false
		}
	}
	return "", false
}
