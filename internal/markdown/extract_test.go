package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractImageURLs(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "inline images in order",
			src: "# Title\n\n![logo](https://img.example.com/logo.png)\n\n---\n\n" +
				"Some text ![chart](https://cdn.example.com/chart.svg \"Chart\")\n",
			want: []string{"https://img.example.com/logo.png", "https://cdn.example.com/chart.svg"},
		},
		{
			name: "reference style",
			src:  "![diagram][d]\n\n[d]: https://img.example.com/d.png\n",
			want: []string{"https://img.example.com/d.png"},
		},
		{
			name: "duplicates collapsed",
			src:  "![a](https://img.example.com/a.png)\n![b](https://img.example.com/a.png)\n",
			want: []string{"https://img.example.com/a.png"},
		},
		{
			name: "local and inline data skipped",
			src: "![a](./a.png) ![b](/static/b.png) ![c](images/c.png) ![d](#frag)\n" +
				"![e](data:image/png;base64,AAAA) ![f](DATA:image/gif;base64,R0lG)\n",
			want: nil,
		},
		{
			name: "unsafe schemes kept for the validator",
			src:  "![a](http://img.example.com/a.png) ![b](javascript:alert(1)) ![c](//evil.example/x.png)\n",
			want: []string{"http://img.example.com/a.png", "javascript:alert(1)", "//evil.example/x.png"},
		},
		{
			name: "links are not images",
			src:  "[not an image](https://example.com/page)\n",
			want: nil,
		},
		{
			name: "code spans ignored",
			src:  "`![x](https://img.example.com/x.png)`\n\n```\n![y](https://img.example.com/y.png)\n```\n",
			want: nil,
		},
		{
			name: "empty document",
			src:  "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractImageURLs([]byte(tt.src)))
		})
	}
}

func TestSchemeOf(t *testing.T) {
	tests := []struct {
		in     string
		scheme string
		ok     bool
	}{
		{"https://x", "https", true},
		{"svn+ssh://x", "svn+ssh", true},
		{"javascript:alert(1)", "javascript", true},
		{"./a.png", "", false},
		{"a/b:c", "", false},
		{":nope", "", false},
		{"1abc:x", "", false},
	}
	for _, tt := range tests {
		scheme, ok := schemeOf(tt.in)
		assert.Equal(t, tt.scheme, scheme, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
