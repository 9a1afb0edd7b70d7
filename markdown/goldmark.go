//go:build !nogoldmark

package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var newFull = func() Renderer { return NewGoldmark() }

// Goldmark renders CommonMark plus GFM tables, with soft line breaks kept
// as <br> the way note.com's editor shows them.
type Goldmark struct {
	md       goldmark.Markdown
	fallback Builtin
}

func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func (g *Goldmark) Render(md string) string {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(md), &buf); err != nil {
		return g.fallback.Render(md)
	}
	return buf.String()
}
