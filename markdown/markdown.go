// Package markdown turns article Markdown into the HTML body note.com expects.
package markdown

import (
	"fmt"
	"strings"
)

// Renderer converts Markdown text to HTML. Implementations never fail:
// syntax they do not understand passes through literally.
type Renderer interface {
	Render(md string) string
}

// Renderer names accepted by New.
const (
	NameAuto     = "auto"
	NameBuiltin  = "builtin"
	NameGoldmark = "goldmark"
)

// New selects a renderer once. "auto" (or empty) prefers the full-featured
// renderer when it is linked into the binary and falls back to Builtin.
func New(name string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameAuto:
		if newFull != nil {
			return newFull(), nil
		}
		return Builtin{}, nil
	case NameBuiltin:
		return Builtin{}, nil
	case NameGoldmark:
		if newFull == nil {
			return nil, fmt.Errorf("markdown renderer %q not compiled in (built with nogoldmark)", name)
		}
		return newFull(), nil
	default:
		return nil, fmt.Errorf("unknown markdown renderer %q", name)
	}
}
