package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// DefaultTitle is used when a document has no title in its front matter.
const DefaultTitle = "GitHub自動投稿"

// Document is a Markdown file split into metadata and body.
type Document struct {
	Title string
	// Image is the eyecatch path from front matter, if any.
	Image string
	Body  string
}

type documentMeta struct {
	Title string `yaml:"title"`
	Image string `yaml:"image"`
}

// ParseDocument reads optional YAML front matter. Without front matter the
// whole input is the body.
func ParseDocument(raw []byte) (Document, error) {
	var meta documentMeta
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return Document{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	doc := Document{
		Title: strings.TrimSpace(meta.Title),
		Image: strings.TrimSpace(meta.Image),
		Body:  strings.TrimLeft(string(body), "\r\n"),
	}
	if doc.Title == "" {
		doc.Title = DefaultTitle
	}
	return doc, nil
}
