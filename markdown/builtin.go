package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)\\n```")
	inlineRe = regexp.MustCompile("`([^`]+)`")
	h3Re     = regexp.MustCompile(`(?m)^### (.+)$`)
	h2Re     = regexp.MustCompile(`(?m)^## (.+)$`)
	h1Re     = regexp.MustCompile(`(?m)^# (.+)$`)
	itemRe   = regexp.MustCompile(`(?m)^- (.+)$`)
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.+?)\*`)
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	tokenRe  = regexp.MustCompile("\x00([BI])(\\d+)\x00")
)

// Builtin is the dependency-free regex renderer. It handles fenced and
// inline code, #/##/### headings, "- " lists, bold, italic and links, then
// wraps remaining blank-line separated blocks in <p>. Running it over its
// own output is not idempotent.
type Builtin struct{}

func (Builtin) Render(md string) string {
	if md == "" {
		return ""
	}
	text := strings.ReplaceAll(md, "\r\n", "\n")

	// Code is swapped for placeholders so later rules leave it alone.
	var code []string
	stash := func(kind, s string) string {
		code = append(code, s)
		return fmt.Sprintf("\x00%s%d\x00", kind, len(code)-1)
	}
	text = fencedRe.ReplaceAllStringFunc(text, func(m string) string {
		body := fencedRe.FindStringSubmatch(m)[2]
		return stash("B", "<pre><code>"+html.EscapeString(body)+"</code></pre>")
	})
	text = inlineRe.ReplaceAllStringFunc(text, func(m string) string {
		body := inlineRe.FindStringSubmatch(m)[1]
		return stash("I", "<code>"+html.EscapeString(body)+"</code>")
	})

	text = h3Re.ReplaceAllString(text, "<h3>$1</h3>")
	text = h2Re.ReplaceAllString(text, "<h2>$1</h2>")
	text = h1Re.ReplaceAllString(text, "<h1>$1</h1>")
	text = itemRe.ReplaceAllString(text, "<li>$1</li>")
	text = boldRe.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicRe.ReplaceAllString(text, "<em>$1</em>")
	text = linkRe.ReplaceAllString(text, `<a href="$2">$1</a>`)

	var blocks []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		switch {
		case strings.HasPrefix(block, "<li>"):
			block = wrapList(block)
		case isBlockLevel(block):
		default:
			block = "<p>" + block + "</p>"
		}
		blocks = append(blocks, block)
	}
	out := strings.Join(blocks, "\n")

	return tokenRe.ReplaceAllStringFunc(out, func(m string) string {
		idx, err := strconv.Atoi(tokenRe.FindStringSubmatch(m)[2])
		if err != nil || idx >= len(code) {
			return m
		}
		return code[idx]
	})
}

// blockPrefixes are the block-level tags this renderer emits. Inline tags
// such as <strong> or <a> at the start of a block still get a <p>.
var blockPrefixes = []string{"<h1>", "<h2>", "<h3>", "<ul>", "<li>", "<pre>", "\x00B"}

func isBlockLevel(block string) bool {
	for _, p := range blockPrefixes {
		if strings.HasPrefix(block, p) {
			return true
		}
	}
	return false
}

// wrapList puts runs of consecutive <li> lines inside <ul>.
func wrapList(block string) string {
	var b strings.Builder
	open := false
	for i, line := range strings.Split(block, "\n") {
		isItem := strings.HasPrefix(line, "<li>")
		if isItem && !open {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("<ul>\n")
			open = true
		} else if !isItem && open {
			b.WriteString("\n</ul>\n")
			open = false
		} else if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	if open {
		b.WriteString("\n</ul>")
	}
	return b.String()
}
