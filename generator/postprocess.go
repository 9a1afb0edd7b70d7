package generator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	fenceRe = regexp.MustCompile("(?s)^```(?:markdown|md)?\\s*\\n(.*)\\n```$")
)

// PostProcess validates model output and fills in the Draft fields. The
// title is the first level-one heading, falling back to the topic and then
// to the daily memo title.
func PostProcess(raw string, spec Spec) (Draft, error) {
	md := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if m := fenceRe.FindStringSubmatch(md); m != nil {
		md = strings.TrimSpace(m[1])
	}
	if md == "" {
		return Draft{}, errors.New("model returned empty markdown")
	}

	title := extractTitle(md)
	if title == "" {
		title = strings.TrimSpace(spec.Topic)
	}
	if title == "" {
		title = DailyTitle(spec.Date)
	}
	digest := extractDigest(md)
	if digest == "" {
		digest = defaultDigest(md, 120)
	}

	return Draft{
		Title:    title,
		Digest:   digest,
		Markdown: md,
	}, nil
}

func extractTitle(md string) string {
	if m := titleRe.FindStringSubmatch(md); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractDigest takes the first paragraph line that is not a heading or a
// list item.
func extractDigest(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "- ") {
			continue
		}
		return line
	}
	return ""
}

func defaultDigest(md string, limit int) string {
	joined := []rune(strings.Join(strings.Fields(md), " "))
	if len(joined) <= limit {
		return string(joined)
	}
	return string(joined[:limit])
}
