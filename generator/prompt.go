package generator

import (
	"fmt"
	"strings"
	"time"
)

// Prompt is the message pair sent to the model. Topic, Outline and Date are
// carried alongside for clients that do not read the text.
type Prompt struct {
	System  string
	User    string
	Topic   string
	Outline []string
	Date    time.Time
}

// DailyTitle is the title of the daily memo, e.g. "2024年01月15日の技術メモ".
func DailyTitle(t time.Time) string {
	return t.Format("2006年01月02日") + "の技術メモ"
}

// BuildPrompt renders spec into a note.com article request.
func BuildPrompt(spec Spec) Prompt {
	var sb strings.Builder
	sb.WriteString("あなたは note.com に技術記事を書くライターです。Markdown のみを出力し、説明文は付けないでください。\n")
	sb.WriteString("要件:\n")
	if spec.Words > 0 {
		sb.WriteString(fmt.Sprintf("- 本文はおよそ %d 文字（±15%%）。\n", spec.Words))
	}
	for _, c := range spec.Constraints {
		sb.WriteString(fmt.Sprintf("- %s\n", c))
	}
	sb.WriteString("- 先頭に記事タイトルとなる見出し（# ）を一つ置くこと。\n")
	sb.WriteString("- タイトルの直後に 100 文字前後の導入段落を置くこと。\n")
	if len(spec.Outline) > 0 {
		sb.WriteString("- 次の構成に沿って書くこと:\n")
		for i, item := range spec.Outline {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, item))
		}
	}

	topic := spec.Topic
	if topic == "" {
		topic = DailyTitle(spec.Date)
	}
	return Prompt{
		System:  sb.String(),
		User:    fmt.Sprintf("テーマ：%s\n上記の要件を満たす Markdown 記事を出力してください。", topic),
		Topic:   spec.Topic,
		Outline: spec.Outline,
		Date:    spec.Date,
	}
}
