package generator

import (
	"context"
	"strings"
)

// TemplateLLM renders the daily tech memo without calling a model.
type TemplateLLM struct{}

func (TemplateLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	learned := prompt.Outline
	if len(learned) == 0 {
		learned = []string{"Go", "note API", "自動化"}
	}

	var sb strings.Builder
	sb.WriteString("# " + DailyTitle(prompt.Date) + "\n\n")
	if prompt.Topic != "" {
		sb.WriteString("テーマ: " + prompt.Topic + "\n\n")
	}
	sb.WriteString("## 今日学んだこと\n")
	for _, item := range learned {
		sb.WriteString("- " + item + "\n")
	}
	sb.WriteString("\n## 明日の目標\n- さらなる改善を続ける\n\n")
	sb.WriteString("## まとめ\n継続的な学習が重要です。\n")
	return sb.String(), nil
}
