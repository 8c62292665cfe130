package contextwindow

import (
	"fmt"
	"strings"
)

// Rendered is the prompt-ready view of a window.
type Rendered struct {
	Text       string `json:"text"`
	Turns      int    `json:"turns"`
	HasSummary bool   `json:"hasSummary"`
	OverBudget bool   `json:"overBudget"`
}

// Render assembles the summary block followed by the newest maxTurns active
// turns in chronological order. The system prompt slot is left to the caller.
// maxTurns <= 0 yields an empty context. Render never mutates the window.
func (w *Window) Render(maxTurns int) Rendered {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := Rendered{OverBudget: w.overBudget}
	if maxTurns <= 0 {
		return out
	}

	parts := make([]string, 0, maxTurns+1)
	if !w.summary.Empty() {
		parts = append(parts, w.summary.Text())
		out.HasSummary = true
	}

	n := min(maxTurns, len(w.turns))
	for _, t := range w.turns[len(w.turns)-n:] {
		parts = append(parts, formatTurn(t))
	}
	out.Turns = n
	out.Text = strings.Join(parts, "\n\n")
	return out
}

// FormattedContext returns only the text of Render.
func (w *Window) FormattedContext(maxTurns int) string {
	return w.Render(maxTurns).Text
}

func formatTurn(t *Turn) string {
	return fmt.Sprintf("第%d轮（%s）：\n用户：%s\n咨询师：%s",
		t.Seq, t.CreatedAt.Format("2006-01-02"), t.UserMessage, t.AIResponse)
}
