package contextwindow

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
)

func (w *Window) usedTokens() int {
	return w.activeTokens + w.summary.Tokens + w.cfg.ReservedSystemPromptTokens
}

func (w *Window) withinBudget() bool {
	return w.usedTokens() <= w.cfg.MaxTokens
}

// enforceBudget summarizes the cheapest unprotected turns until the window
// fits again. Low importance goes first; equal importance evicts the oldest.
// When only protected turns remain the summary is shrunk, and if that is
// still not enough the window is flagged over budget rather than dropping
// the latest exchange.
func (w *Window) enforceBudget() (summarized int, summaryChanged bool) {
	if w.withinBudget() {
		w.overBudget = false
		return 0, false
	}

	w.logger.Info("context over budget, compressing",
		zap.Int("used_tokens", w.usedTokens()),
		zap.Int("max_tokens", w.cfg.MaxTokens),
		zap.Int("active_turns", len(w.turns)),
	)

	for _, t := range w.candidates() {
		if w.withinBudget() {
			break
		}
		w.evict(t)
		summarized++
		summaryChanged = true
	}

	if !w.withinBudget() && !w.summary.Empty() {
		w.summary = w.summarizer.Fit(w.summary, w.cfg.budget()-w.activeTokens)
		summaryChanged = true
	}

	w.overBudget = !w.withinBudget()
	if w.overBudget {
		w.logger.Warn("protected turns exceed budget, keeping latest exchange",
			zap.Int("used_tokens", w.usedTokens()),
			zap.Int("max_tokens", w.cfg.MaxTokens),
			zap.Int("protected_turns", len(w.turns)),
		)
	} else if summarized > 0 {
		w.logger.Info("turns summarized",
			zap.Int("summarized", summarized),
			zap.Int("summary_tokens", w.summary.Tokens),
			zap.Int("used_tokens", w.usedTokens()),
		)
	}
	return summarized, summaryChanged
}

// candidates lists the active turns outside the protected recent window,
// ordered by eviction priority. The newest turn is always protected.
func (w *Window) candidates() []*Turn {
	limit := len(w.turns) - max(w.cfg.ProtectedWindowSize, 1)
	if limit <= 0 {
		return nil
	}

	out := slices.Clone(w.turns[:limit])
	slices.SortFunc(out, func(a, b *Turn) int {
		if c := cmp.Compare(a.Importance, b.Importance); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

// evict moves t from the active list into the summary. There is no way back.
func (w *Window) evict(t *Turn) {
	idx := slices.Index(w.turns, t)
	if idx < 0 {
		return
	}
	w.turns = slices.Delete(w.turns, idx, idx+1)
	w.activeTokens -= t.Tokens
	w.summary = w.summarizer.Merge(w.summary, t)
	t.summarize()
	w.summarized++
}
