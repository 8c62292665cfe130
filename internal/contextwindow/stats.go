package contextwindow

import "math"

// Statistics is a point-in-time readout of a window.
type Statistics struct {
	TotalTurnsSeen  int     `json:"totalTurnsSeen"`
	ActiveTurns     int     `json:"activeTurns"`
	SummarizedTurns int     `json:"summarizedTurns"`
	ActiveTokens    int     `json:"activeTokens"`
	SummaryTokens   int     `json:"summaryTokens"`
	ReservedTokens  int     `json:"reservedTokens"`
	AvailableTokens int     `json:"availableTokens"`
	UtilizationRate float64 `json:"utilizationRate"`
	MaxTokens       int     `json:"maxTokens"`
	OverBudget      bool    `json:"overBudget"`
}

// Statistics reports the current accounting. UtilizationRate is a percentage
// of MaxTokens rounded to two decimals.
func (w *Window) Statistics() Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()

	used := w.activeTokens + w.summary.Tokens
	available := w.cfg.budget() - used
	if available < 0 {
		available = 0
	}
	rate := float64(used) / float64(w.cfg.MaxTokens) * 100

	return Statistics{
		TotalTurnsSeen:  w.totalSeen,
		ActiveTurns:     len(w.turns),
		SummarizedTurns: w.summarized,
		ActiveTokens:    w.activeTokens,
		SummaryTokens:   w.summary.Tokens,
		ReservedTokens:  w.cfg.ReservedSystemPromptTokens,
		AvailableTokens: available,
		UtilizationRate: math.Round(rate*100) / 100,
		MaxTokens:       w.cfg.MaxTokens,
		OverBudget:      w.overBudget,
	}
}
