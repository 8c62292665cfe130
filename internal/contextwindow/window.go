// Package contextwindow keeps a conversation inside a fixed token budget.
//
// A Window owns the turns of one session. Every AddTurn re-establishes the
// budget by folding the least important unprotected turns into a bounded
// summary; the newest turns are never touched. Windows do no I/O and share no
// state, so one Window per session can be driven fully in parallel.
package contextwindow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option customizes a Window.
type Option func(*Window)

// WithLogger sets the logger used for eviction and over-budget events.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Window) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the wall clock stamped on new turns.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// Outcome is the advisory returned by AddTurn.
type Outcome struct {
	TurnID         string `json:"turnId"`
	Seq            uint64 `json:"seq"`
	Tokens         int    `json:"tokens"`
	Summarized     int    `json:"summarized"`
	SummaryChanged bool   `json:"summaryChanged"`
	OverBudget     bool   `json:"overBudget"`
}

// Window is the bounded, ordered collection of turns for one conversation.
type Window struct {
	mu sync.Mutex

	cfg        Config
	estimator  Estimator
	scorer     *Scorer
	summarizer *Summarizer
	logger     *zap.Logger
	now        func() time.Time

	turns        []*Turn
	summary      Summary
	nextSeq      uint64
	totalSeen    int
	summarized   int
	activeTokens int
	overBudget   bool
}

// New validates cfg and returns an empty window.
func New(cfg Config, opts ...Option) (*Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.snapshot()

	est := cfg.Estimator
	if est == nil {
		charEst, err := NewCharEstimator(cfg.CharsPerToken)
		if err != nil {
			return nil, err
		}
		est = charEst
	}

	w := &Window{
		cfg:        cfg,
		estimator:  est,
		scorer:     NewScorer(cfg),
		summarizer: NewSummarizer(est, cfg.SummaryMaxTokens),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddTurn appends an exchange and restores the budget invariant.
// emotion is clamped to [0, 1]; empty messages are accepted.
func (w *Window) AddTurn(userMessage, aiResponse string, emotion float64, keywords []string) Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextSeq++
	t := &Turn{
		ID:          uuid.NewString(),
		Seq:         w.nextSeq,
		CreatedAt:   w.now(),
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Emotion:     clampIntensity(emotion),
		Keywords:    dedupe(keywords, len(keywords)),
		Status:      StatusActive,
	}
	t.Tokens = turnCost(w.estimator, userMessage, aiResponse)
	t.Importance = w.scorer.Score(t, 0)

	w.turns = append(w.turns, t)
	w.activeTokens += t.Tokens
	w.totalSeen++

	w.logger.Debug("turn added",
		zap.String("turn_id", t.ID),
		zap.Uint64("seq", t.Seq),
		zap.Int("tokens", t.Tokens),
		zap.Float64("importance", t.Importance),
		zap.Int("active_turns", len(w.turns)),
	)

	summarized, changed := w.enforceBudget()
	w.checkInvariants()

	return Outcome{
		TurnID:         t.ID,
		Seq:            t.Seq,
		Tokens:         t.Tokens,
		Summarized:     summarized,
		SummaryChanged: changed,
		OverBudget:     w.overBudget,
	}
}

// Reset drops every turn and the summary.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.turns = nil
	w.summary = Summary{}
	w.nextSeq = 0
	w.totalSeen = 0
	w.summarized = 0
	w.activeTokens = 0
	w.overBudget = false
	w.logger.Info("context window reset")
}

// Turns returns a copy of the active turns in chronological order.
func (w *Window) Turns() []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Turn, 0, len(w.turns))
	for _, t := range w.turns {
		out = append(out, t.clone())
	}
	return out
}

// Summary returns a copy of the current summary.
func (w *Window) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary.clone()
}

// Config returns the window's configuration snapshot.
func (w *Window) Config() Config {
	cfg := w.cfg
	cfg.CrisisKeywords = append([]string(nil), w.cfg.CrisisKeywords...)
	return cfg
}

// checkInvariants panics on states that only a bug can produce.
func (w *Window) checkInvariants() {
	if w.activeTokens < 0 || w.summary.Tokens < 0 {
		panic(fmt.Sprintf("contextwindow: negative token count (active=%d summary=%d)", w.activeTokens, w.summary.Tokens))
	}

	sum := 0
	for i, t := range w.turns {
		if i > 0 && w.turns[i-1].Seq >= t.Seq {
			panic(fmt.Sprintf("contextwindow: turns out of order (%d before %d)", w.turns[i-1].Seq, t.Seq))
		}
		if t.Status != StatusActive {
			panic(fmt.Sprintf("contextwindow: turn %d is %s but still listed as active", t.Seq, t.Status))
		}
		sum += t.Tokens
	}
	if sum != w.activeTokens {
		panic(fmt.Sprintf("contextwindow: active token drift (tracked=%d actual=%d)", w.activeTokens, sum))
	}
	if !w.overBudget && !w.withinBudget() {
		panic("contextwindow: over budget without degraded flag")
	}
}
