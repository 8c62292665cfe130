package contextwindow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig reports a construction-time configuration error.
var ErrInvalidConfig = errors.New("invalid context window config")

// DefaultCrisisKeywords lists words that give a turn maximal retention priority.
var DefaultCrisisKeywords = []string{
	"危机", "自杀", "伤害", "紧急", "痛苦", "绝望",
	"想死", "不想活", "自残", "结束生命", "活不下去",
}

// Config is the immutable configuration snapshot of a Window.
type Config struct {
	MaxTokens                  int
	CharsPerToken              float64
	ReservedSystemPromptTokens int
	ProtectedWindowSize        int
	SummaryMaxTokens           int
	// ReferenceTokens is the denominator of the length factor.
	ReferenceTokens int
	CrisisKeywords  []string

	// Recency defaults to HyperbolicRecency(0.1) when nil.
	Recency RecencyFunc
	// Estimator defaults to a CharEstimator built from CharsPerToken when nil.
	Estimator Estimator
}

// DefaultConfig returns the settings used for a 128K-token model.
func DefaultConfig() Config {
	return Config{
		MaxTokens:                  128000,
		CharsPerToken:              4,
		ReservedSystemPromptTokens: 200,
		ProtectedWindowSize:        3,
		SummaryMaxTokens:           512,
		ReferenceTokens:            25,
		CrisisKeywords:             append([]string(nil), DefaultCrisisKeywords...),
	}
}

// Validate checks the configuration before any turn is accepted.
func (c Config) Validate() error {
	switch {
	case c.MaxTokens <= 0:
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	case c.CharsPerToken <= 0:
		return fmt.Errorf("%w: chars per token must be positive, got %g", ErrInvalidConfig, c.CharsPerToken)
	case c.ReservedSystemPromptTokens < 0:
		return fmt.Errorf("%w: reserved tokens must not be negative, got %d", ErrInvalidConfig, c.ReservedSystemPromptTokens)
	case c.ReservedSystemPromptTokens >= c.MaxTokens:
		return fmt.Errorf("%w: reserved tokens %d must be below max tokens %d", ErrInvalidConfig, c.ReservedSystemPromptTokens, c.MaxTokens)
	case c.ProtectedWindowSize < 0:
		return fmt.Errorf("%w: protected window size must not be negative, got %d", ErrInvalidConfig, c.ProtectedWindowSize)
	case c.SummaryMaxTokens < 0:
		return fmt.Errorf("%w: summary max tokens must not be negative, got %d", ErrInvalidConfig, c.SummaryMaxTokens)
	case c.ReferenceTokens <= 0:
		return fmt.Errorf("%w: reference tokens must be positive, got %d", ErrInvalidConfig, c.ReferenceTokens)
	}
	return nil
}

// snapshot copies the mutable parts so later edits by the caller cannot leak in.
func (c Config) snapshot() Config {
	keywords := make([]string, 0, len(c.CrisisKeywords))
	for _, kw := range c.CrisisKeywords {
		if kw = normalizeKeyword(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	c.CrisisKeywords = keywords
	return c
}

// budget is the token allowance left for turns and the summary.
func (c Config) budget() int {
	return c.MaxTokens - c.ReservedSystemPromptTokens
}

func normalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}
