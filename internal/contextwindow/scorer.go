package contextwindow

import (
	"math"
)

// RecencyFunc maps an age rank (0 = newest) to a weight. Implementations must
// return 1.0 for rank 0 and never increase as the rank grows.
type RecencyFunc func(ageRank int) float64

// HyperbolicRecency decays as 1 / (1 + k*age).
func HyperbolicRecency(k float64) RecencyFunc {
	if k < 0 {
		k = 0
	}
	return func(ageRank int) float64 {
		if ageRank <= 0 {
			return 1
		}
		return 1 / (1 + k*float64(ageRank))
	}
}

// ExponentialRecency decays as rate^age, rate in (0, 1].
func ExponentialRecency(rate float64) RecencyFunc {
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return func(ageRank int) float64 {
		if ageRank <= 0 {
			return 1
		}
		return math.Pow(rate, float64(ageRank))
	}
}

// FlatRecency ignores age entirely.
func FlatRecency(int) float64 { return 1 }

// Scorer computes the importance weight used to rank eviction candidates.
// Each factor is a separate function so weighting can be tuned in isolation.
type Scorer struct {
	Recency RecencyFunc
	Emotion func(intensity float64) float64
	Keyword func(keywords []string) float64
	Length  func(tokens int) float64
}

// NewScorer builds the default scorer for cfg.
func NewScorer(cfg Config) *Scorer {
	recency := cfg.Recency
	if recency == nil {
		recency = HyperbolicRecency(0.1)
	}
	return &Scorer{
		Recency: recency,
		Emotion: EmotionFactor,
		Keyword: CrisisKeywordFactor(cfg.CrisisKeywords),
		Length:  LengthFactor(cfg.ReferenceTokens),
	}
}

// Score returns the weight of t at the given age rank.
func (s *Scorer) Score(t *Turn, ageRank int) float64 {
	return s.Recency(ageRank) * s.Emotion(t.Emotion) * s.Keyword(t.Keywords) * s.Length(t.Tokens)
}

// EmotionFactor is 1.0 + 0.5*intensity, in [1.0, 1.5].
func EmotionFactor(intensity float64) float64 {
	return 1 + 0.5*clampIntensity(intensity)
}

// CrisisKeywordFactor doubles the weight of turns tagged with any crisis keyword.
func CrisisKeywordFactor(crisis []string) func([]string) float64 {
	set := make(map[string]struct{}, len(crisis))
	for _, kw := range crisis {
		if kw = normalizeKeyword(kw); kw != "" {
			set[kw] = struct{}{}
		}
	}
	return func(keywords []string) float64 {
		for _, kw := range keywords {
			if _, ok := set[normalizeKeyword(kw)]; ok {
				return 2
			}
		}
		return 1
	}
}

// LengthFactor is tokens/reference clamped to [1.0, 2.0], so very short turns
// are not rewarded and long ones cannot dominate.
func LengthFactor(referenceTokens int) func(int) float64 {
	ref := float64(referenceTokens)
	if ref <= 0 {
		ref = 1
	}
	return func(tokens int) float64 {
		return math.Min(math.Max(float64(tokens)/ref, 1), 2)
	}
}

func clampIntensity(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
