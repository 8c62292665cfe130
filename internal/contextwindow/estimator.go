package contextwindow

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator converts text into an approximate token count.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator approximates tokens as ceil(runes / CharsPerToken).
type CharEstimator struct {
	charsPerToken float64
}

// NewCharEstimator returns an estimator for the given characters-per-token ratio.
func NewCharEstimator(charsPerToken float64) (*CharEstimator, error) {
	if charsPerToken <= 0 || math.IsNaN(charsPerToken) || math.IsInf(charsPerToken, 0) {
		return nil, fmt.Errorf("%w: chars per token must be positive, got %g", ErrInvalidConfig, charsPerToken)
	}
	return &CharEstimator{charsPerToken: charsPerToken}, nil
}

// Estimate counts Unicode code points, so CJK text is not inflated by its UTF-8 width.
func (e *CharEstimator) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / e.charsPerToken))
}

// TiktokenEstimator counts BPE tokens with a tiktoken encoding.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding, e.g. "cl100k_base".
// Loading may download the encoding tables, so it belongs to process setup,
// never to a request path.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	tkm, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenEstimator{encoding: tkm}, nil
}

// Estimate returns the exact BPE token count of text.
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// turnCost is the token charge of one exchange. Empty exchanges still cost one token.
func turnCost(est Estimator, user, response string) int {
	tokens := est.Estimate(user + response)
	if tokens < 1 {
		return 1
	}
	return tokens
}
