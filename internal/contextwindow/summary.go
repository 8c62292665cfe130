package contextwindow

import (
	"fmt"
	"sort"
	"strings"
)

const (
	summaryKeywordLimit = 5
	trendThreshold      = 0.1
	summaryHeader       = "[历史摘要] 此前%d轮对话摘要："
	summarySeparator    = "；"
)

// Summary is the bounded digest of every turn evicted from a window.
type Summary struct {
	// Entries holds one compact line per merged turn, oldest first.
	Entries []string `json:"entries,omitempty"`
	// MergedTurns counts every turn ever absorbed, including those whose
	// entries were later truncated.
	MergedTurns int `json:"mergedTurns"`
	Tokens      int `json:"tokens"`

	lastEmotion float64
	hasEmotion  bool
}

// Empty reports whether the summary carries no text.
func (s Summary) Empty() bool {
	return len(s.Entries) == 0
}

// Text renders the summary block exactly as it is placed in the context,
// so Tokens covers every rendered character. It is empty when there are no entries.
func (s Summary) Text() string {
	if s.Empty() {
		return ""
	}
	return fmt.Sprintf(summaryHeader, s.MergedTurns) + strings.Join(s.Entries, summarySeparator)
}

func (s Summary) clone() Summary {
	s.Entries = append([]string(nil), s.Entries...)
	return s
}

// Summarizer folds evicted turns into a Summary capped at maxTokens.
type Summarizer struct {
	estimator Estimator
	maxTokens int
}

// NewSummarizer returns a summarizer bounded by maxTokens.
func NewSummarizer(est Estimator, maxTokens int) *Summarizer {
	return &Summarizer{estimator: est, maxTokens: maxTokens}
}

// Merge appends a compact representation of t and returns the new summary.
// The input summary is not modified.
func (z *Summarizer) Merge(s Summary, t *Turn) Summary {
	next := s.clone()
	next.Entries = append(next.Entries, z.entry(s, t))
	next.MergedTurns++
	next.lastEmotion = clampIntensity(t.Emotion)
	next.hasEmotion = true
	return z.Fit(next, z.maxTokens)
}

// Fit drops the oldest entries until the summary costs at most limit tokens.
func (z *Summarizer) Fit(s Summary, limit int) Summary {
	next := s.clone()
	if limit <= 0 {
		next.Entries = nil
		next.Tokens = 0
		return next
	}

	next.Tokens = z.estimator.Estimate(next.Text())
	for next.Tokens > limit && len(next.Entries) > 1 {
		next.Entries = next.Entries[1:]
		next.Tokens = z.estimator.Estimate(next.Text())
	}
	if next.Tokens > limit && len(next.Entries) == 1 {
		next.Entries[0] = z.truncateEntry(next, limit)
		next.Tokens = z.estimator.Estimate(next.Text())
		if next.Entries[0] == "" || next.Tokens > limit {
			next.Entries = nil
			next.Tokens = 0
		}
	}
	return next
}

// truncateEntry returns the longest prefix of the only entry that fits in
// limit together with the header. Cost is monotonic in prefix length.
func (z *Summarizer) truncateEntry(s Summary, limit int) string {
	entry := []rune(s.Entries[0])
	fits := func(n int) bool {
		candidate := Summary{Entries: []string{string(entry[:n])}, MergedTurns: s.MergedTurns}
		return z.estimator.Estimate(candidate.Text()) <= limit
	}
	n := sort.Search(len(entry), func(i int) bool { return !fits(i + 1) })
	return string(entry[:n])
}

func (z *Summarizer) entry(prev Summary, t *Turn) string {
	intensity := clampIntensity(t.Emotion)

	var b strings.Builder
	fmt.Fprintf(&b, "第%d轮[情绪%s%s]", t.Seq, intensityLabel(intensity), trendMarker(prev, intensity))
	keywords := dedupe(t.Keywords, summaryKeywordLimit)
	if len(keywords) == 0 {
		b.WriteString("无明显话题")
	} else {
		b.WriteString(strings.Join(keywords, "、"))
	}
	return b.String()
}

func intensityLabel(v float64) string {
	switch {
	case v >= 0.66:
		return "高"
	case v >= 0.33:
		return "中"
	default:
		return "低"
	}
}

func trendMarker(prev Summary, v float64) string {
	if !prev.hasEmotion {
		return "·"
	}
	switch diff := v - prev.lastEmotion; {
	case diff > trendThreshold:
		return "↑"
	case diff < -trendThreshold:
		return "↓"
	default:
		return "→"
	}
}

func dedupe(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
