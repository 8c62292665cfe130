package contextwindow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSummarizer(t *testing.T, maxTokens int) *Summarizer {
	t.Helper()
	est, err := NewCharEstimator(1)
	require.NoError(t, err)
	return NewSummarizer(est, maxTokens)
}

func TestSummarizerMergeAppendsCompactEntry(t *testing.T) {
	z := newTestSummarizer(t, 200)

	s := z.Merge(Summary{}, &Turn{Seq: 4, Emotion: 0.2, Keywords: []string{"焦虑", "失眠", "焦虑"}})
	s = z.Merge(s, &Turn{Seq: 7, Emotion: 0.8})
	s = z.Merge(s, &Turn{Seq: 9, Emotion: 0.5, Keywords: []string{"工作"}})

	require.Len(t, s.Entries, 3)
	assert.Equal(t, "第4轮[情绪低·]焦虑、失眠", s.Entries[0])
	assert.Equal(t, "第7轮[情绪高↑]无明显话题", s.Entries[1])
	assert.Equal(t, "第9轮[情绪中↓]工作", s.Entries[2])
	assert.Equal(t, 3, s.MergedTurns)
	assert.True(t, strings.HasPrefix(s.Text(), "[历史摘要] 此前3轮对话摘要："))
	assert.Equal(t, len([]rune(s.Text())), s.Tokens)
}

func TestSummarizerDropsOldestEntriesFirst(t *testing.T) {
	z := newTestSummarizer(t, 40)

	var s Summary
	for seq := uint64(1); seq <= 30; seq++ {
		s = z.Merge(s, &Turn{Seq: seq, Emotion: 0.1, Keywords: []string{"家庭"}})
		assert.LessOrEqual(t, s.Tokens, 40)
	}

	require.NotEmpty(t, s.Entries)
	assert.Equal(t, 30, s.MergedTurns)
	assert.Contains(t, s.Entries[len(s.Entries)-1], "第30轮")
	assert.NotContains(t, s.Text(), "第1轮")
}

func TestSummarizerTruncatesOversizedEntry(t *testing.T) {
	z := newTestSummarizer(t, 20)

	keywords := []string{"一二三四五", "六七八九十", "甲乙丙丁戊", "子丑寅卯辰", "东南西北中"}
	s := z.Merge(Summary{}, &Turn{Seq: 1, Keywords: keywords})

	require.Len(t, s.Entries, 1)
	assert.LessOrEqual(t, s.Tokens, 20)
	assert.True(t, strings.HasPrefix(s.Entries[0], "第1轮"))
}

// perRune charges one token per character, as BPE encoders do for CJK text.
type perRune struct{}

func (perRune) Estimate(text string) int { return len([]rune(text)) }

func TestSummarizerTruncatesWithCostlyEstimator(t *testing.T) {
	z := NewSummarizer(perRune{}, 20)

	s := z.Merge(Summary{}, &Turn{Seq: 1, Keywords: []string{"焦虑", "失眠", "工作"}})

	require.Len(t, s.Entries, 1, "header leaves room, the entry must be kept")
	assert.Equal(t, "第1轮[", s.Entries[0])
	assert.Equal(t, 20, s.Tokens)
	assert.Equal(t, 1, s.MergedTurns)
}

func TestSummarizerDropsEntryWhenOnlyHeaderFits(t *testing.T) {
	z := NewSummarizer(perRune{}, 16)

	s := z.Merge(Summary{}, &Turn{Seq: 1, Keywords: []string{"焦虑"}})

	assert.True(t, s.Empty())
	assert.Zero(t, s.Tokens)
	assert.Equal(t, 1, s.MergedTurns)
}

func TestSummarizerFitToZeroEmptiesSummary(t *testing.T) {
	z := newTestSummarizer(t, 200)
	s := z.Merge(Summary{}, &Turn{Seq: 1, Keywords: []string{"学习"}})

	fitted := z.Fit(s, 0)
	assert.True(t, fitted.Empty())
	assert.Zero(t, fitted.Tokens)
	assert.Empty(t, fitted.Text())
	assert.Equal(t, 1, fitted.MergedTurns)
	assert.False(t, s.Empty(), "Fit must not modify its input")
}

func TestMergeDoesNotAliasInput(t *testing.T) {
	z := newTestSummarizer(t, 200)
	first := z.Merge(Summary{}, &Turn{Seq: 1})
	second := z.Merge(first, &Turn{Seq: 2})

	assert.Len(t, first.Entries, 1)
	assert.Len(t, second.Entries, 2)
}

func TestScoringFactors(t *testing.T) {
	assert.Equal(t, 1.0, EmotionFactor(0))
	assert.Equal(t, 1.5, EmotionFactor(1))
	assert.Equal(t, 1.5, EmotionFactor(7))
	assert.Equal(t, 1.0, EmotionFactor(-2))

	keyword := CrisisKeywordFactor([]string{"Crisis", " 自杀 "})
	assert.Equal(t, 2.0, keyword([]string{"crisis"}))
	assert.Equal(t, 2.0, keyword([]string{"工作", "自杀"}))
	assert.Equal(t, 1.0, keyword([]string{"工作"}))
	assert.Equal(t, 1.0, keyword(nil))

	length := LengthFactor(25)
	assert.Equal(t, 1.0, length(1))
	assert.Equal(t, 1.2, length(30))
	assert.Equal(t, 2.0, length(500))
}

func TestRecencyCurvesAreMonotonic(t *testing.T) {
	curves := map[string]RecencyFunc{
		"hyperbolic":  HyperbolicRecency(0.1),
		"exponential": ExponentialRecency(0.9),
		"flat":        FlatRecency,
	}
	for name, curve := range curves {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 1.0, curve(0))
			prev := curve(0)
			for age := 1; age < 50; age++ {
				cur := curve(age)
				assert.LessOrEqual(t, cur, prev)
				prev = cur
			}
		})
	}
}

func TestCharEstimator(t *testing.T) {
	_, err := NewCharEstimator(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	est, err := NewCharEstimator(4)
	require.NoError(t, err)
	assert.Equal(t, 0, est.Estimate(""))
	assert.Equal(t, 1, est.Estimate("abc"))
	assert.Equal(t, 10, est.Estimate(strings.Repeat("a", 40)))
	assert.Equal(t, 2, est.Estimate("我最近感觉很焦虑"), "runes, not bytes")
}
