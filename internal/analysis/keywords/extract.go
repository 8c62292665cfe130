// Package keywords 从来访者话语中抽取心理话题关键词。
package keywords

import (
	"slices"
	"strings"

	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
)

// Lexicon 心理咨询常见话题词。
var Lexicon = []string{
	"焦虑", "抑郁", "压力", "失眠", "工作", "学习", "家庭", "父母",
	"恋爱", "分手", "孤独", "自卑", "恐惧", "强迫", "社交", "人际",
	"考试", "失业", "离婚", "死亡", "痛苦", "绝望", "迷茫", "空虚",
}

var defaultExtractor = New(0, Lexicon, contextwindow.DefaultCrisisKeywords)

// Extract 使用默认词表（话题词 + 危机词）抽取关键词。
func Extract(texts ...string) []string {
	return defaultExtractor.Extract(texts...)
}

// Extractor matches a fixed vocabulary against text, reporting hits in order
// of first appearance.
type Extractor struct {
	words []string
	limit int
}

// New builds an extractor over the given word lists, deduplicated in order.
// limit <= 0 returns every match.
func New(limit int, lists ...[]string) *Extractor {
	seen := make(map[string]struct{})
	words := make([]string, 0)
	for _, list := range lists {
		for _, w := range list {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			words = append(words, w)
		}
	}
	return &Extractor{words: words, limit: limit}
}

// Extract 返回文本中出现的关键词。
func (e *Extractor) Extract(texts ...string) []string {
	joined := strings.ToLower(strings.Join(texts, "\n"))
	if strings.TrimSpace(joined) == "" {
		return nil
	}

	type hit struct {
		word string
		pos  int
	}
	var hits []hit
	for _, w := range e.words {
		if pos := strings.Index(joined, w); pos >= 0 {
			hits = append(hits, hit{word: w, pos: pos})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })

	if e.limit > 0 && len(hits) > e.limit {
		hits = hits[:e.limit]
	}
	found := make([]string, len(hits))
	for i, h := range hits {
		found[i] = h.word
	}
	return found
}

// Words returns a copy of the extractor's vocabulary.
func (e *Extractor) Words() []string {
	return append([]string(nil), e.words...)
}
