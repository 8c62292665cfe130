package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderOfAppearance(t *testing.T) {
	e := New(0, Lexicon)
	got := e.Extract("最近失眠很严重，工作压力也大，还和父母吵架，压力更大了")
	assert.Equal(t, []string{"失眠", "工作", "压力", "父母"}, got)
}

func TestDefaultExtractIncludesCrisisWords(t *testing.T) {
	got := Extract("家庭的事让我很绝望，甚至想到自杀")
	assert.Equal(t, []string{"家庭", "绝望", "自杀"}, got)
}

func TestExtractAcrossTexts(t *testing.T) {
	e := New(0, Lexicon, []string{"自杀", "压力"})
	got := e.Extract("我觉得很孤独", "有时候会想到自杀")
	assert.Equal(t, []string{"孤独", "自杀"}, got)
	assert.Len(t, e.Words(), len(Lexicon)+1, "duplicates are dropped")
}

func TestExtractLimit(t *testing.T) {
	e := New(2, Lexicon)
	assert.Equal(t, []string{"焦虑", "抑郁"}, e.Extract("焦虑 抑郁 压力 失眠"))
}

func TestExtractEmpty(t *testing.T) {
	e := New(0, Lexicon)
	assert.Nil(t, e.Extract("   "))
	assert.Nil(t, e.Extract("今天天气不错"))
}

func TestExtractCaseInsensitive(t *testing.T) {
	e := New(0, []string{"Stress"})
	assert.Equal(t, []string{"stress"}, e.Extract("So much STRESS lately"))
}
