package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	"github.com/zhouzirui/z-counsel/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
	emotionservice "github.com/zhouzirui/z-counsel/backend/internal/service/emotion"
)

func TestBuildSystemPromptIncludesHistory(t *testing.T) {
	p := persona.Seed()[1]
	prompt := BuildSystemPrompt(NewPersonaPromptManager(), Request{
		Persona: &p,
		Context: "[历史摘要] 此前2轮对话摘要：第1轮[情绪低·]压力\n\n第3轮（2025-01-01）：\n用户：你好\n咨询师：你好",
		Guidance: &emotionservice.Guidance{
			Decision: emotion.Decision{Emotion: emotion.Anxious, Scale: 3.5, Score: 6},
			Style:    "放慢节奏",
			Reason:   "fallback",
		},
	})

	assert.Contains(t, prompt, p.Name)
	assert.Contains(t, prompt, "认知行为取向")
	assert.Contains(t, prompt, "焦虑紧张")
	assert.Contains(t, prompt, "强度约 3.5")
	assert.Contains(t, prompt, "回复建议：放慢节奏")
	assert.NotContains(t, prompt, "情绪推断理由")
	assert.Contains(t, prompt, "【近期对话历史】\n[历史摘要]")
	assert.True(t, strings.Index(prompt, "安全边界") < strings.Index(prompt, "【近期对话历史】"))
}

func TestBuildSystemPromptWithoutHistory(t *testing.T) {
	prompt := BuildSystemPrompt(NewPersonaPromptManager(), Request{})
	assert.Contains(t, prompt, "心理咨询师")
	assert.NotContains(t, prompt, "【近期对话历史】")
	assert.NotContains(t, prompt, "风险提示")
}

func TestBuildSystemPromptMediumRisk(t *testing.T) {
	prompt := BuildSystemPrompt(NewPersonaPromptManager(), Request{
		Risk: crisis.Assessment{Level: crisis.Medium, Reason: "关键词: 无助"},
	})
	assert.Contains(t, prompt, "风险提示")
	assert.Contains(t, prompt, "关键词: 无助")
}

func TestUnknownPersonaFallsBackToBasicPrompt(t *testing.T) {
	pm := NewPersonaPromptManager()
	_, err := pm.GetPromptTemplate("unknown")
	assert.Error(t, err)

	prompt := pm.BuildSystemPrompt(&persona.Persona{ID: "unknown", Name: "小林", Title: "实习咨询师", Tone: "亲切"})
	assert.True(t, strings.HasPrefix(prompt, "你是小林，实习咨询师。"))
	assert.Contains(t, prompt, "400-161-9995")
}

func TestEveryBuiltInPersonaHasTemplate(t *testing.T) {
	pm := NewPersonaPromptManager()
	for _, p := range persona.Seed() {
		_, err := pm.GetPromptTemplate(p.ID)
		assert.NoError(t, err, p.ID)
	}
}

func TestBuildSystemPromptProfile(t *testing.T) {
	prompt := BuildSystemPrompt(NewPersonaPromptManager(), Request{
		Profile: "该用户已咨询3次。主要困扰领域：失眠。",
		Context: "第1轮（2025-01-01）：\n用户：你好\n咨询师：你好",
	})
	assert.Contains(t, prompt, "【用户画像】\n该用户已咨询3次。")
	assert.True(t, strings.Index(prompt, "【用户画像】") < strings.Index(prompt, "【近期对话历史】"))

	prompt = BuildSystemPrompt(NewPersonaPromptManager(), Request{Profile: "  "})
	assert.NotContains(t, prompt, "【用户画像】")
}
