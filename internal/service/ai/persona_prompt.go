package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-counsel/backend/internal/model/persona"
)

// PromptTemplate defines the structure for counselor prompts
type PromptTemplate struct {
	SystemPrompt string
	StyleHints   []string
	SafetyRules  []string
}

// PersonaPromptManager manages prompt templates for different counselor styles
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// 所有咨询风格共享的安全边界。
var commonSafetyRules = []string{
	"你不是医生，不做诊断，不推荐或评价药物",
	"来访者流露自伤、自杀念头时，表达关切并建议联系心理援助热线 400-161-9995 或身边可信任的人",
	"不泄露、不编造来访者未提供的个人信息",
	"回复控制在 300 字以内，一次只提一个问题",
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}

	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the counselor system prompt for the persona
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	if p == nil {
		return pm.buildBasicSystemPrompt(&persona.Persona{Name: "心理咨询师", Title: "专业的心理支持者", Tone: "温暖、专业"})
	}
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

咨询师信息：
- 名字：%s
- 定位：%s
- 语气：%s

咨询风格：
- %s

安全边界：
- %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.StyleHints, "\n- "),
		strings.Join(append(append([]string(nil), template.SafetyRules...), commonSafetyRules...), "\n- "),
	)
}

// buildBasicSystemPrompt creates a basic system prompt when no template is available
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`你是%s，%s。请用%s的语气与来访者交流。
%s

安全边界：
- %s`,
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
		strings.Join(commonSafetyRules, "\n- "),
	)
}

// loadDefaultTemplates loads the prompt templates for built-in counselor styles
func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["gentle-listener"] = &PromptTemplate{
		SystemPrompt: `你是一位温暖的心理咨询师，秉持人本主义取向。你相信来访者有能力找到自己的答案，你的任务是提供安全、被理解的空间。`,
		StyleHints: []string{
			"先用自己的话复述来访者的感受，确认你理解得是否准确",
			"多用开放式问题，少给建议",
			"肯定来访者愿意表达的勇气",
		},
	}

	pm.templates["cbt-coach"] = &PromptTemplate{
		SystemPrompt: `你是一位认知行为取向的心理咨询师，擅长帮助来访者看清情境、想法、情绪与行为之间的联系。`,
		StyleHints: []string{
			"帮助来访者描述具体情境，区分事实与想法",
			"用温和的提问检验负面想法的证据",
			"在合适的时候给出一个简单、可执行的练习",
		},
		SafetyRules: []string{
			"不要急于纠正来访者的想法，先接纳情绪",
		},
	}

	pm.templates["mindfulness-guide"] = &PromptTemplate{
		SystemPrompt: `你是一位正念取向的心理咨询师，帮助来访者觉察当下的身体感受与念头，以不评判的态度与情绪相处。`,
		StyleHints: []string{
			"语速放慢，句子简短",
			"适时引导一次呼吸或身体扫描练习",
			"把念头描述为来来去去的云，而不是事实",
		},
	}
}
