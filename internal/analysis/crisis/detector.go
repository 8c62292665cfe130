// Package crisis 基于关键词的心理危机分级识别。
package crisis

import (
	"math"
	"strings"
)

// Level 风险等级
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// HighRiskKeywords 高危关键词
var HighRiskKeywords = []string{
	"自杀", "想死", "不想活", "结束生命", "跳楼", "割腕", "安眠药",
	"活着没意义", "不如死了", "想消失", "不想存在", "自残",
	"结束这一切", "了结", "上吊", "喝药", "跳河", "烧炭", "解脱",
	"再见了", "遗言", "处理后事",
}

// MediumRiskKeywords 中危关键词
var MediumRiskKeywords = []string{
	"很痛苦", "绝望", "活着好累", "看不到希望", "没人关心我",
	"想离开", "熬不下去了", "太难受了", "活着没意思",
	"迷茫", "无助", "孤独", "空虚", "厌世", "活不下去",
	"没人在乎", "没意义", "撑不住", "崩溃",
}

// 单字/短语风险模式，累计超过阈值也判为中危。
var riskPatterns = []string{"死", "离开", "痛苦", "绝望", "结束", "消失", "活不下去"}

const (
	patternBonus     = 0.15
	patternThreshold = 0.7
)

// Assessment 危机评估结果
type Assessment struct {
	Level   Level    `json:"level"`
	Score   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
	Reason  string   `json:"reason"`
}

// NeedsIntervention reports whether the fixed intervention must replace a
// model reply.
func (a Assessment) NeedsIntervention() bool {
	return a.Level == High
}

// Detect 对单条消息做危机分级。
func Detect(text string) Assessment {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Assessment{Level: Low, Reason: "空输入"}
	}

	if high := matches(normalized, HighRiskKeywords); len(high) > 0 {
		return Assessment{
			Level:   High,
			Score:   0.9 + math.Min(float64(len(high))*0.02, 0.09),
			Matched: high,
			Reason:  "检测到高危关键词: " + strings.Join(head(high, 3), ", "),
		}
	}

	medium := matches(normalized, MediumRiskKeywords)
	pattern := 0.0
	for _, p := range riskPatterns {
		if strings.Contains(normalized, p) {
			pattern += patternBonus
		}
	}
	pattern = math.Min(pattern, 1)

	if len(medium) > 0 || pattern > patternThreshold {
		score := 0.6
		if len(medium) > 0 {
			score = math.Max(score, 0.6+math.Min(float64(len(medium))*0.05, 0.2))
		}
		if pattern > patternThreshold {
			score = math.Max(score, pattern*0.85)
		}

		reason := "风险模式累计"
		if len(medium) > 0 {
			reason = "关键词: " + strings.Join(head(medium, 3), ", ")
		}
		return Assessment{
			Level:   Medium,
			Score:   math.Min(score, 0.89),
			Matched: medium,
			Reason:  reason,
		}
	}

	return Assessment{Level: Low, Score: pattern * 0.3, Reason: "未检测到明显风险"}
}

func matches(text string, words []string) []string {
	var found []string
	for _, w := range words {
		if strings.Contains(text, w) {
			found = append(found, w)
		}
	}
	return found
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
