// Package profile 描述来访者跨会话的长期画像。
package profile

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// TrendLimit 保留的最近情绪记录数
	TrendLimit = 10
	// TopicLimit 保留的常见话题数
	TopicLimit = 10

	newUserSummary = "新用户，暂无历史记录。"
)

// 情绪趋势判断
const (
	TrendStable   = "平稳"
	TrendVolatile = "情绪波动较大"
	TrendConcern  = "需要关注"
	TrendPositive = "情绪积极"
)

// EmotionPoint 一次交互的情绪记录
type EmotionPoint struct {
	Time      time.Time `json:"time"`
	Emotion   string    `json:"emotion"`
	Intensity float64   `json:"intensity"`
	Risk      string    `json:"risk"`
}

func (p EmotionPoint) risky() bool {
	return p.Risk == "high" || p.Risk == "medium"
}

// Record 写入画像的一次交互
type Record struct {
	Emotion   string
	Intensity float64
	Negative  bool
	Risk      string
	Topics    []string
}

// Profile 来访者画像
type Profile struct {
	UserID          string         `json:"userId"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastActive      time.Time      `json:"lastActive"`
	TotalChats      int            `json:"totalChats"`
	TotalRiskAlerts int            `json:"totalRiskAlerts"`
	NegativeChats   int            `json:"negativeChats"`
	CommonTopics    []string       `json:"commonTopics"`
	EmotionTrend    []EmotionPoint `json:"emotionTrend"`
}

// New 返回空画像
func New(userID string, now time.Time) Profile {
	return Profile{
		UserID:       userID,
		CreatedAt:    now,
		LastActive:   now,
		CommonTopics: []string{},
		EmotionTrend: []EmotionPoint{},
	}
}

// Apply 累计一次交互。话题按首次出现保留前 TopicLimit 个，情绪只保留最近 TrendLimit 条。
func (p Profile) Apply(rec Record, now time.Time) Profile {
	next := p.Clone()
	next.TotalChats++
	next.LastActive = now
	if rec.Risk == "high" || rec.Risk == "medium" {
		next.TotalRiskAlerts++
	}
	if rec.Negative {
		next.NegativeChats++
	}

	for _, topic := range rec.Topics {
		if len(next.CommonTopics) >= TopicLimit {
			break
		}
		if topic != "" && !slices.Contains(next.CommonTopics, topic) {
			next.CommonTopics = append(next.CommonTopics, topic)
		}
	}

	next.EmotionTrend = append(next.EmotionTrend, EmotionPoint{
		Time:      now,
		Emotion:   rec.Emotion,
		Intensity: rec.Intensity,
		Risk:      rec.Risk,
	})
	if n := len(next.EmotionTrend); n > TrendLimit {
		next.EmotionTrend = next.EmotionTrend[n-TrendLimit:]
	}
	return next
}

// Clone 深拷贝
func (p Profile) Clone() Profile {
	p.CommonTopics = append([]string{}, p.CommonTopics...)
	p.EmotionTrend = append([]EmotionPoint{}, p.EmotionTrend...)
	return p
}

// Volatile 最近三次中至少两次带风险
func (p Profile) Volatile() bool {
	if len(p.EmotionTrend) < 3 {
		return false
	}
	risky := 0
	for _, pt := range p.EmotionTrend[len(p.EmotionTrend)-3:] {
		if pt.risky() {
			risky++
		}
	}
	return risky >= 2
}

// Summary 拼入提示词的画像摘要
func (p Profile) Summary() string {
	if p.TotalChats == 0 {
		return newUserSummary
	}

	var b strings.Builder
	fmt.Fprintf(&b, "该用户已咨询%d次。", p.TotalChats)
	if len(p.CommonTopics) > 0 {
		fmt.Fprintf(&b, "主要困扰领域：%s。", strings.Join(p.CommonTopics, "、"))
	}
	if p.TotalRiskAlerts > 0 {
		fmt.Fprintf(&b, "历史风险预警：%d次。", p.TotalRiskAlerts)
	}
	if p.Volatile() {
		b.WriteString("近期情绪波动较大，需重点关注。")
	}
	return b.String()
}

// IsNew 是否尚无交互记录
func (p Profile) IsNew() bool {
	return p.TotalChats == 0
}

// Trend 情绪趋势视图
type Trend struct {
	UserID    string         `json:"userId"`
	Points    []EmotionPoint `json:"points"`
	Analysis  string         `json:"analysis"`
	RiskAlert bool           `json:"riskAlert"`
	Average   float64        `json:"averageIntensity"`
	Counts    map[string]int `json:"counts"`
}

// negativeEmotions 与 analysis/emotion 的负面标签一致
var negativeEmotions = []string{"anxious", "sad", "angry", "hopeless"}

// Trend 根据最近 limit 条记录给出趋势判断。limit <= 0 返回全部。
func (p Profile) Trend(limit int) Trend {
	points := p.EmotionTrend
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}

	t := Trend{
		UserID:   p.UserID,
		Points:   append([]EmotionPoint{}, points...),
		Analysis: TrendStable,
		Counts:   make(map[string]int),
	}
	if len(points) == 0 {
		return t
	}

	var sum float64
	for _, pt := range points {
		sum += pt.Intensity
		t.Counts[pt.Emotion]++
	}
	t.Average = float64(int(sum/float64(len(points))*100+0.5)) / 100

	if len(points) < 3 {
		return t
	}
	recent := points[len(points)-3:]
	negative, strong := 0, 0
	for _, pt := range recent {
		if slices.Contains(negativeEmotions, pt.Emotion) {
			negative++
			if pt.Intensity > 0.7 {
				strong++
			}
		}
	}
	switch {
	case strong >= 2:
		t.Analysis = TrendConcern
		t.RiskAlert = true
	case negative >= 2:
		t.Analysis = TrendVolatile
	case recent[1].Emotion == "happy" && recent[2].Emotion == "happy":
		t.Analysis = TrendPositive
	}
	return t
}
