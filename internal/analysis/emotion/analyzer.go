package emotion

import (
	"math"
	"strings"
)

// Label 表示来访者话语中识别到的情绪类别。
type Label string

const (
	Neutral  Label = "neutral"
	Calm     Label = "calm"
	Happy    Label = "happy"
	Anxious  Label = "anxious"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Hopeless Label = "hopeless"
)

// Decision 给出情绪识别结果以及情绪强度（Scale 1-5）。
type Decision struct {
	Emotion Label
	Scale   float32
	Score   int
}

// Intensity 将 Scale 映射到 [0,1]，中性情绪为 0。
func (d Decision) Intensity() float64 {
	if d.Emotion == Neutral || d.Score == 0 {
		return 0
	}
	v := (float64(d.Scale) - 1) / 4
	return math.Max(0, math.Min(1, v))
}

// Negative reports whether the label is a distress emotion.
func (d Decision) Negative() bool {
	switch d.Emotion {
	case Anxious, Sad, Angry, Hopeless:
		return true
	default:
		return false
	}
}

var keywordBuckets = map[Label][]string{
	Calm: {
		"平静", "放松", "轻松", "安心", "踏实", "舒服", "好多了", "缓过来", "calm", "relaxed", "peaceful",
	},
	Happy: {
		"开心", "高兴", "快乐", "喜悦", "满意", "感激", "谢谢", "期待", "哈哈", "太好了", "happy", "glad", "thanks",
	},
	Anxious: {
		"焦虑", "紧张", "担心", "害怕", "不安", "恐慌", "慌", "压力", "失眠", "睡不着", "心跳", "坐立不安",
		"anxious", "nervous", "worried", "panic", "stress",
	},
	Sad: {
		"难过", "伤心", "失落", "沮丧", "悲伤", "哭", "孤单", "寂寞", "委屈", "低落", "心碎", "失望", "抑郁",
		"sad", "lonely", "cry", "depressed", "upset",
	},
	Angry: {
		"生气", "愤怒", "火大", "气死", "烦死", "受够了", "讨厌", "恨", "抓狂", "不公平",
		"angry", "furious", "mad", "annoyed", "hate",
	},
	Hopeless: {
		"绝望", "没有希望", "没意义", "活不下去", "不想活", "想死", "撑不住", "崩溃", "没用", "痛苦",
		"hopeless", "worthless", "give up",
	},
}

// 负面情绪权重更高，同等命中数下强度更大。
var labelWeight = map[Label]int{
	Calm:     2,
	Happy:    2,
	Anxious:  3,
	Sad:      3,
	Angry:    3,
	Hopeless: 4,
}

// 正面情绪的强度上限。
const positiveScaleCap = 3

// Analyze 根据来访者话语推断情绪，来访者话语无明显情绪时参考咨询师回复。
func Analyze(userMessage, aiResponse string) Decision {
	final := scoreText(userMessage)
	if final.Score == 0 {
		final = scoreText(aiResponse)
		// 回复里的情绪只是对来访者的映射，强度减半。
		final.Score /= 2
	}

	if final.Score == 0 {
		return Decision{Emotion: Neutral, Scale: 1, Score: 0}
	}

	scale := 1 + float32(final.Score)/4
	switch final.Emotion {
	case Hopeless:
		scale += 1
	case Calm, Happy:
		scale = float32(math.Min(positiveScaleCap, float64(scale)))
	}

	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}

	return Decision{Emotion: final.Emotion, Scale: scale, Score: final.Score}
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += labelWeight[label]
			}
		}
	}

	bestLabel := Neutral
	bestScore := 0
	for _, label := range []Label{Hopeless, Anxious, Sad, Angry, Happy, Calm} {
		if s := scores[label]; s > bestScore {
			bestScore = s
			bestLabel = label
		}
	}
	if bestScore == 0 {
		return Decision{Emotion: Neutral}
	}

	// 感叹号与省略号加强已识别出的情绪。
	bestScore += strings.Count(text, "!") + strings.Count(text, "！")
	if bestLabel == Sad || bestLabel == Hopeless {
		bestScore += strings.Count(text, "……") + strings.Count(text, "...")
	}

	return Decision{Emotion: bestLabel, Score: bestScore}
}
