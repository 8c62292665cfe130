package chat

// TurnInput is one completed exchange together with the signals produced for it
// by the emotion and keyword analyzers.
type TurnInput struct {
	UserMessage  string   `json:"userMessage"`
	AIResponse   string   `json:"aiResponse"`
	EmotionScore float64  `json:"emotionScore"`
	EmotionLabel string   `json:"emotionLabel,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}
