package contextwindow

import "time"

// Status is the lifecycle state of a turn. The only transition is
// StatusActive -> StatusSummarized.
type Status string

const (
	StatusActive     Status = "active"
	StatusSummarized Status = "summarized"
)

// Turn is one user/counselor exchange plus its derived metadata.
type Turn struct {
	ID          string    `json:"id"`
	Seq         uint64    `json:"seq"`
	CreatedAt   time.Time `json:"createdAt"`
	UserMessage string    `json:"userMessage"`
	AIResponse  string    `json:"aiResponse"`
	Emotion     float64   `json:"emotion"`
	Keywords    []string  `json:"keywords,omitempty"`
	Tokens      int       `json:"tokens"`
	Importance  float64   `json:"importance"`
	Status      Status    `json:"status"`
}

// summarize performs the one-way transition and drops the raw text.
func (t *Turn) summarize() {
	t.Status = StatusSummarized
	t.UserMessage = ""
	t.AIResponse = ""
}

func (t *Turn) clone() Turn {
	c := *t
	c.Keywords = append([]string(nil), t.Keywords...)
	return c
}
