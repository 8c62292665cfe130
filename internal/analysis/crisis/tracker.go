package crisis

import (
	"sync"
	"time"
)

// Stats 进程内危机筛查统计
type Stats struct {
	Screened      int           `json:"screened"`
	ByLevel       map[Level]int `json:"byLevel"`
	Alerts        int           `json:"alerts"`
	Interventions int           `json:"interventions"`
	LastAlert     *time.Time    `json:"lastAlert,omitempty"`
	LastReason    string        `json:"lastReason,omitempty"`
}

// Tracker counts screened messages by level. The zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Record 记录一次筛查结果，中高危计入预警。
func (t *Tracker) Record(a Assessment) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stats.ByLevel == nil {
		t.stats.ByLevel = make(map[Level]int)
	}
	t.stats.Screened++
	t.stats.ByLevel[a.Level]++
	if a.Level == Low {
		return
	}

	t.stats.Alerts++
	if a.NeedsIntervention() {
		t.stats.Interventions++
	}
	now := time.Now().UTC()
	if t.now != nil {
		now = t.now()
	}
	t.stats.LastAlert = &now
	t.stats.LastReason = a.Reason
}

// Stats 返回统计快照
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.stats
	out.ByLevel = make(map[Level]int, 3)
	for _, level := range []Level{Low, Medium, High} {
		out.ByLevel[level] = t.stats.ByLevel[level]
	}
	if t.stats.LastAlert != nil {
		last := *t.stats.LastAlert
		out.LastAlert = &last
	}
	return out
}
