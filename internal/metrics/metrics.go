package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
)

// 上下文窗口指标
var (
	// TurnsRecorded 写入上下文窗口的对话轮次总数
	TurnsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zcounsel_context_turns_total",
		Help: "写入上下文窗口的对话轮次总数",
	})

	// TurnsSummarized 被压缩进摘要的轮次总数
	TurnsSummarized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zcounsel_context_turns_summarized_total",
		Help: "被压缩进摘要的对话轮次总数",
	})

	// OverBudgetEvents 受保护轮次超出预算的次数
	OverBudgetEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zcounsel_context_over_budget_total",
		Help: "受保护轮次超出 token 预算的次数",
	})

	// ContextUtilization 写入后上下文利用率分布（百分比）
	ContextUtilization = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zcounsel_context_utilization_percent",
		Help:    "写入后上下文 token 利用率分布",
		Buckets: []float64{5, 10, 25, 50, 75, 90, 95, 100},
	})

	// ActiveWindows 当前存活的上下文窗口数量
	ActiveWindows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zcounsel_context_windows",
		Help: "当前存活的上下文窗口数量",
	})
)

// 咨询请求指标
var (
	// AsksTotal 按风险等级统计的咨询请求数
	AsksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zcounsel_asks_total",
			Help: "按风险等级统计的咨询请求数",
		},
		[]string{"risk_level"},
	)

	// GenerationErrors 模型生成失败次数
	GenerationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zcounsel_generation_errors_total",
		Help: "模型生成失败次数",
	})
)

// ObserveTurn 记录一次 AddTurn 的结果。
func ObserveTurn(out contextwindow.Outcome, stats contextwindow.Statistics) {
	TurnsRecorded.Inc()
	if out.Summarized > 0 {
		TurnsSummarized.Add(float64(out.Summarized))
	}
	if out.OverBudget {
		OverBudgetEvents.Inc()
	}
	ContextUtilization.Observe(stats.UtilizationRate)
}
