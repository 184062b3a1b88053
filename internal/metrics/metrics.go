package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics pipeline、issue 看板与收件箱的 Prometheus 指标
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type Metrics struct {
	RunsTotal             *prometheus.CounterVec
	RunSeconds            *prometheus.HistogramVec
	IssuesGeneratedTotal  prometheus.Counter
	IssuesRegisteredTotal *prometheus.CounterVec
	PendingIssues         prometheus.Gauge
	InboxFilesTotal       *prometheus.CounterVec
}

// New 在 reg 上注册全部指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetbot_pipeline_runs_total",
				Help: "Total pipeline runs per stage and result",
			},
			[]string{"stage", "status"},
		),
		RunSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetbot_pipeline_run_seconds",
				Help:    "Pipeline run latency per stage",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		IssuesGeneratedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meetbot_issues_generated_total",
				Help: "Total issues generated from meeting records",
			},
		),
		IssuesRegisteredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetbot_issues_registered_total",
				Help: "Total issue registrations by result",
			},
			[]string{"status"},
		),
		PendingIssues: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meetbot_pending_issues",
				Help: "Issues currently waiting for registration",
			},
		),
		InboxFilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetbot_inbox_files_total",
				Help: "Inbox files processed by result",
			},
			[]string{"status"},
		),
	}
}

// ObserveRun 记录一次 pipeline 执行
func (m *Metrics) ObserveRun(stage, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(stage, status).Inc()
	m.RunSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) IssuesGenerated(n int) {
	if m == nil {
		return
	}
	m.IssuesGeneratedTotal.Add(float64(n))
}

func (m *Metrics) IssueRegistered(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	m.IssuesRegisteredTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingIssues.Set(float64(n))
}

func (m *Metrics) InboxFile(status string) {
	if m == nil {
		return
	}
	m.InboxFilesTotal.WithLabelValues(status).Inc()
}
