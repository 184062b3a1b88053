package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("extraction", "succeeded", 2*time.Second)
	m.ObserveRun("extraction", "succeeded", time.Second)
	m.ObserveRun("synthesis", "failed", time.Second)
	m.IssuesGenerated(3)
	m.IssueRegistered(true)
	m.IssueRegistered(false)
	m.SetPending(2)
	m.InboxFile("processed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("extraction", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("synthesis", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IssuesGeneratedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IssuesRegisteredTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PendingIssues))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboxFilesTotal.WithLabelValues("processed")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("extraction", "succeeded", time.Second)
		m.IssuesGenerated(1)
		m.IssueRegistered(true)
		m.SetPending(1)
		m.InboxFile("failed")
	})
}
