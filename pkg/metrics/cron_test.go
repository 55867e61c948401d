package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("reminder-dispatch")
	m.IncSuccess("reminder-dispatch")
	m.IncFailure("recompute-derived")
	m.IncFailure("")
	m.MarkLastSuccess("reminder-dispatch", time.Unix(1772400000, 0))

	expected := `
# HELP cron_job_runs_total Cron job runs by outcome.
# TYPE cron_job_runs_total counter
cron_job_runs_total{job="recompute-derived",outcome="failure"} 1
cron_job_runs_total{job="reminder-dispatch",outcome="success"} 2
cron_job_runs_total{job="unknown",outcome="failure"} 1
# HELP cron_job_last_success_timestamp_seconds Unix time of the last successful run. Alert when reminders stall.
# TYPE cron_job_last_success_timestamp_seconds gauge
cron_job_last_success_timestamp_seconds{job="reminder-dispatch"} 1.7724e+09
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"cron_job_runs_total", "cron_job_last_success_timestamp_seconds"))
}

func TestCronJobMetricsDurationBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("recompute-derived", 250*time.Millisecond)
	m.ObserveDuration("recompute-derived", 2*time.Minute)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	series, err := sample(mfs, "cron_job_duration_seconds", "job", "recompute-derived")
	require.NoError(t, err)

	hist := series.GetHistogram()
	assert.EqualValues(t, 2, hist.GetSampleCount())
	assert.InDelta(t, 120.25, hist.GetSampleSum(), 1e-9)
	for _, bucket := range hist.GetBucket() {
		switch bucket.GetUpperBound() {
		case 0.5:
			assert.EqualValues(t, 1, bucket.GetCumulativeCount())
		case 180:
			assert.EqualValues(t, 2, bucket.GetCumulativeCount())
		}
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	assert.NotPanics(t, func() {
		m.IncSuccess("x")
		m.IncFailure("x")
		m.ObserveDuration("x", time.Second)
		m.MarkLastSuccess("x", time.Now())

		unregistered := NewCronJobMetrics(nil)
		unregistered.IncSuccess("")
		unregistered.MarkLastSuccess("", time.Now())
	})
}
