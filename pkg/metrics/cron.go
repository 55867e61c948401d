package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronOutcomeSuccess = "success"
	cronOutcomeFailure = "failure"
)

// CronJobMetrics tracks reminder-dispatch and recompute cycles. A nil value is
// safe to use and records nothing.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "cron_job_duration_seconds",
		Help: "Wall time of a cron job run.",
		// Dispatch over a large user base can run for minutes.
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job runs by outcome.",
	}, []string{"job", "outcome"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run. Alert when reminders stall.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess)
	return &CronJobMetrics{duration: duration, runs: runs, lastSuccess: lastSuccess}
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	c.incRun(job, cronOutcomeSuccess)
}

func (c *CronJobMetrics) IncFailure(job string) {
	c.incRun(job, cronOutcomeFailure)
}

// MarkLastSuccess stamps the freshness gauge for job.
func (c *CronJobMetrics) MarkLastSuccess(job string, at time.Time) {
	if c == nil || c.lastSuccess == nil {
		return
	}
	c.lastSuccess.WithLabelValues(normalizeLabel(job)).Set(float64(at.Unix()))
}

func (c *CronJobMetrics) incRun(job, outcome string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
