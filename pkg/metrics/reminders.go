package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Email delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeRetried = "retried"
	OutcomeDropped = "dropped"
)

// ReminderMetrics counts reminder dispatches and email deliveries.
type ReminderMetrics struct {
	published *prometheus.CounterVec
	failed    prometheus.Counter
	emails    *prometheus.CounterVec
}

// NewReminderMetrics registers the reminder metrics on the provided registerer.
func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	if reg == nil {
		return &ReminderMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_published_total",
		Help: "Reminders handed to the notifier, by days before the cancel-by date.",
	}, []string{"days_before"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_dispatch_failures_total",
		Help: "Reminders that could not be published or recorded.",
	})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_emails_total",
		Help: "Reminder email attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(published, failed, emails)
	return &ReminderMetrics{published: published, failed: failed, emails: emails}
}

func (m *ReminderMetrics) IncPublished(daysBefore int) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(strconv.Itoa(daysBefore)).Inc()
}

func (m *ReminderMetrics) IncDispatchFailure() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

func (m *ReminderMetrics) IncEmail(outcome string) {
	if m == nil || m.emails == nil {
		return
	}
	m.emails.WithLabelValues(normalizeLabel(outcome)).Inc()
}
