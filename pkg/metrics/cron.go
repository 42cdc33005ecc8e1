package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const cronSubsystem = "cron"

// CronJobMetrics tracks outcomes and runtimes of the scheduled storefront
// jobs (pending-order expiry, outbox retention).
type CronJobMetrics struct {
	runSeconds *prometheus.HistogramVec
	completed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron collectors on reg. A nil registerer
// yields a no-op recorder so workers can run without metrics.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: cronSubsystem,
			Name:      "job_run_seconds",
			Help:      "Wall-clock runtime of a scheduled job.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: cronSubsystem,
			Name:      "jobs_completed_total",
			Help:      "Scheduled job runs that finished without error.",
		}, []string{"job"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: cronSubsystem,
			Name:      "jobs_failed_total",
			Help:      "Scheduled job runs that returned an error.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runSeconds, m.completed, m.failed)
	return m
}

// ObserveDuration records how long the named job ran.
func (m *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.runSeconds == nil {
		return
	}
	m.runSeconds.WithLabelValues(jobLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a clean run of the named job.
func (m *CronJobMetrics) IncSuccess(job string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(jobLabel(job)).Inc()
}

// IncFailure counts a failed run of the named job.
func (m *CronJobMetrics) IncFailure(job string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(jobLabel(job)).Inc()
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
