package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	sweepRunsTotal        prometheus.Counter
	sweepAutoGradedTotal  prometheus.Counter
	sweepWarningsTotal    prometheus.Counter
	sweepFailuresTotal    prometheus.Counter
	sweepDurationSeconds  prometheus.Histogram
	submissionsTotal      *prometheus.CounterVec
	gradesTotal           prometheus.Counter
	notificationsTotal    *prometheus.CounterVec
	notificationListeners prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the academy API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "academy_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		sweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "academy_deadline_sweeps_total",
			Help: "Number of deadline sweeps executed.",
		})
		sweepAutoGradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "academy_deadline_auto_graded_total",
			Help: "Zero-score submissions created for missed deadlines.",
		})
		sweepWarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "academy_deadline_warnings_total",
			Help: "Deadline warnings sent to students.",
		})
		sweepFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "academy_deadline_failures_total",
			Help: "Per-student failures isolated during deadline sweeps.",
		})
		sweepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "academy_deadline_sweep_seconds",
			Help:    "Duration of deadline sweeps.",
			Buckets: prometheus.DefBuckets,
		})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_submissions_total",
			Help: "Submission attempts by outcome.",
		}, []string{"outcome"})
		gradesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "academy_grades_total",
			Help: "Submissions graded by teachers or admins.",
		})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_notifications_published_total",
			Help: "Notifications delivered to subscribers, by type.",
		}, []string{"type"})
		notificationListeners = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "academy_notification_listeners",
			Help: "Open websocket notification streams.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			sweepRunsTotal, sweepAutoGradedTotal, sweepWarningsTotal, sweepFailuresTotal, sweepDurationSeconds,
			submissionsTotal, gradesTotal,
			notificationsTotal, notificationListeners,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SweepRuns counts deadline sweeps.
func SweepRuns() prometheus.Counter {
	RegisterMetrics()
	return sweepRunsTotal
}

// SweepAutoGraded counts zero-score submissions created by sweeps.
func SweepAutoGraded() prometheus.Counter {
	RegisterMetrics()
	return sweepAutoGradedTotal
}

// SweepWarnings counts deadline warnings created by sweeps.
func SweepWarnings() prometheus.Counter {
	RegisterMetrics()
	return sweepWarningsTotal
}

// SweepFailures counts isolated sweep failures.
func SweepFailures() prometheus.Counter {
	RegisterMetrics()
	return sweepFailuresTotal
}

// SweepDuration observes sweep run time.
func SweepDuration() prometheus.Histogram {
	RegisterMetrics()
	return sweepDurationSeconds
}

// Submissions counts submission attempts labelled by outcome.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// Grades counts grading operations.
func Grades() prometheus.Counter {
	RegisterMetrics()
	return gradesTotal
}

// NotificationsPublished counts notifications pushed to subscribers.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// NotificationListeners tracks open notification streams.
func NotificationListeners() prometheus.Gauge {
	RegisterMetrics()
	return notificationListeners
}
