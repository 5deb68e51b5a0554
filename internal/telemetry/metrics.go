// Package telemetry holds the Prometheus collectors for the thread lifecycle.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vcthread"

const (
	RenameResultOK        = "ok"
	RenameResultNotFound  = "not_found"
	RenameResultInvalid   = "invalid_name"
	RenameResultForbidden = "forbidden"
	RenameResultFailed    = "failed"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	ThreadsCreated       prometheus.Counter
	ThreadCreateFailures prometheus.Counter
	ThreadsArchived      prometheus.Counter
	ArchiveFailures      prometheus.Counter
	DuplicateEvents      *prometheus.CounterVec
	PlatformRetries      *prometheus.CounterVec
	Renames              *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge
	SessionDuration      prometheus.Observer
	SessionParticipants  prometheus.Observer
}

// NewMetrics registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry(); the binary passes prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,

		ThreadsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_created_total",
			Help:      "Number of companion threads created for voice channels",
		}),
		ThreadCreateFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_create_failures_total",
			Help:      "Number of voice channel appearances abandoned because thread creation failed",
		}),
		ThreadsArchived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_archived_total",
			Help:      "Number of companion threads archived after their voice channel was deleted",
		}),
		ArchiveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Number of sessions removed after the summary or archive command failed",
		}),
		DuplicateEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_events_total",
			Help:      "Lifecycle events dropped as duplicates, by event kind",
		}, []string{"kind"}),
		PlatformRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_retries_total",
			Help:      "Retried platform commands, by operation",
		}, []string{"operation"}),
		Renames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renames_total",
			Help:      "Voice channel rename requests, by result",
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Voice channels currently linked to a thread",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of archived voice sessions",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		}),
		SessionParticipants: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_participants",
			Help:      "Distinct participants per archived voice session",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
