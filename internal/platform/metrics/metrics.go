package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	AuditAppended      *prometheus.CounterVec
	CheckpointsCreated *prometheus.CounterVec
	CheckpointsDenied  prometheus.Counter
	BoundaryCacheHits  prometheus.Counter
	BoundaryCacheMiss  prometheus.Counter
	VerifyViolations   prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuditAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_audit_appended_total",
			Help: "Audit log records appended, labelled by action and outcome.",
		}, []string{"action", "outcome"}),
		CheckpointsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_checkpoints_created_total",
			Help: "Checkpoints created, labelled by type.",
		}, []string{"type"}),
		CheckpointsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recall_checkpoints_denied_total",
			Help: "Checkpoint creation attempts denied by validation or authorization.",
		}),
		BoundaryCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recall_boundary_cache_hits_total",
			Help: "Visibility boundary resolutions served from the cache.",
		}),
		BoundaryCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recall_boundary_cache_misses_total",
			Help: "Visibility boundary resolutions that fell through to the store.",
		}),
		VerifyViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recall_verify_violations_total",
			Help: "Violations reported by integrity verification sweeps.",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recall_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
