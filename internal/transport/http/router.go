// Package httptransport is the thin HTTP layer over the checkpoint and audit
// services. Handlers delegate to domain services without embedding business
// logic so transport concerns remain isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trinsiklabs/recall/internal/audit"
	"github.com/trinsiklabs/recall/internal/checkpoint"
	"github.com/trinsiklabs/recall/internal/platform/metrics"
	"github.com/trinsiklabs/recall/internal/platform/middleware"
	"github.com/trinsiklabs/recall/internal/sequence"
	"github.com/trinsiklabs/recall/pkg/domain"
)

// AuditService is the audit surface the handlers consume.
type AuditService interface {
	Record(ctx context.Context, rec audit.Record) (domain.AuditID, error)
	List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error)
}

// CheckpointService is the checkpoint surface the handlers consume.
type CheckpointService interface {
	Create(ctx context.Context, req checkpoint.CreateRequest) (*checkpoint.Checkpoint, error)
	Deactivate(ctx context.Context, id domain.CheckpointID, actor string) (*checkpoint.Checkpoint, error)
	List(ctx context.Context, userID domain.UserID) ([]*checkpoint.Checkpoint, error)
}

// VisibilityResolver answers read-path visibility questions.
type VisibilityResolver interface {
	IsVisible(ctx context.Context, userID domain.UserID, entrySequence int64) (bool, error)
}

// IntegrityVerifier runs the audited consistency sweep.
type IntegrityVerifier interface {
	Verify(ctx context.Context, userID domain.UserID, actor string) ([]checkpoint.Violation, error)
}

// Handler holds the wired services.
type Handler struct {
	logger      *slog.Logger
	audit       AuditService
	checkpoints CheckpointService
	resolver    VisibilityResolver
	verifier    IntegrityVerifier
	sequence    sequence.Issuer
}

func NewHandler(
	logger *slog.Logger,
	auditSvc AuditService,
	checkpoints CheckpointService,
	resolver VisibilityResolver,
	verifier IntegrityVerifier,
	seq sequence.Issuer,
) *Handler {
	return &Handler{
		logger:      logger,
		audit:       auditSvc,
		checkpoints: checkpoints,
		resolver:    resolver,
		verifier:    verifier,
		sequence:    seq,
	}
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter wires all endpoints. Everything under /v1 requires a valid bearer
// token; health, readiness, and metrics are public. The metrics collector is
// optional, as are the readiness checks.
func NewRouter(h *Handler, validator middleware.TokenValidator, m *metrics.Metrics, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logger(h.logger))
	if m != nil {
		r.Use(middleware.Metrics(func(route, status string, seconds float64) {
			m.RequestDuration.WithLabelValues(route, status).Observe(seconds)
		}))
	}
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range checks {
			if err := check(req.Context()); err != nil {
				h.logger.ErrorContext(req.Context(), "readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, h.logger))

		r.Post("/audit", h.handleRecordAudit)
		r.Get("/audit", h.handleListAudit)

		r.Post("/checkpoints", h.handleCreateCheckpoint)
		r.Get("/checkpoints", h.handleListCheckpoints)
		r.Post("/checkpoints/{id}/deactivate", h.handleDeactivateCheckpoint)

		r.Get("/visibility/{seq}", h.handleVisibility)
		r.Post("/verify", h.handleVerify)
		r.Post("/sequence", h.handleNextSequence)
	})

	return r
}
