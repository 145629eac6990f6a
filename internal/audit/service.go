package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trinsiklabs/recall/internal/platform/metrics"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
)

var tracer = otel.Tracer("recall/audit")

// Service appends audit records with fail-closed semantics: the write is
// synchronous, and if it cannot be persisted the caller MUST fail the
// operation that triggered it. The trail accepts no silent gaps.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	return &Service{store: store, logger: logger, metrics: m}, nil
}

// Record validates and appends one audit entry, returning its id. The entry
// is durable when Record returns without error; after that no API exists to
// update or remove it.
func (s *Service) Record(ctx context.Context, rec Record) (domain.AuditID, error) {
	ctx, span := tracer.Start(ctx, "audit.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("audit.action", string(rec.Action)),
		attribute.String("audit.outcome", string(rec.Outcome)),
	)

	if err := rec.Validate(); err != nil {
		return domain.AuditID{}, err
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:        domain.NewAuditID(),
		UserID:    rec.UserID,
		EntryID:   rec.EntryID,
		Action:    rec.Action,
		Actor:     rec.Actor,
		Outcome:   rec.Outcome,
		Details:   rec.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Append(ctx, entry); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"action", rec.Action,
				"actor", rec.Actor,
				"error", err,
			)
		}
		return domain.AuditID{}, fmt.Errorf("audit append failed: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AuditAppended.WithLabelValues(string(rec.Action), string(rec.Outcome)).Inc()
	}
	return entry.ID, nil
}

// List returns audit entries matching the filter, ordered by creation time.
// Reads are non-destructive and never block writers.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	ctx, span := tracer.Start(ctx, "audit.List")
	defer span.End()

	if filter.Action != "" && !filter.Action.Valid() {
		return nil, domainerr.New(domainerr.CodeValidation, "unknown audit action filter: "+string(filter.Action))
	}
	return s.store.List(ctx, filter)
}
