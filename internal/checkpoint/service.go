package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trinsiklabs/recall/internal/audit"
	"github.com/trinsiklabs/recall/internal/platform/metrics"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
	"github.com/trinsiklabs/recall/pkg/sentinel"
)

var tracer = otel.Tracer("recall/checkpoint")

// Auditor appends audit records. Satisfied by *audit.Service.
type Auditor interface {
	Record(ctx context.Context, rec audit.Record) (domain.AuditID, error)
}

// Service creates and retires checkpoints. Every attempt, allowed or denied,
// leaves an audit record, and the checkpoint write shares one transaction
// with its audit append so neither can exist without the other.
type Service struct {
	store    Store
	auditor  Auditor
	tx       TxRunner
	gate     *Gate
	resolver *Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithResolver attaches the visibility resolver so its boundary cache is
// invalidated when checkpoints change.
func WithResolver(r *Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, auditor Auditor, tx TxRunner, gate *Gate, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("auditor is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if gate == nil {
		gate = NewGate(nil)
	}
	s := &Service{
		store:   store,
		auditor: auditor,
		tx:      tx,
		gate:    gate,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates, authorizes, and persists a checkpoint. On success the
// checkpoint row and a create/success audit record commit atomically. On a
// denied attempt no checkpoint row is created; the denied audit record is the
// only persisted trace.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Checkpoint, error) {
	ctx, span := tracer.Start(ctx, "checkpoint.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkpoint.type", string(req.Type)),
		attribute.Int64("checkpoint.after_sequence", req.AfterSequence),
	)

	if err := req.Validate(); err != nil {
		return nil, s.deny(ctx, req, err)
	}
	if err := s.gate.Authorize(ctx, req); err != nil {
		return nil, s.deny(ctx, req, err)
	}

	now := s.now()
	cp := &Checkpoint{
		ID:            domain.NewCheckpointID(),
		UserID:        req.UserID,
		Type:          req.Type,
		AfterSequence: req.AfterSequence,
		CreatedBy:     req.CreatedBy,
		AuthorizedBy:  req.AuthorizedBy,
		Reason:        req.Reason,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, cp); err != nil {
			return err
		}
		_, err := s.auditor.Record(ctx, audit.Record{
			Action:  audit.ActionCreate,
			Actor:   req.Actor,
			Outcome: audit.OutcomeSuccess,
			UserID:  &req.UserID,
			Details: map[string]any{
				"operation":       "checkpoint_create",
				"checkpoint_id":   cp.ID.String(),
				"checkpoint_type": string(cp.Type),
				"after_sequence":  cp.AfterSequence,
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domainerr.Wrap(domainerr.CodeValidation, "checkpoint id already exists", err)
		}
		return nil, domainerr.Wrap(domainerr.CodeInternal, "create checkpoint", err)
	}

	if s.metrics != nil {
		s.metrics.CheckpointsCreated.WithLabelValues(string(cp.Type)).Inc()
	}
	if s.resolver != nil {
		s.resolver.Invalidate(ctx, cp.UserID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "checkpoint created",
			"checkpoint_id", cp.ID,
			"type", cp.Type,
			"after_sequence", cp.AfterSequence,
			"user_id", cp.UserID,
		)
	}
	return cp, nil
}

// deny records the rejected attempt and returns the original error. If even
// the denied audit record cannot be persisted, that failure wins: the trail
// accepts no silent gaps.
func (s *Service) deny(ctx context.Context, req CreateRequest, cause error) error {
	if s.metrics != nil {
		s.metrics.CheckpointsDenied.Inc()
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "checkpoint creation denied",
			"type", req.Type,
			"user_id", req.UserID,
			"error", cause,
		)
	}

	rec := audit.Record{
		Action:  audit.ActionAttemptedEdit,
		Actor:   req.Actor,
		Outcome: audit.OutcomeDenied,
		Details: map[string]any{
			"operation":       "checkpoint_create",
			"checkpoint_type": string(req.Type),
			"after_sequence":  req.AfterSequence,
			"denial_reason":   cause.Error(),
		},
	}
	if !req.UserID.IsNil() {
		rec.UserID = &req.UserID
	}
	if _, err := s.auditor.Record(ctx, rec); err != nil {
		return domainerr.Wrap(domainerr.CodeInternal, "record denied checkpoint attempt", err)
	}
	return cause
}

// Deactivate retires a checkpoint without deleting it. Idempotent: a second
// call on the same id succeeds and leaves the original deactivated_at intact.
func (s *Service) Deactivate(ctx context.Context, id domain.CheckpointID, actor string) (*Checkpoint, error) {
	ctx, span := tracer.Start(ctx, "checkpoint.Deactivate")
	defer span.End()

	var cp *Checkpoint
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cp, err = s.store.Deactivate(ctx, id, s.now())
		if err != nil {
			return err
		}
		_, err = s.auditor.Record(ctx, audit.Record{
			Action:  audit.ActionAttemptedEdit,
			Actor:   actor,
			Outcome: audit.OutcomeSuccess,
			UserID:  &cp.UserID,
			Details: map[string]any{
				"operation":     "checkpoint_deactivate",
				"checkpoint_id": cp.ID.String(),
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerr.Wrap(domainerr.CodeNotFound, "checkpoint not found", err)
		}
		return nil, domainerr.Wrap(domainerr.CodeInternal, "deactivate checkpoint", err)
	}

	if s.resolver != nil {
		s.resolver.Invalidate(ctx, cp.UserID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "checkpoint deactivated",
			"checkpoint_id", cp.ID,
			"user_id", cp.UserID,
		)
	}
	return cp, nil
}

// List returns all of a user's checkpoints, newest first.
func (s *Service) List(ctx context.Context, userID domain.UserID) ([]*Checkpoint, error) {
	ctx, span := tracer.Start(ctx, "checkpoint.List")
	defer span.End()
	return s.store.ListByUser(ctx, userID)
}
