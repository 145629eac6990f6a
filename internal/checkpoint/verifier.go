package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/trinsiklabs/recall/internal/audit"
	"github.com/trinsiklabs/recall/internal/platform/metrics"
	"github.com/trinsiklabs/recall/internal/sequence"
	"github.com/trinsiklabs/recall/pkg/domain"
)

// Violation describes one integrity check failure found during a sweep.
type Violation struct {
	CheckpointID domain.CheckpointID `json:"checkpoint_id"`
	Kind         string              `json:"kind"`
	Detail       string              `json:"detail"`
}

const (
	ViolationDuplicateID    = "duplicate_checkpoint_id"
	ViolationUnauthorized   = "rollback_without_human_authorization"
	ViolationSequenceRange  = "sequence_out_of_range"
	ViolationNegativeSeq    = "negative_sequence"
	ViolationUnknownType    = "unknown_checkpoint_type"
	ViolationUnknownCreator = "unknown_created_by"
)

// Verifier runs the on-demand consistency sweep behind the audited verify
// action. It only reads checkpoint and sequence state; the single write is
// the verify audit record itself.
type Verifier struct {
	store      Store
	seq        sequence.Issuer
	classifier Classifier
	auditor    Auditor
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewVerifier(store Store, seq sequence.Issuer, classifier Classifier, auditor Auditor, logger *slog.Logger, m *metrics.Metrics) (*Verifier, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if seq == nil {
		return nil, fmt.Errorf("sequence issuer is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("auditor is required")
	}
	if classifier == nil {
		classifier = PrefixClassifier{}
	}
	return &Verifier{
		store:      store,
		seq:        seq,
		classifier: classifier,
		auditor:    auditor,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Verify sweeps one user's checkpoint set and reports violations (empty means
// consistent). It always appends a verify audit record whose outcome reflects
// whether violations were found; if that append fails the sweep fails.
func (v *Verifier) Verify(ctx context.Context, userID domain.UserID, actor string) ([]Violation, error) {
	ctx, span := tracer.Start(ctx, "checkpoint.Verify")
	defer span.End()

	checkpoints, err := v.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for verify: %w", err)
	}
	maxIssued, err := v.seq.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sequence high-water mark: %w", err)
	}

	violations, err := v.sweep(ctx, checkpoints, maxIssued)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("verify.violations", len(violations)))

	outcome := audit.OutcomeSuccess
	if len(violations) > 0 {
		outcome = audit.OutcomeDenied
		if v.metrics != nil {
			v.metrics.VerifyViolations.Add(float64(len(violations)))
		}
		if v.logger != nil {
			v.logger.WarnContext(ctx, "integrity sweep found violations",
				"user_id", userID,
				"violations", len(violations),
			)
		}
	}

	_, err = v.auditor.Record(ctx, audit.Record{
		Action:  audit.ActionVerify,
		Actor:   actor,
		Outcome: outcome,
		UserID:  &userID,
		Details: map[string]any{
			"operation":  "integrity_verify",
			"violations": len(violations),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record verify sweep: %w", err)
	}

	return violations, nil
}

// sweep inspects one user's checkpoint set. A classifier failure aborts the
// sweep: an unanswerable authorization question is an outage, not an
// invariant breach, and must never be reported as one.
func (v *Verifier) sweep(ctx context.Context, checkpoints []*Checkpoint, maxIssued int64) ([]Violation, error) {
	violations := []Violation{}
	seen := make(map[domain.CheckpointID]bool, len(checkpoints))

	for _, cp := range checkpoints {
		if seen[cp.ID] {
			violations = append(violations, Violation{
				CheckpointID: cp.ID,
				Kind:         ViolationDuplicateID,
				Detail:       "checkpoint id appears more than once",
			})
		}
		seen[cp.ID] = true

		if !cp.Type.Valid() {
			violations = append(violations, Violation{
				CheckpointID: cp.ID,
				Kind:         ViolationUnknownType,
				Detail:       "checkpoint_type " + string(cp.Type) + " is not a known type",
			})
		}
		if !cp.CreatedBy.Valid() {
			violations = append(violations, Violation{
				CheckpointID: cp.ID,
				Kind:         ViolationUnknownCreator,
				Detail:       "created_by " + string(cp.CreatedBy) + " is not a known creator kind",
			})
		}

		if cp.Type == TypeRollback {
			human := false
			if cp.AuthorizedBy != "" {
				var err error
				human, err = v.classifier.IsHuman(ctx, cp.AuthorizedBy)
				if err != nil {
					return nil, fmt.Errorf("classify authorizer of checkpoint %s: %w", cp.ID, err)
				}
			}
			if !human {
				violations = append(violations, Violation{
					CheckpointID: cp.ID,
					Kind:         ViolationUnauthorized,
					Detail:       "rollback checkpoint lacks a human authorizing party",
				})
			}
		}

		if cp.AfterSequence < 0 {
			violations = append(violations, Violation{
				CheckpointID: cp.ID,
				Kind:         ViolationNegativeSeq,
				Detail:       fmt.Sprintf("after_sequence %d is negative", cp.AfterSequence),
			})
		} else if cp.AfterSequence > maxIssued {
			violations = append(violations, Violation{
				CheckpointID: cp.ID,
				Kind:         ViolationSequenceRange,
				Detail:       fmt.Sprintf("after_sequence %d exceeds highest issued position %d", cp.AfterSequence, maxIssued),
			})
		}
	}

	return violations, nil
}
