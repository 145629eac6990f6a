package httptransport

import (
	"time"

	"github.com/trinsiklabs/recall/internal/audit"
	"github.com/trinsiklabs/recall/internal/checkpoint"
)

type recordAuditRequest struct {
	Action  string         `json:"action"`
	Actor   string         `json:"actor,omitempty"`
	Outcome string         `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
	UserID  string         `json:"user_id,omitempty"`
	EntryID string         `json:"entry_id,omitempty"`
}

type recordAuditResponse struct {
	ID string `json:"id"`
}

type auditEntryResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	EntryID   string         `json:"entry_id,omitempty"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toAuditEntryResponse(e *audit.Entry) auditEntryResponse {
	out := auditEntryResponse{
		ID:        e.ID.String(),
		Action:    string(e.Action),
		Actor:     e.Actor,
		Outcome:   string(e.Outcome),
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
	if e.UserID != nil {
		out.UserID = e.UserID.String()
	}
	if e.EntryID != nil {
		out.EntryID = e.EntryID.String()
	}
	return out
}

type createCheckpointRequest struct {
	CheckpointType string `json:"checkpoint_type"`
	AfterSequence  int64  `json:"after_sequence"`
	CreatedBy      string `json:"created_by"`
	AuthorizedBy   string `json:"authorized_by,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type checkpointResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Type          string     `json:"checkpoint_type"`
	AfterSequence int64      `json:"after_sequence"`
	CreatedBy     string     `json:"created_by"`
	AuthorizedBy  string     `json:"authorized_by,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Active        bool       `json:"active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toCheckpointResponse(cp *checkpoint.Checkpoint) checkpointResponse {
	return checkpointResponse{
		ID:            cp.ID.String(),
		UserID:        cp.UserID.String(),
		Type:          string(cp.Type),
		AfterSequence: cp.AfterSequence,
		CreatedBy:     string(cp.CreatedBy),
		AuthorizedBy:  cp.AuthorizedBy,
		Reason:        cp.Reason,
		Active:        cp.Active,
		DeactivatedAt: cp.DeactivatedAt,
		CreatedAt:     cp.CreatedAt,
	}
}

type visibilityResponse struct {
	Sequence int64 `json:"sequence"`
	Visible  bool  `json:"visible"`
}

type verifyResponse struct {
	Violations []checkpoint.Violation `json:"violations"`
}

type sequenceResponse struct {
	Sequence int64 `json:"sequence"`
}
