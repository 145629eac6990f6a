package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trinsiklabs/recall/internal/checkpoint"
	"github.com/trinsiklabs/recall/internal/platform/middleware"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// handleCreateCheckpoint creates a visibility checkpoint for the
// authenticated user. Denied attempts still leave an audit record; the
// service guarantees no checkpoint row exists for them.
func (h *Handler) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := authedUserID(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createCheckpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerr.New(domainerr.CodeValidation, "invalid request body"))
		return
	}

	cp, err := h.checkpoints.Create(ctx, checkpoint.CreateRequest{
		UserID:        userID,
		Type:          checkpoint.Type(req.CheckpointType),
		AfterSequence: req.AfterSequence,
		CreatedBy:     checkpoint.CreatedBy(req.CreatedBy),
		AuthorizedBy:  req.AuthorizedBy,
		Reason:        req.Reason,
		Actor:         middleware.GetActor(ctx),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCheckpointResponse(cp))
}

// handleDeactivateCheckpoint retires a checkpoint. Idempotent, so retries
// from recovery flows are safe.
func (h *Handler) handleDeactivateCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseCheckpointID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainerr.New(domainerr.CodeValidation, "invalid checkpoint id"))
		return
	}

	cp, err := h.checkpoints.Deactivate(ctx, id, middleware.GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckpointResponse(cp))
}

// handleListCheckpoints lists the authenticated user's checkpoints, newest
// first.
func (h *Handler) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := authedUserID(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	checkpoints, err := h.checkpoints.List(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]checkpointResponse, 0, len(checkpoints))
	for _, cp := range checkpoints {
		out = append(out, toCheckpointResponse(cp))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleVisibility answers whether the entry at a sequence position is in the
// caller's current view. Gates every entry listing in the entry service.
func (h *Handler) handleVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := authedUserID(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeError(w, domainerr.New(domainerr.CodeValidation, "invalid sequence position"))
		return
	}

	visible, err := h.resolver.IsVisible(ctx, userID, seq)
	if err != nil {
		h.logger.ErrorContext(ctx, "visibility resolution failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		writeError(w, domainerr.Wrap(domainerr.CodeInternal, "visibility resolution failed", err))
		return
	}

	writeJSON(w, http.StatusOK, visibilityResponse{Sequence: seq, Visible: visible})
}

// handleVerify runs the audited integrity sweep for the authenticated user.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := authedUserID(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	violations, err := h.verifier.Verify(ctx, userID, middleware.GetActor(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "integrity verify failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		writeError(w, domainerr.Wrap(domainerr.CodeInternal, "integrity verify failed", err))
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Violations: violations})
}

// handleNextSequence issues the next memory event position. Called by the
// entry service when persisting a new entry.
func (h *Handler) handleNextSequence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	seq, err := h.sequence.Next(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "sequence issuance failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		writeError(w, domainerr.Wrap(domainerr.CodeInternal, "sequence issuance failed", err))
		return
	}

	writeJSON(w, http.StatusCreated, sequenceResponse{Sequence: seq})
}

// authedUserID extracts the authenticated user from the request context. The
// auth middleware guarantees it is set on protected routes.
func authedUserID(ctx context.Context) (domain.UserID, error) {
	raw := middleware.GetUserID(ctx)
	if raw == "" {
		return domain.UserID{}, domainerr.New(domainerr.CodeUnauthorized, "authentication context missing")
	}
	userID, err := domain.ParseUserID(raw)
	if err != nil {
		return domain.UserID{}, domainerr.New(domainerr.CodeUnauthorized, "invalid user identity")
	}
	return userID, nil
}
