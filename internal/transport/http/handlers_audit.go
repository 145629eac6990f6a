package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trinsiklabs/recall/internal/audit"
	"github.com/trinsiklabs/recall/internal/platform/middleware"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// handleRecordAudit appends one audit record on behalf of the entry service,
// which calls it around every create/read/edit-attempt/delete-attempt.
func (h *Handler) handleRecordAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recordAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerr.New(domainerr.CodeValidation, "invalid request body"))
		return
	}

	rec := audit.Record{
		Action:  audit.Action(req.Action),
		Actor:   req.Actor,
		Outcome: audit.Outcome(req.Outcome),
		Details: req.Details,
	}
	if rec.Actor == "" {
		rec.Actor = middleware.GetActor(ctx)
	}
	if req.UserID != "" {
		userID, err := domain.ParseUserID(req.UserID)
		if err != nil {
			writeError(w, domainerr.New(domainerr.CodeValidation, "invalid user_id"))
			return
		}
		rec.UserID = &userID
	}
	if req.EntryID != "" {
		entryID, err := domain.ParseEntryID(req.EntryID)
		if err != nil {
			writeError(w, domainerr.New(domainerr.CodeValidation, "invalid entry_id"))
			return
		}
		rec.EntryID = &entryID
	}

	id, err := h.audit.Record(ctx, rec)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit record failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordAuditResponse{ID: id.String()})
}

// handleListAudit returns the trail filtered by user, entry, action, and time
// range. Reads are non-destructive.
func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var filter audit.Filter
	if v := q.Get("user_id"); v != "" {
		userID, err := domain.ParseUserID(v)
		if err != nil {
			writeError(w, domainerr.New(domainerr.CodeValidation, "invalid user_id"))
			return
		}
		filter.UserID = &userID
	}
	if v := q.Get("entry_id"); v != "" {
		entryID, err := domain.ParseEntryID(v)
		if err != nil {
			writeError(w, domainerr.New(domainerr.CodeValidation, "invalid entry_id"))
			return
		}
		filter.EntryID = &entryID
	}
	filter.Action = audit.Action(q.Get("action"))
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, domainerr.New(domainerr.CodeValidation, "invalid from timestamp"))
			return
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, domainerr.New(domainerr.CodeValidation, "invalid to timestamp"))
			return
		}
		filter.To = to
	}

	entries, err := h.audit.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit list failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		writeError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}
