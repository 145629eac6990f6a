// Package audit defines the append-only trail of every operation attempted
// against agent memory. Records are immutable once persisted: the only
// operation after creation is read, enforced here by exposing no update or
// delete API and at the schema by a guard trigger.
package audit

import (
	"time"

	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// Action is the closed set of auditable operations.
type Action string

const (
	ActionCreate          Action = "create"
	ActionRead            Action = "read"
	ActionAttemptedEdit   Action = "attempted_edit"
	ActionAttemptedDelete Action = "attempted_delete"
	ActionVerify          Action = "verify"
)

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionAttemptedEdit, ActionAttemptedDelete, ActionVerify:
		return true
	}
	return false
}

// Outcome records whether the attempted operation succeeded or was denied.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
)

// Valid reports whether o is one of the defined outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeDenied
}

// Entry is one immutable audit record.
type Entry struct {
	ID        domain.AuditID
	UserID    *domain.UserID
	EntryID   *domain.EntryID
	Action    Action
	Actor     string
	Outcome   Outcome
	Details   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Record is the input for appending an audit entry. Duplicates are
// legitimate (repeated reads of the same entry); the store never rejects
// duplicate content.
type Record struct {
	Action  Action
	Actor   string
	Outcome Outcome
	Details map[string]any
	UserID  *domain.UserID
	EntryID *domain.EntryID
}

// Validate rejects out-of-enum or missing required fields before any write is
// attempted. Store-level constraints are the second line of defense.
func (r Record) Validate() error {
	if !r.Action.Valid() {
		return domainerr.New(domainerr.CodeValidation, "unknown audit action: "+string(r.Action))
	}
	if r.Actor == "" {
		return domainerr.New(domainerr.CodeValidation, "actor is required")
	}
	if !r.Outcome.Valid() {
		return domainerr.New(domainerr.CodeValidation, "unknown audit outcome: "+string(r.Outcome))
	}
	return nil
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	UserID  *domain.UserID
	EntryID *domain.EntryID
	Action  Action
	From    time.Time
	To      time.Time
}
