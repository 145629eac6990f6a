// Package checkpoint implements logical visibility boundaries over the memory
// event order. A checkpoint hides entries past a sequence position without
// deleting anything; rollback-type checkpoints require human authorization
// and are the only type that filters visibility.
package checkpoint

import (
	"time"

	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// Type is the closed set of checkpoint kinds.
type Type string

const (
	// TypeRollback hides entries past AfterSequence while active. Creation
	// requires a human authorizing party.
	TypeRollback Type = "rollback"

	// TypeSnapshot marks a point of interest for later reference. Never
	// filters visibility.
	TypeSnapshot Type = "snapshot"

	// TypeRecovery records that a rollback was later reversed or adjusted.
	// Never filters visibility.
	TypeRecovery Type = "recovery"
)

// Valid reports whether t is one of the defined types.
func (t Type) Valid() bool {
	switch t {
	case TypeRollback, TypeSnapshot, TypeRecovery:
		return true
	}
	return false
}

// CreatedBy identifies the creating party kind. Distinct from the authorizing
// party: a system-created rollback is fine as long as a human authorized it.
type CreatedBy string

const (
	CreatedByHuman  CreatedBy = "human"
	CreatedBySystem CreatedBy = "system"
)

// Valid reports whether c is one of the defined creator kinds.
func (c CreatedBy) Valid() bool {
	return c == CreatedByHuman || c == CreatedBySystem
}

// Checkpoint is a persisted visibility boundary. Never deleted; Active flips
// to false exactly once, recorded by DeactivatedAt.
type Checkpoint struct {
	ID            domain.CheckpointID
	UserID        domain.UserID
	Type          Type
	AfterSequence int64
	CreatedBy     CreatedBy
	AuthorizedBy  string
	Reason        string
	Active        bool
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateRequest carries the inputs for checkpoint creation. Actor is the
// caller descriptor recorded in the audit trail (e.g. "human:alice",
// "agent:planner").
type CreateRequest struct {
	UserID        domain.UserID
	Type          Type
	AfterSequence int64
	CreatedBy     CreatedBy
	AuthorizedBy  string
	Reason        string
	Actor         string
}

// Validate rejects out-of-enum or malformed input before authorization and
// any write. AfterSequence may point past the current maximum; such a
// checkpoint simply filters nothing until new entries exceed it.
func (r CreateRequest) Validate() error {
	if r.UserID.IsNil() {
		return domainerr.New(domainerr.CodeValidation, "user id is required")
	}
	if !r.Type.Valid() {
		return domainerr.New(domainerr.CodeValidation, "unknown checkpoint type: "+string(r.Type))
	}
	if !r.CreatedBy.Valid() {
		return domainerr.New(domainerr.CodeValidation, "unknown created_by: "+string(r.CreatedBy))
	}
	if r.AfterSequence < 0 {
		return domainerr.New(domainerr.CodeValidation, "after_sequence must be non-negative")
	}
	return nil
}
