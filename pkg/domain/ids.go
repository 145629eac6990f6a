// Package domain holds typed identifiers shared across the service. Wrapping
// uuid.UUID keeps user, entry, checkpoint, and audit ids from being mixed up
// at compile time.
package domain

import "github.com/google/uuid"

// UserID identifies the memory owner whose view and trail an operation affects.
type UserID uuid.UUID

// EntryID identifies a memory entry managed by the external entry service.
type EntryID uuid.UUID

// CheckpointID identifies a visibility checkpoint.
type CheckpointID uuid.UUID

// AuditID identifies an audit log record.
type AuditID uuid.UUID

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewEntryID() EntryID           { return EntryID(uuid.New()) }
func NewCheckpointID() CheckpointID { return CheckpointID(uuid.New()) }
func NewAuditID() AuditID           { return AuditID(uuid.New()) }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CheckpointID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id EntryID) String() string      { return uuid.UUID(id).String() }
func (id CheckpointID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string      { return uuid.UUID(id).String() }

// ParseUserID parses a textual UUID into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseEntryID parses a textual UUID into an EntryID.
func ParseEntryID(s string) (EntryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntryID{}, err
	}
	return EntryID(u), nil
}

// ParseCheckpointID parses a textual UUID into a CheckpointID.
func ParseCheckpointID(s string) (CheckpointID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CheckpointID{}, err
	}
	return CheckpointID(u), nil
}
