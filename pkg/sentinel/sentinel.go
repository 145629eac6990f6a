package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: uniqueness or state conflict on write
//
// For validation errors (bad input, out-of-enum values), use pkg/domainerr.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
