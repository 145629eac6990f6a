// Package sequence issues the strictly increasing positions that define the
// total order of memory events. Every entry the external entry service
// persists is stamped with one of these values; checkpoints reference them as
// visibility boundaries.
package sequence

import "context"

// Issuer hands out sequence positions. Values are strictly increasing and
// never reused, even across concurrent callers; the storage layer's write
// atomicity is the only synchronization.
type Issuer interface {
	// Next returns a value greater than every previously issued value.
	Next(ctx context.Context) (int64, error)

	// Current returns the highest value issued so far, or zero when none has
	// been. Used by integrity verification to bound checkpoint positions.
	Current(ctx context.Context) (int64, error)
}
