package audit

import "context"

// Store persists audit entries. Implementations expose append and read only;
// there is deliberately no update or delete.
type Store interface {
	// Append persists the entry. The write must be atomic and durable before
	// Append returns.
	Append(ctx context.Context, entry *Entry) error

	// List returns entries matching the filter, ordered by creation time
	// ascending.
	List(ctx context.Context, filter Filter) ([]*Entry, error)
}
