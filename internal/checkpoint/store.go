package checkpoint

import (
	"context"
	"time"

	"github.com/trinsiklabs/recall/pkg/domain"
)

// Store persists checkpoints. There is deliberately no delete: the history of
// a checkpoint having existed and been active is permanent. AfterSequence is
// immutable after creation; Deactivate is the only permitted mutation.
type Store interface {
	// Create persists a new checkpoint. Returns sentinel.ErrConflict on a
	// duplicate id.
	Create(ctx context.Context, cp *Checkpoint) error

	// Get returns a checkpoint by id, or sentinel.ErrNotFound.
	Get(ctx context.Context, id domain.CheckpointID) (*Checkpoint, error)

	// Deactivate sets active=false and records deactivated_at exactly once.
	// Calling it on an already-inactive checkpoint is a no-op returning the
	// unchanged row, so retries in recovery flows are safe. Returns
	// sentinel.ErrNotFound for unknown ids.
	Deactivate(ctx context.Context, id domain.CheckpointID, at time.Time) (*Checkpoint, error)

	// ListByUser returns all of a user's checkpoints, newest first.
	ListByUser(ctx context.Context, userID domain.UserID) ([]*Checkpoint, error)

	// ListActiveRollbacks returns the user's active rollback checkpoints.
	// The visibility resolver derives the boundary from these.
	ListActiveRollbacks(ctx context.Context, userID domain.UserID) ([]*Checkpoint, error)
}

// TxRunner scopes a function to one atomic storage transaction. The postgres
// implementation carries the transaction in ctx (pkg/tx) so the checkpoint
// write and its audit append commit or roll back together; the in-memory
// implementation simply invokes fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunnerFunc adapts a function to the TxRunner interface.
type TxRunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TxRunnerFunc) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NopTxRunner runs fn without a surrounding transaction. Used with in-memory
// stores in tests.
func NopTxRunner() TxRunner {
	return TxRunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
}
