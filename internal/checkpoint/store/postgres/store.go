package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trinsiklabs/recall/internal/checkpoint"
	"github.com/trinsiklabs/recall/pkg/domain"
	"github.com/trinsiklabs/recall/pkg/sentinel"
	txcontext "github.com/trinsiklabs/recall/pkg/tx"
)

const uniqueViolation = "23505"

// Store persists checkpoints in the memory_checkpoints table. Rows are never
// deleted; deactivation is the only mutation and sets deactivated_at at most
// once via COALESCE.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) handle(ctx context.Context) dbHandle {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Create(ctx context.Context, cp *checkpoint.Checkpoint) error {
	query := `
		INSERT INTO memory_checkpoints (
			id, user_id, checkpoint_type, after_sequence, created_by,
			authorized_by, reason, active, deactivated_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9, $9)
	`
	_, err := s.handle(ctx).ExecContext(ctx, query,
		uuid.UUID(cp.ID),
		uuid.UUID(cp.UserID),
		string(cp.Type),
		cp.AfterSequence,
		string(cp.CreatedBy),
		nullable(cp.AuthorizedBy),
		nullable(cp.Reason),
		cp.Active,
		cp.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert checkpoint: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.CheckpointID) (*checkpoint.Checkpoint, error) {
	query := selectColumns + ` WHERE id = $1`
	cp, err := scanCheckpoint(s.handle(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get checkpoint: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// Deactivate flips active to false. COALESCE keeps the first deactivated_at,
// so a retried deactivation is a no-op rather than an error.
func (s *Store) Deactivate(ctx context.Context, id domain.CheckpointID, at time.Time) (*checkpoint.Checkpoint, error) {
	query := `
		UPDATE memory_checkpoints
		SET active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $2),
		    updated_at = CASE WHEN active THEN $2 ELSE updated_at END
		WHERE id = $1
		RETURNING id, user_id, checkpoint_type, after_sequence, created_by,
		          authorized_by, reason, active, deactivated_at, created_at, updated_at
	`
	cp, err := scanCheckpoint(s.handle(ctx).QueryRowContext(ctx, query, uuid.UUID(id), at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deactivate checkpoint: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("deactivate checkpoint: %w", err)
	}
	return cp, nil
}

func (s *Store) ListByUser(ctx context.Context, userID domain.UserID) ([]*checkpoint.Checkpoint, error) {
	query := selectColumns + ` WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.handle(ctx).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

func (s *Store) ListActiveRollbacks(ctx context.Context, userID domain.UserID) ([]*checkpoint.Checkpoint, error) {
	query := selectColumns + ` WHERE user_id = $1 AND active AND checkpoint_type = 'rollback'`
	rows, err := s.handle(ctx).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list active rollbacks: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

const selectColumns = `
	SELECT id, user_id, checkpoint_type, after_sequence, created_by,
	       authorized_by, reason, active, deactivated_at, created_at, updated_at
	FROM memory_checkpoints
`

type row interface {
	Scan(dest ...any) error
}

func scanCheckpoint(r row) (*checkpoint.Checkpoint, error) {
	var (
		cp            checkpoint.Checkpoint
		id, userID    uuid.UUID
		cpType        string
		createdBy     string
		authorizedBy  sql.NullString
		reason        sql.NullString
		deactivatedAt sql.NullTime
	)
	err := r.Scan(
		&id,
		&userID,
		&cpType,
		&cp.AfterSequence,
		&createdBy,
		&authorizedBy,
		&reason,
		&cp.Active,
		&deactivatedAt,
		&cp.CreatedAt,
		&cp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cp.ID = domain.CheckpointID(id)
	cp.UserID = domain.UserID(userID)
	cp.Type = checkpoint.Type(cpType)
	cp.CreatedBy = checkpoint.CreatedBy(createdBy)
	if authorizedBy.Valid {
		cp.AuthorizedBy = authorizedBy.String
	}
	if reason.Valid {
		cp.Reason = reason.String
	}
	if deactivatedAt.Valid {
		at := deactivatedAt.Time
		cp.DeactivatedAt = &at
	}
	return &cp, nil
}

func scanCheckpoints(rows *sql.Rows) ([]*checkpoint.Checkpoint, error) {
	var out []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
