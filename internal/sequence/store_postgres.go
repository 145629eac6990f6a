package sequence

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "github.com/trinsiklabs/recall/pkg/tx"
)

// PostgresIssuer issues positions from a single counter row. The atomic
// UPDATE...RETURNING serializes concurrent callers at the row lock, so two
// issuances observe a definite order consistent with commit order.
type PostgresIssuer struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresIssuer {
	return &PostgresIssuer{db: db}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresIssuer) querier(ctx context.Context) rowQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresIssuer) Next(ctx context.Context) (int64, error) {
	query := `
		UPDATE memory_sequence
		SET value = value + 1
		WHERE name = 'memory_events'
		RETURNING value
	`
	var value int64
	if err := s.querier(ctx).QueryRowContext(ctx, query).Scan(&value); err != nil {
		return 0, fmt.Errorf("issue sequence value: %w", err)
	}
	return value, nil
}

func (s *PostgresIssuer) Current(ctx context.Context) (int64, error) {
	query := `SELECT value FROM memory_sequence WHERE name = 'memory_events'`
	var value int64
	if err := s.querier(ctx).QueryRowContext(ctx, query).Scan(&value); err != nil {
		return 0, fmt.Errorf("read sequence value: %w", err)
	}
	return value, nil
}
