package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/trinsiklabs/recall/internal/audit"
	"github.com/trinsiklabs/recall/pkg/domain"
	txcontext "github.com/trinsiklabs/recall/pkg/tx"
)

// Store persists audit entries in the memory_audit_log table. The table
// carries a guard trigger denying UPDATE and DELETE (db/schema.sql), so the
// append-only policy holds even against direct SQL access.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins the caller's transaction when one is carried in ctx, so the
// audit append commits atomically with the operation it describes.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var userID, entryID *uuid.UUID
	if entry.UserID != nil {
		uid := uuid.UUID(*entry.UserID)
		userID = &uid
	}
	if entry.EntryID != nil {
		eid := uuid.UUID(*entry.EntryID)
		entryID = &eid
	}

	query := `
		INSERT INTO memory_audit_log (
			id, user_id, entry_id, action, actor, outcome, details, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		userID,
		entryID,
		string(entry.Action),
		entry.Actor,
		string(entry.Outcome),
		details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	query := `
		SELECT id, user_id, entry_id, action, actor, outcome, details, created_at, updated_at
		FROM memory_audit_log
	`
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.UserID != nil {
		add("user_id = ", uuid.UUID(*filter.UserID))
	}
	if filter.EntryID != nil {
		add("entry_id = ", uuid.UUID(*filter.EntryID))
	}
	if filter.Action != "" {
		add("action = ", string(filter.Action))
	}
	if !filter.From.IsZero() {
		add("created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= ", filter.To)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*audit.Entry, error) {
	var entries []*audit.Entry

	for rows.Next() {
		var (
			entry      audit.Entry
			entryUUID  uuid.UUID
			userID     *uuid.UUID
			entryRefID *uuid.UUID
			action     string
			outcome    string
			details    []byte
		)
		err := rows.Scan(
			&entryUUID,
			&userID,
			&entryRefID,
			&action,
			&entry.Actor,
			&outcome,
			&details,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ID = domain.AuditID(entryUUID)
		entry.Action = audit.Action(action)
		entry.Outcome = audit.Outcome(outcome)
		if userID != nil {
			uid := domain.UserID(*userID)
			entry.UserID = &uid
		}
		if entryRefID != nil {
			eid := domain.EntryID(*entryRefID)
			entry.EntryID = &eid
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
