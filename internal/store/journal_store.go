package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/sms-messenger/internal/model"
)

// RecordEntries inserts a batch of journal entries in one transaction and
// returns how many rows were new. Entries without an ID get a UUID.
func (s *SQLiteStore) RecordEntries(
	ctx context.Context,
	entries []model.JournalEntry,
) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR IGNORE INTO journal_entries (
			id, direction, account, address, uid, uid_validity,
			subject, body, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, e := range entries {
		if e.Direction != model.DirectionSent && e.Direction != model.DirectionReceived {
			return 0, fmt.Errorf("journal entry direction %q is invalid", e.Direction)
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}

		res, err := stmt.ExecContext(ctx,
			e.ID, string(e.Direction), normalizeAddress(e.Account), normalizeAddress(e.Address), e.UID, e.UIDValidity,
			e.Subject, e.Body, e.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("recording journal entry %s: %w", e.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing journal entries: %w", err)
	}
	return inserted, nil
}

// ListEntries retrieves journal entries matching filter, newest first.
func (s *SQLiteStore) ListEntries(
	ctx context.Context,
	filter JournalFilter,
) ([]model.JournalEntry, error) {
	where, args := filter.where()

	query := "SELECT * FROM journal_entries" + where + " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var entries []model.JournalEntry
	if err := sqlx.SelectContext(ctx, s.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	return entries, nil
}

// CountEntries returns how many entries match filter, ignoring pagination.
func (s *SQLiteStore) CountEntries(ctx context.Context, filter JournalFilter) (int, error) {
	where, args := filter.where()

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM journal_entries"+where, args...); err != nil {
		return 0, fmt.Errorf("counting journal entries: %w", err)
	}
	return n, nil
}

// MarkUIDsDeleted stamps deleted_at on received entries with the given UIDs
// issued under uidValidity.
func (s *SQLiteStore) MarkUIDsDeleted(
	ctx context.Context,
	account string,
	uidValidity uint32,
	uids []uint32,
) (int, error) {
	if len(uids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE journal_entries SET deleted_at = ?
		WHERE direction = ? AND account = ? AND uid_validity = ?
			AND deleted_at IS NULL AND uid IN (?)`,
		time.Now().UTC(), string(model.DirectionReceived), normalizeAddress(account), uidValidity, uids,
	)
	if err != nil {
		return 0, fmt.Errorf("building delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking journal uids deleted: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MarkAddressDeleted stamps deleted_at on every live entry in one direction
// exchanged with address.
func (s *SQLiteStore) MarkAddressDeleted(
	ctx context.Context,
	account string,
	dir model.Direction,
	address string,
) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries SET deleted_at = ?
		WHERE direction = ? AND account = ? AND address = ? AND deleted_at IS NULL`,
		time.Now().UTC(), string(dir), normalizeAddress(account), normalizeAddress(address),
	)
	if err != nil {
		return 0, fmt.Errorf("marking journal entries for %s deleted: %w", address, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// where renders the filter as a SQL WHERE clause and its arguments.
func (f JournalFilter) where() (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Direction != nil {
		conditions = append(conditions, "direction = ?")
		args = append(args, string(*f.Direction))
	}
	if f.Account != nil {
		conditions = append(conditions, "account = ?")
		args = append(args, normalizeAddress(*f.Account))
	}
	if f.Address != nil {
		conditions = append(conditions, "address = ?")
		args = append(args, normalizeAddress(*f.Address))
	}
	if !f.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
