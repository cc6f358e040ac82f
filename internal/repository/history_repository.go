package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// HistoryRepo persists the append-only account history log. Rows are only
// ever inserted here; the single deletion path is the account cascade.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

// Append inserts a new history event and returns its ID.
func (r *HistoryRepo) Append(ctx context.Context, ev model.HistoryEvent) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO account_history (account_username, event_type, event_at) VALUES (?,?,?)",
		ev.AccountUsername, ev.EventType, fmtTime(ev.EventAt))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Latest returns the most recent event for an account, or sql.ErrNoRows when
// the account has no history at all. Ties on event_at break on the higher ID
// so that events appended within the same instant still order by insertion.
func (r *HistoryRepo) Latest(ctx context.Context, username string) (model.HistoryEvent, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id, account_username, event_type, event_at FROM account_history WHERE account_username=? ORDER BY event_at DESC, id DESC LIMIT 1",
		username))
}

// GetByID fetches a single event.
func (r *HistoryRepo) GetByID(ctx context.Context, id uint64) (model.HistoryEvent, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id, account_username, event_type, event_at FROM account_history WHERE id=? LIMIT 1", id))
}

// ListByAccount returns an account's events, newest first.
func (r *HistoryRepo) ListByAccount(ctx context.Context, username string) ([]model.HistoryEvent, error) {
	return r.list(ctx,
		"SELECT id, account_username, event_type, event_at FROM account_history WHERE account_username=? ORDER BY event_at DESC, id DESC",
		username)
}

// ListAll returns every event, newest first.
func (r *HistoryRepo) ListAll(ctx context.Context) ([]model.HistoryEvent, error) {
	return r.list(ctx,
		"SELECT id, account_username, event_type, event_at FROM account_history ORDER BY event_at DESC, id DESC")
}

func (r *HistoryRepo) scanOne(row *sql.Row) (model.HistoryEvent, error) {
	var (
		ev model.HistoryEvent
		at string
	)
	if err := row.Scan(&ev.ID, &ev.AccountUsername, &ev.EventType, &at); err != nil {
		return ev, err
	}
	ev.EventAt = parseTime(at)
	return ev, nil
}

func (r *HistoryRepo) list(ctx context.Context, query string, args ...any) ([]model.HistoryEvent, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HistoryEvent
	for rows.Next() {
		var (
			ev model.HistoryEvent
			at string
		)
		if err := rows.Scan(&ev.ID, &ev.AccountUsername, &ev.EventType, &at); err != nil {
			return nil, err
		}
		ev.EventAt = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}
