package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// NoteRepo persists private notes.
type NoteRepo struct{ DB *sql.DB }

func NewNoteRepo(db *sql.DB) *NoteRepo { return &NoteRepo{DB: db} }

// Create inserts a note and populates its generated ID.
func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO notes (account_username, note_date, body) VALUES (?,?,?)",
		n.AccountUsername, fmtTime(n.Date), n.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	n.Version = 1
	return nil
}

// GetByID fetches one note.
func (r *NoteRepo) GetByID(ctx context.Context, id uint64) (model.Note, error) {
	var (
		n  model.Note
		at string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, account_username, note_date, body, version FROM notes WHERE id=? LIMIT 1",
		id).Scan(&n.ID, &n.AccountUsername, &at, &n.Body, &n.Version)
	if err != nil {
		return n, err
	}
	n.Date = parseTime(at)
	return n, nil
}

// ListByAccount returns an account's notes, newest first.
func (r *NoteRepo) ListByAccount(ctx context.Context, username string) ([]model.Note, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, account_username, note_date, body, version FROM notes WHERE account_username=? ORDER BY note_date DESC, id DESC",
		username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var (
			n  model.Note
			at string
		)
		if err := rows.Scan(&n.ID, &n.AccountUsername, &at, &n.Body, &n.Version); err != nil {
			return nil, err
		}
		n.Date = parseTime(at)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Update rewrites date and body under the optimistic version.
func (r *NoteRepo) Update(ctx context.Context, n model.Note) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notes SET note_date=?, body=?, version=version+1 WHERE id=? AND version=?",
		fmtTime(n.Date), n.Body, n.ID, n.Version)
	if err != nil {
		return err
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes a note row.
func (r *NoteRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM notes WHERE id=?", id)
	return err
}
