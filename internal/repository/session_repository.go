package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// SessionRepo persists tutoring sessions. The mutations that must emit a
// notification take the notification alongside the primary write and run both
// in one transaction.
type SessionRepo struct {
	DB            *sql.DB
	Notifications *NotificationRepo
}

func NewSessionRepo(db *sql.DB, n *NotificationRepo) *SessionRepo {
	return &SessionRepo{DB: db, Notifications: n}
}

// Create inserts a session together with the "session created" notification
// for its student.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session, notif model.Notification) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (student_username, course_id, session_at, is_paid_for, confirmation_status) VALUES (?,?,?,?,?)",
		s.StudentUsername, s.CourseID, fmtTime(s.SessionAt), s.IsPaidFor, s.ConfirmationStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Version = 1

	if err := r.Notifications.CreateTx(ctx, tx, notif); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID fetches a session; sql.ErrNoRows when absent.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	var (
		s  model.Session
		at string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, student_username, course_id, session_at, is_paid_for, confirmation_status, version FROM sessions WHERE id=? LIMIT 1",
		id).Scan(&s.ID, &s.StudentUsername, &s.CourseID, &at, &s.IsPaidFor, &s.ConfirmationStatus, &s.Version)
	if err != nil {
		return s, err
	}
	s.SessionAt = parseTime(at)
	return s, nil
}

// ListByTutor returns every session belonging to a course the tutor owns.
func (r *SessionRepo) ListByTutor(ctx context.Context, tutor string) ([]model.Session, error) {
	return r.list(ctx,
		`SELECT s.id, s.student_username, s.course_id, s.session_at, s.is_paid_for, s.confirmation_status, s.version
		 FROM sessions s JOIN courses c ON c.id = s.course_id
		 WHERE c.tutor_username = ? ORDER BY s.id`, tutor)
}

// ListByStudent returns the sessions scheduled for one student.
func (r *SessionRepo) ListByStudent(ctx context.Context, student string) ([]model.Session, error) {
	return r.list(ctx,
		"SELECT id, student_username, course_id, session_at, is_paid_for, confirmation_status, version FROM sessions WHERE student_username=? ORDER BY id",
		student)
}

// Update rewrites session time, payment flag and confirmation status under
// the optimistic version. Course and student are deliberately absent from the
// SET list; they cannot be changed after creation.
func (r *SessionRepo) Update(ctx context.Context, s model.Session) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET session_at=?, is_paid_for=?, confirmation_status=?, version=version+1 WHERE id=? AND version=?",
		fmtTime(s.SessionAt), s.IsPaidFor, s.ConfirmationStatus, s.ID, s.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetConfirmation records the student's accept/reject decision and the
// matching notification for the tutor in one transaction. ErrConflict when
// the session changed since it was read.
func (r *SessionRepo) SetConfirmation(ctx context.Context, s model.Session, status string, notif model.Notification) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET confirmation_status=?, version=version+1 WHERE id=? AND version=?",
		status, s.ID, s.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	if err := r.Notifications.CreateTx(ctx, tx, notif); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a session and its homework in one transaction; the foreign
// key from homework_assignments would reject a bare session delete. Returns
// the solution-file names orphaned by the delete so the caller can remove the
// stored files.
func (r *SessionRepo) Delete(ctx context.Context, id uint64) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	orphans, err := orphanedFilesTx(ctx, tx,
		"SELECT solution_file FROM homework_assignments WHERE session_id=? AND solution_file IS NOT NULL", id)
	if err != nil {
		return nil, err
	}
	for _, q := range []string{
		"DELETE FROM homework_assignments WHERE session_id=?",
		"DELETE FROM sessions WHERE id=?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return orphans, nil
}

func (r *SessionRepo) list(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var (
			s  model.Session
			at string
		)
		if err := rows.Scan(&s.ID, &s.StudentUsername, &s.CourseID, &at, &s.IsPaidFor, &s.ConfirmationStatus, &s.Version); err != nil {
			return nil, err
		}
		s.SessionAt = parseTime(at)
		out = append(out, s)
	}
	return out, rows.Err()
}
