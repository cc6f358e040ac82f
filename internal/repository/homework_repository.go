package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// HomeworkRepo persists homework assignments. Assignment creation and the
// write-once solution upload both pair with a notification in the same
// transaction.
type HomeworkRepo struct {
	DB            *sql.DB
	Notifications *NotificationRepo
}

func NewHomeworkRepo(db *sql.DB, n *NotificationRepo) *HomeworkRepo {
	return &HomeworkRepo{DB: db, Notifications: n}
}

// Create inserts an assignment together with the "homework assigned"
// notification for the session's student.
func (r *HomeworkRepo) Create(ctx context.Context, h *model.HomeworkAssignment, notif model.Notification) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO homework_assignments (session_id, name, objective) VALUES (?,?,?)",
		h.SessionID, h.Name, h.Objective)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	h.Version = 1

	if err := r.Notifications.CreateTx(ctx, tx, notif); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID fetches an assignment; sql.ErrNoRows when absent.
func (r *HomeworkRepo) GetByID(ctx context.Context, id uint64) (model.HomeworkAssignment, error) {
	var h model.HomeworkAssignment
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, session_id, name, objective, solution_file, solution_feedback, version FROM homework_assignments WHERE id=? LIMIT 1",
		id).Scan(&h.ID, &h.SessionID, &h.Name, &h.Objective, &h.SolutionFile, &h.SolutionFeedback, &h.Version)
	return h, err
}

// ListByTutor returns assignments whose session belongs to a course owned by
// the tutor.
func (r *HomeworkRepo) ListByTutor(ctx context.Context, tutor string) ([]model.HomeworkAssignment, error) {
	return r.list(ctx,
		`SELECT h.id, h.session_id, h.name, h.objective, h.solution_file, h.solution_feedback, h.version
		 FROM homework_assignments h
		 JOIN sessions s ON s.id = h.session_id
		 JOIN courses c ON c.id = s.course_id
		 WHERE c.tutor_username = ? ORDER BY h.id`, tutor)
}

// ListByStudent returns assignments whose session is scheduled for the
// student.
func (r *HomeworkRepo) ListByStudent(ctx context.Context, student string) ([]model.HomeworkAssignment, error) {
	return r.list(ctx,
		`SELECT h.id, h.session_id, h.name, h.objective, h.solution_file, h.solution_feedback, h.version
		 FROM homework_assignments h
		 JOIN sessions s ON s.id = h.session_id
		 WHERE s.student_username = ? ORDER BY h.id`, student)
}

// ListBySession returns a session's assignments.
func (r *HomeworkRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.HomeworkAssignment, error) {
	return r.list(ctx,
		"SELECT id, session_id, name, objective, solution_file, solution_feedback, version FROM homework_assignments WHERE session_id=? ORDER BY id",
		sessionID)
}

// Update rewrites name, objective and feedback under the optimistic version.
func (r *HomeworkRepo) Update(ctx context.Context, h model.HomeworkAssignment) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE homework_assignments SET name=?, objective=?, solution_feedback=?, version=version+1 WHERE id=? AND version=?",
		h.Name, h.Objective, h.SolutionFeedback, h.ID, h.Version)
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

// SetSolution stores the uploaded solution file name and the "solution
// uploaded" notification for the tutor in one transaction. The guard on
// solution_file IS NULL makes the upload write-once even under concurrent
// requests: the second writer affects zero rows and gets ErrConflict.
func (r *HomeworkRepo) SetSolution(ctx context.Context, id uint64, fileName string, notif model.Notification) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE homework_assignments SET solution_file=?, version=version+1 WHERE id=? AND solution_file IS NULL",
		fileName, id)
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

// Delete removes an assignment row.
func (r *HomeworkRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM homework_assignments WHERE id=?", id)
	return err
}

func (r *HomeworkRepo) list(ctx context.Context, query string, args ...any) ([]model.HomeworkAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HomeworkAssignment
	for rows.Next() {
		var h model.HomeworkAssignment
		if err := rows.Scan(&h.ID, &h.SessionID, &h.Name, &h.Objective, &h.SolutionFile, &h.SolutionFeedback, &h.Version); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
