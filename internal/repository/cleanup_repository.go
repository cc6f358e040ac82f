package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tutorhub/tutorhub/internal/model"
)

// CleanupRepo implements the queries behind the account cleanup sweep: the
// stale-deactivation selection and the per-account cascade delete.
type CleanupRepo struct{ DB *sql.DB }

func NewCleanupRepo(db *sql.DB) *CleanupRepo { return &CleanupRepo{DB: db} }

// StaleDeactivated returns every account whose most recent history event is a
// deactivation older than the cutoff. The correlated subquery pins the join
// to the single latest event per account; the timestamp comparison works as a
// string comparison because the column holds fixed-width RFC3339 UTC text.
func (r *CleanupRepo) StaleDeactivated(ctx context.Context, cutoff time.Time) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT a.username, a.display_name, a.email, a.is_active, a.is_tutor
		 FROM accounts a
		 JOIN account_history h ON h.id = (
			SELECT h2.id FROM account_history h2
			WHERE h2.account_username = a.username
			ORDER BY h2.event_at DESC, h2.id DESC LIMIT 1)
		 WHERE h.event_type = ? AND h.event_at < ?`,
		model.EventDeactivation, fmtTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.Username, &a.DisplayName, &a.Email, &a.IsActive, &a.IsTutor); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAccountCascade removes an account together with every row that
// references it, in one transaction, in foreign-key dependency order. For
// tutors this includes their courses and everything hanging off those
// courses. Either the whole cascade lands or none of it does. Returns the
// stored file names (message attachments, homework solutions, material files)
// orphaned by the cascade.
func (r *CleanupRepo) DeleteAccountCascade(ctx context.Context, a model.Account) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	u := a.Username

	type step struct {
		query string
		args  []any
	}

	fileSteps := []step{
		{`SELECT attachment_file FROM messages
			WHERE attachment_file IS NOT NULL AND (sender_username=? OR recipient_username=?)`, []any{u, u}},
		{`SELECT solution_file FROM homework_assignments
			WHERE solution_file IS NOT NULL AND session_id IN (SELECT id FROM sessions WHERE student_username=?)`, []any{u}},
	}
	if a.IsTutor {
		fileSteps = append(fileSteps,
			step{`SELECT solution_file FROM homework_assignments
				WHERE solution_file IS NOT NULL AND session_id IN
				(SELECT id FROM sessions WHERE course_id IN (SELECT id FROM courses WHERE tutor_username=?))`, []any{u}},
			step{`SELECT file_name FROM teaching_materials
				WHERE file_name IS NOT NULL AND course_id IN (SELECT id FROM courses WHERE tutor_username=?)`, []any{u}},
		)
	}
	var orphans []string
	for _, st := range fileSteps {
		files, err := orphanedFilesTx(ctx, tx, st.query, st.args...)
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, files...)
	}

	steps := []step{
		{"DELETE FROM payment_records WHERE student_username=? OR tutor_username=?", []any{u, u}},
		{"DELETE FROM messages WHERE sender_username=? OR recipient_username=?", []any{u, u}},
		{`DELETE FROM homework_assignments WHERE session_id IN
			(SELECT id FROM sessions WHERE student_username=?)`, []any{u}},
		{"DELETE FROM sessions WHERE student_username=?", []any{u}},
		{"DELETE FROM student_courses WHERE student_username=?", []any{u}},
	}
	if a.IsTutor {
		steps = append(steps,
			step{`DELETE FROM student_courses WHERE course_id IN
				(SELECT id FROM courses WHERE tutor_username=?)`, []any{u}},
			step{`DELETE FROM homework_assignments WHERE session_id IN
				(SELECT id FROM sessions WHERE course_id IN (SELECT id FROM courses WHERE tutor_username=?))`, []any{u}},
			step{`DELETE FROM sessions WHERE course_id IN
				(SELECT id FROM courses WHERE tutor_username=?)`, []any{u}},
			step{`DELETE FROM teaching_materials WHERE course_id IN
				(SELECT id FROM courses WHERE tutor_username=?)`, []any{u}},
			step{"DELETE FROM courses WHERE tutor_username=?", []any{u}},
		)
	}
	steps = append(steps,
		step{"DELETE FROM notes WHERE account_username=?", []any{u}},
		step{"DELETE FROM notifications WHERE account_username=?", []any{u}},
		step{"DELETE FROM account_history WHERE account_username=?", []any{u}},
		step{"DELETE FROM account_settings WHERE account_username=?", []any{u}},
		step{"DELETE FROM accounts WHERE username=?", []any{u}},
	)

	for _, st := range steps {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return orphans, nil
}
