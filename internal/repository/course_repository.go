package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// CourseRepo provides CRUD for courses. The tutor_username column is written
// once at insert and never touched by Update; ownership immutability is a
// write-time invariant, not a schema constraint.
type CourseRepo struct{ DB *sql.DB }

func NewCourseRepo(db *sql.DB) *CourseRepo { return &CourseRepo{DB: db} }

// Create inserts a course and populates its generated ID and version.
func (r *CourseRepo) Create(ctx context.Context, c *model.Course) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO courses (tutor_username, name, price_cents, description) VALUES (?,?,?,?)",
		c.TutorUsername, c.Name, c.PriceCents, c.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.Version = 1
	return nil
}

// GetByID fetches a course; sql.ErrNoRows when absent.
func (r *CourseRepo) GetByID(ctx context.Context, id uint64) (model.Course, error) {
	var c model.Course
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, tutor_username, name, price_cents, description, version FROM courses WHERE id=? LIMIT 1",
		id).Scan(&c.ID, &c.TutorUsername, &c.Name, &c.PriceCents, &c.Description, &c.Version)
	return c, err
}

// ListAll returns every course.
func (r *CourseRepo) ListAll(ctx context.Context) ([]model.Course, error) {
	return r.list(ctx, "SELECT id, tutor_username, name, price_cents, description, version FROM courses ORDER BY id")
}

// ListByTutor returns the courses owned by one tutor.
func (r *CourseRepo) ListByTutor(ctx context.Context, tutor string) ([]model.Course, error) {
	return r.list(ctx,
		"SELECT id, tutor_username, name, price_cents, description, version FROM courses WHERE tutor_username=? ORDER BY id",
		tutor)
}

// Update writes name, price and description guarded by the optimistic
// version; ErrConflict when the row changed since it was read.
func (r *CourseRepo) Update(ctx context.Context, c model.Course) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE courses SET name=?, price_cents=?, description=?, version=version+1 WHERE id=? AND version=?",
		c.Name, c.PriceCents, c.Description, c.ID, c.Version)
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

// Delete removes a course together with its enrollments, sessions, homework
// and teaching materials, in one transaction. Returns the stored file names
// (homework solutions, material files) orphaned by the delete.
func (r *CourseRepo) Delete(ctx context.Context, id uint64) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	orphans, err := orphanedFilesTx(ctx, tx,
		`SELECT solution_file FROM homework_assignments
		 WHERE solution_file IS NOT NULL AND session_id IN (SELECT id FROM sessions WHERE course_id=?)`, id)
	if err != nil {
		return nil, err
	}
	files, err := orphanedFilesTx(ctx, tx,
		"SELECT file_name FROM teaching_materials WHERE file_name IS NOT NULL AND course_id=?", id)
	if err != nil {
		return nil, err
	}
	orphans = append(orphans, files...)

	queries := []string{
		"DELETE FROM homework_assignments WHERE session_id IN (SELECT id FROM sessions WHERE course_id=?)",
		"DELETE FROM sessions WHERE course_id=?",
		"DELETE FROM student_courses WHERE course_id=?",
		"DELETE FROM teaching_materials WHERE course_id=?",
		"DELETE FROM courses WHERE id=?",
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return orphans, nil
}

func (r *CourseRepo) list(ctx context.Context, query string, args ...any) ([]model.Course, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.TutorUsername, &c.Name, &c.PriceCents, &c.Description, &c.Version); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
