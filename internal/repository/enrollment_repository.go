package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// EnrollmentRepo persists student-course links keyed by the composite
// (student_username, course_id).
type EnrollmentRepo struct{ DB *sql.DB }

func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo { return &EnrollmentRepo{DB: db} }

// Create inserts an enrollment; ErrConflict when the student is already
// enrolled in the course.
func (r *EnrollmentRepo) Create(ctx context.Context, e model.Enrollment) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO student_courses (student_username, course_id, frequency, end_date) VALUES (?,?,?,?)",
		e.StudentUsername, e.CourseID, e.Frequency, fmtTime(e.EndDate))
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Get fetches one enrollment by its composite key.
func (r *EnrollmentRepo) Get(ctx context.Context, student string, courseID uint64) (model.Enrollment, error) {
	var (
		e   model.Enrollment
		end string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT student_username, course_id, frequency, end_date, version FROM student_courses WHERE student_username=? AND course_id=? LIMIT 1",
		student, courseID).Scan(&e.StudentUsername, &e.CourseID, &e.Frequency, &end, &e.Version)
	if err != nil {
		return e, err
	}
	e.EndDate = parseTime(end)
	return e, nil
}

// Exists reports whether the student has an enrollment in the course. This is
// the predicate behind all student-side course access.
func (r *EnrollmentRepo) Exists(ctx context.Context, student string, courseID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM student_courses WHERE student_username=? AND course_id=?",
		student, courseID).Scan(&n)
	return n > 0, err
}

// ListByStudent returns all enrollments of one student.
func (r *EnrollmentRepo) ListByStudent(ctx context.Context, student string) ([]model.Enrollment, error) {
	return r.list(ctx,
		"SELECT student_username, course_id, frequency, end_date, version FROM student_courses WHERE student_username=? ORDER BY course_id",
		student)
}

// ListByCourse returns all enrollments in one course.
func (r *EnrollmentRepo) ListByCourse(ctx context.Context, courseID uint64) ([]model.Enrollment, error) {
	return r.list(ctx,
		"SELECT student_username, course_id, frequency, end_date, version FROM student_courses WHERE course_id=? ORDER BY student_username",
		courseID)
}

// Update rewrites frequency and end date under the optimistic version.
func (r *EnrollmentRepo) Update(ctx context.Context, e model.Enrollment) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE student_courses SET frequency=?, end_date=?, version=version+1 WHERE student_username=? AND course_id=? AND version=?",
		e.Frequency, fmtTime(e.EndDate), e.StudentUsername, e.CourseID, e.Version)
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

// Delete removes one enrollment row.
func (r *EnrollmentRepo) Delete(ctx context.Context, student string, courseID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM student_courses WHERE student_username=? AND course_id=?", student, courseID)
	return err
}

func (r *EnrollmentRepo) list(ctx context.Context, query string, args ...any) ([]model.Enrollment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Enrollment
	for rows.Next() {
		var (
			e   model.Enrollment
			end string
		)
		if err := rows.Scan(&e.StudentUsername, &e.CourseID, &e.Frequency, &end, &e.Version); err != nil {
			return nil, err
		}
		e.EndDate = parseTime(end)
		out = append(out, e)
	}
	return out, rows.Err()
}
