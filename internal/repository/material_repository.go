package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// MaterialRepo persists teaching materials. The access-scoped queries embed
// the same predicate used for single-item authorization: tutors reach
// materials through course ownership, students through the existence of an
// enrollment in the material's course.
type MaterialRepo struct{ DB *sql.DB }

func NewMaterialRepo(db *sql.DB) *MaterialRepo { return &MaterialRepo{DB: db} }

// Create inserts a material and populates its generated ID.
func (r *MaterialRepo) Create(ctx context.Context, m *model.TeachingMaterial) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO teaching_materials (course_id, name, file_name) VALUES (?,?,?)",
		m.CourseID, m.Name, m.FileName)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.Version = 1
	return nil
}

// GetByID fetches a material regardless of access; callers authorize via the
// course afterwards.
func (r *MaterialRepo) GetByID(ctx context.Context, id uint64) (model.TeachingMaterial, error) {
	var m model.TeachingMaterial
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, course_id, name, file_name, version FROM teaching_materials WHERE id=? LIMIT 1",
		id).Scan(&m.ID, &m.CourseID, &m.Name, &m.FileName, &m.Version)
	return m, err
}

// ListForTutor returns the materials of courses the tutor owns.
func (r *MaterialRepo) ListForTutor(ctx context.Context, tutor string) ([]model.TeachingMaterial, error) {
	return r.list(ctx,
		`SELECT m.id, m.course_id, m.name, m.file_name, m.version
		 FROM teaching_materials m JOIN courses c ON c.id = m.course_id
		 WHERE c.tutor_username = ? ORDER BY m.id`, tutor)
}

// ListForStudent returns the materials of courses in which the student has at
// least one enrollment.
func (r *MaterialRepo) ListForStudent(ctx context.Context, student string) ([]model.TeachingMaterial, error) {
	return r.list(ctx,
		`SELECT m.id, m.course_id, m.name, m.file_name, m.version
		 FROM teaching_materials m
		 JOIN student_courses sc ON sc.course_id = m.course_id
		 WHERE sc.student_username = ? ORDER BY m.id`, student)
}

// Update rewrites the name under the optimistic version. The backing file and
// owning course are fixed at creation.
func (r *MaterialRepo) Update(ctx context.Context, m model.TeachingMaterial) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE teaching_materials SET name=?, version=version+1 WHERE id=? AND version=?",
		m.Name, m.ID, m.Version)
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

// Delete removes a material row.
func (r *MaterialRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM teaching_materials WHERE id=?", id)
	return err
}

func (r *MaterialRepo) list(ctx context.Context, query string, args ...any) ([]model.TeachingMaterial, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TeachingMaterial
	for rows.Next() {
		var m model.TeachingMaterial
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Name, &m.FileName, &m.Version); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
