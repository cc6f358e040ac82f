package model

// TeachingMaterial is a named, optionally file-backed resource attached to a
// course. Visibility follows course access: the owning tutor, or any student
// with at least one enrollment in the course.
type TeachingMaterial struct {
	ID       uint64  `json:"id"`
	CourseID uint64  `json:"course_id"`
	Name     string  `json:"name"`
	FileName *string `json:"file_name,omitempty"`
	Version  uint32  `json:"-"`
}
