package model

import "time"

// Enrollment links a student to a course with a lesson frequency and an end
// date. The composite key is (student_username, course_id); EndDate must not
// be in the past at creation or update time.
type Enrollment struct {
	StudentUsername string    `json:"student_username"`
	CourseID        uint64    `json:"course_id"`
	Frequency       string    `json:"frequency"`
	EndDate         time.Time `json:"end_date"`
	Version         uint32    `json:"-"`
}
