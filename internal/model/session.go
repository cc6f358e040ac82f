package model

import "time"

// Session confirmation values. A reschedule always drops the status back to
// UNKNOWN; only the session's student may move it to YES or NO.
const (
	ConfirmationUnknown = "UNKNOWN"
	ConfirmationYes     = "YES"
	ConfirmationNo      = "NO"
)

// Session is one tutoring appointment inside a course.
type Session struct {
	ID                 uint64    `json:"id"`
	StudentUsername    string    `json:"student_username"`
	CourseID           uint64    `json:"course_id"`
	SessionAt          time.Time `json:"session_at"`
	IsPaidFor          bool      `json:"is_paid_for"`
	ConfirmationStatus string    `json:"confirmation_status"`
	Version            uint32    `json:"-"`
}
