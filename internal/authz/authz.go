// Package authz holds the per-entity ownership predicates. Every predicate is
// a pure function over already-loaded entities: handlers fetch the rows,
// gather whatever related facts the rule needs (the owning course's tutor, an
// enrollment existence flag) and then ask. Forbidden is decided here;
// NotFound is decided by the handler before calling in.
package authz

import "github.com/tutorhub/tutorhub/internal/model"

// Principal is the authenticated caller as seen by the predicates.
type Principal struct {
	Username string
	IsTutor  bool
}

// CanReadCourse allows the owning tutor, or a student holding an enrollment
// in the course.
func CanReadCourse(p Principal, c model.Course, enrolled bool) bool {
	if p.IsTutor {
		return c.TutorUsername == p.Username
	}
	return enrolled
}

// CanWriteCourse allows update and delete for the owning tutor only.
func CanWriteCourse(p Principal, c model.Course) bool {
	return p.IsTutor && c.TutorUsername == p.Username
}

// CanCreateCourse requires the declared tutor to be the caller: a tutor may
// not create courses on behalf of someone else.
func CanCreateCourse(p Principal, tutorUsername string) bool {
	return p.IsTutor && tutorUsername == p.Username
}

// CanAccessSession allows the tutor of the session's course or the session's
// student. courseTutor is the owner of s.CourseID, resolved by the caller.
func CanAccessSession(p Principal, s model.Session, courseTutor string) bool {
	if p.IsTutor {
		return courseTutor == p.Username
	}
	return s.StudentUsername == p.Username
}

// CanManageSession allows create, update and delete for the tutor owning the
// session's course. Students never mutate sessions except through
// confirmation.
func CanManageSession(p Principal, courseTutor string) bool {
	return p.IsTutor && courseTutor == p.Username
}

// CanConfirmSession allows accept and reject for the session's own student
// only. Tutors may not set the confirmation status, not even on their own
// sessions.
func CanConfirmSession(p Principal, s model.Session) bool {
	return !p.IsTutor && s.StudentUsername == p.Username
}

// CanAccessHomework inherits visibility from the owning session: the tutor of
// the session's course or the session's student.
func CanAccessHomework(p Principal, s model.Session, courseTutor string) bool {
	return CanAccessSession(p, s, courseTutor)
}

// CanManageHomework allows create, update and delete for the tutor of the
// session's course.
func CanManageHomework(p Principal, courseTutor string) bool {
	return p.IsTutor && courseTutor == p.Username
}

// CanUploadSolution restricts solution upload to the session's own student.
// The write-once rule (no overwrite of an existing solution) is enforced in
// the store, not here.
func CanUploadSolution(p Principal, s model.Session) bool {
	return !p.IsTutor && s.StudentUsername == p.Username
}

// CanReadMessage allows the sender or the recipient, nobody else.
func CanReadMessage(p Principal, m model.Message) bool {
	return m.SenderUsername == p.Username || m.RecipientUsername == p.Username
}

// CanSendMessage forbids self-messaging; anything else is allowed provided
// the recipient exists, which the handler verifies separately.
func CanSendMessage(p Principal, recipient string) bool {
	return recipient != p.Username
}

// CanAccessNote is strictly owner-only. There is no tutor override for notes.
func CanAccessNote(p Principal, n model.Note) bool {
	return n.AccountUsername == p.Username
}

// CanReadPayment allows either named party.
func CanReadPayment(p Principal, r model.PaymentRecord) bool {
	return r.StudentUsername == p.Username || r.TutorUsername == p.Username
}

// CanWritePayment allows create, update and delete for the named tutor only.
func CanWritePayment(p Principal, tutorUsername string) bool {
	return p.IsTutor && tutorUsername == p.Username
}

// CanAccessMaterial reuses the course-access rule: the owning tutor, or a
// student enrolled in the material's course.
func CanAccessMaterial(p Principal, courseTutor string, enrolled bool) bool {
	if p.IsTutor {
		return courseTutor == p.Username
	}
	return enrolled
}

// CanManageMaterial allows create, update and delete for the course's tutor.
func CanManageMaterial(p Principal, courseTutor string) bool {
	return p.IsTutor && courseTutor == p.Username
}

// CanReadEnrollment allows the named student or the tutor of the named
// course.
func CanReadEnrollment(p Principal, e model.Enrollment, courseTutor string) bool {
	return e.StudentUsername == p.Username || (p.IsTutor && courseTutor == p.Username)
}

// CanManageEnrollment allows create and update for the course's tutor.
func CanManageEnrollment(p Principal, courseTutor string) bool {
	return p.IsTutor && courseTutor == p.Username
}

// CanDeleteEnrollment allows the named student to leave the course, and the
// course's tutor to remove the student.
func CanDeleteEnrollment(p Principal, e model.Enrollment, courseTutor string) bool {
	return e.StudentUsername == p.Username || (p.IsTutor && courseTutor == p.Username)
}

// CanDeactivate implements the two-target deactivation rule: an active tutor
// may always deactivate themselves, and may deactivate any non-tutor. Tutors
// never deactivate other tutors; non-tutors deactivate nobody.
func CanDeactivate(p Principal, target model.Account) bool {
	if !p.IsTutor {
		return false
	}
	if target.Username == p.Username {
		return true
	}
	return !target.IsTutor
}

// CanViewAccount allows any tutor, or the account itself.
func CanViewAccount(p Principal, username string) bool {
	return p.IsTutor || username == p.Username
}
