package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// SessionHandler implements tutoring-session CRUD plus the student's
// accept/reject decision.
type SessionHandler struct {
	Accounts *repository.AccountRepo
	Courses  *repository.CourseRepo
	Sessions *repository.SessionRepo
	Homework *repository.HomeworkRepo
	Files    *filestore.Store
}

func NewSessionHandler(accounts *repository.AccountRepo, courses *repository.CourseRepo, sessions *repository.SessionRepo, homework *repository.HomeworkRepo, files *filestore.Store) *SessionHandler {
	return &SessionHandler{Accounts: accounts, Courses: courses, Sessions: sessions, Homework: homework, Files: files}
}

// load fetches a session and its course, writing the error response itself on
// failure. A session whose course is missing is a data-corruption signal, not
// a user error.
func (h *SessionHandler) load(c echo.Context, id uint64) (model.Session, model.Course, error) {
	ctx := c.Request().Context()
	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, model.Course{}, notFound(c, "session")
		}
		return s, model.Course{}, internal(c, "db error")
	}
	course, err := h.Courses.GetByID(ctx, s.CourseID)
	if err != nil {
		return s, course, internal(c, "session references a missing course")
	}
	return s, course, nil
}

// List handles GET /v1/sessions. Role-filtered: tutors see the sessions of
// their courses, students their own.
func (h *SessionHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var items []model.Session
	if p.IsTutor {
		items, err = h.Sessions.ListByTutor(ctx, p.Username)
	} else {
		items, err = h.Sessions.ListByStudent(ctx, p.Username)
	}
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/sessions/:id, returning the session together with its
// homework assignments.
func (h *SessionHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanAccessSession(p, s, course.TutorUsername) {
		return forbidden(c)
	}
	hw, err := h.Homework.ListBySession(c.Request().Context(), s.ID)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"session": s, "homework": hw})
}

type sessionRequest struct {
	StudentUsername string    `json:"student_username"`
	CourseID        uint64    `json:"course_id"`
	SessionAt       time.Time `json:"session_at"`
	IsPaidFor       bool      `json:"is_paid_for"`
}

// Create handles POST /v1/sessions. The caller must own the course and the
// session must lie in the future; the student is notified in the same
// transaction.
func (h *SessionHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body sessionRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	course, err := h.Courses.GetByID(ctx, body.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "course")
		}
		return internal(c, "db error")
	}
	if !authz.CanManageSession(p, course.TutorUsername) {
		return forbidden(c)
	}
	if body.SessionAt.Before(time.Now().UTC()) {
		return badRequest(c, "session_at must not be in the past")
	}

	student, err := h.Accounts.GetByUsername(ctx, body.StudentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "student")
		}
		return internal(c, "db error")
	}
	if student.IsTutor {
		return badRequest(c, "sessions can only be scheduled for students")
	}

	s := model.Session{
		StudentUsername:    student.Username,
		CourseID:           course.ID,
		SessionAt:          body.SessionAt,
		IsPaidFor:          body.IsPaidFor,
		ConfirmationStatus: model.ConfirmationUnknown,
	}
	notif := model.Notification{
		AccountUsername:  student.Username,
		NotificationType: model.NotifySessionCreated,
		Message:          fmt.Sprintf("A %s session was scheduled for %s", course.Name, body.SessionAt.UTC().Format(time.RFC1123)),
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Sessions.Create(ctx, &s, notif); err != nil {
		return internal(c, "could not create session")
	}
	return c.JSON(http.StatusCreated, s)
}

type sessionUpdateRequest struct {
	StudentUsername    string    `json:"student_username"`
	CourseID           uint64    `json:"course_id"`
	SessionAt          time.Time `json:"session_at"`
	IsPaidFor          bool      `json:"is_paid_for"`
	ConfirmationStatus string    `json:"confirmation_status"`
}

// Update handles PUT /v1/sessions/:id. Course and student are immutable, the
// confirmation status is student-only via accept/reject, and a date change
// drops the status back to UNKNOWN: a reschedule invalidates any earlier
// confirmation.
func (h *SessionHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body sessionUpdateRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageSession(p, course.TutorUsername) {
		return forbidden(c)
	}
	if body.StudentUsername != "" && body.StudentUsername != s.StudentUsername {
		return badRequest(c, "a session's student cannot be changed")
	}
	if body.CourseID != 0 && body.CourseID != s.CourseID {
		return badRequest(c, "a session's course cannot be changed")
	}
	if body.ConfirmationStatus != "" && body.ConfirmationStatus != s.ConfirmationStatus {
		return badRequest(c, "confirmation is set by the student via accept or reject")
	}
	if body.SessionAt.IsZero() {
		return badRequest(c, "session_at is required")
	}

	if !body.SessionAt.Equal(s.SessionAt) {
		if body.SessionAt.Before(time.Now().UTC()) {
			return badRequest(c, "session_at must not be in the past")
		}
		s.ConfirmationStatus = model.ConfirmationUnknown
	}
	s.SessionAt = body.SessionAt
	s.IsPaidFor = body.IsPaidFor

	if err := h.Sessions.Update(ctx, s); err != nil {
		return staleOrGone(c, err, "session", func() (bool, error) {
			_, gerr := h.Sessions.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	updated, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/sessions/:id for the tutor owning the session's
// course. The session's homework goes with it; orphaned solution files are
// removed best-effort.
func (h *SessionHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageSession(p, course.TutorUsername) {
		return forbidden(c)
	}
	orphans, err := h.Sessions.Delete(c.Request().Context(), s.ID)
	if err != nil {
		return internal(c, "could not delete session")
	}
	for _, f := range orphans {
		_ = h.Files.Remove(f)
	}
	return c.NoContent(http.StatusNoContent)
}

// Accept handles POST /v1/sessions/:id/accept.
func (h *SessionHandler) Accept(c echo.Context) error {
	return h.confirm(c, model.ConfirmationYes, model.NotifySessionAccepted, "accepted")
}

// Reject handles POST /v1/sessions/:id/reject.
func (h *SessionHandler) Reject(c echo.Context) error {
	return h.confirm(c, model.ConfirmationNo, model.NotifySessionRejected, "rejected")
}

// confirm records the student's decision while the status is still UNKNOWN
// and notifies the tutor in the same transaction.
func (h *SessionHandler) confirm(c echo.Context, status, notifType, verb string) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanConfirmSession(p, s) {
		return forbidden(c)
	}
	if s.ConfirmationStatus != model.ConfirmationUnknown {
		return conflict(c, "session is already "+verbFor(s.ConfirmationStatus))
	}

	notif := model.Notification{
		AccountUsername:  course.TutorUsername,
		NotificationType: notifType,
		Message:          fmt.Sprintf("%s %s the %s session on %s", p.Username, verb, course.Name, s.SessionAt.UTC().Format(time.RFC1123)),
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Sessions.SetConfirmation(ctx, s, status, notif); err != nil {
		return staleOrGone(c, err, "session", func() (bool, error) {
			_, gerr := h.Sessions.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	s.ConfirmationStatus = status
	return c.JSON(http.StatusOK, s)
}

func verbFor(status string) string {
	if status == model.ConfirmationYes {
		return "accepted"
	}
	return "rejected"
}
