package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// EnrollmentHandler implements student-course enrollment management. All
// routes are course-scoped except the student's own flat list.
type EnrollmentHandler struct {
	Accounts    *repository.AccountRepo
	Courses     *repository.CourseRepo
	Enrollments *repository.EnrollmentRepo
}

func NewEnrollmentHandler(accounts *repository.AccountRepo, courses *repository.CourseRepo, enrollments *repository.EnrollmentRepo) *EnrollmentHandler {
	return &EnrollmentHandler{Accounts: accounts, Courses: courses, Enrollments: enrollments}
}

// course loads a course, writing the NotFound or Internal response itself
// when the load fails.
func (h *EnrollmentHandler) course(c echo.Context, id uint64) (model.Course, error) {
	course, err := h.Courses.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course, notFound(c, "course")
		}
		return course, internal(c, "db error")
	}
	return course, nil
}

// ListOwn handles GET /v1/enrollments: the student's own enrollments. Tutors
// list per course instead.
func (h *EnrollmentHandler) ListOwn(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	if p.IsTutor {
		return forbidden(c)
	}
	items, err := h.Enrollments.ListByStudent(c.Request().Context(), p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListByCourse handles GET /v1/courses/:id/enrollments for the course's
// tutor.
func (h *EnrollmentHandler) ListByCourse(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	course, err := h.course(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageEnrollment(p, course.TutorUsername) {
		return forbidden(c)
	}
	items, err := h.Enrollments.ListByCourse(c.Request().Context(), id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/courses/:id/enrollments/:student for the named student
// or the course's tutor.
func (h *EnrollmentHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	course, err := h.course(c, id)
	if err != nil {
		return err
	}
	e, err := h.Enrollments.Get(c.Request().Context(), c.Param("student"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "enrollment")
		}
		return internal(c, "db error")
	}
	if !authz.CanReadEnrollment(p, e, course.TutorUsername) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, e)
}

type enrollmentRequest struct {
	StudentUsername string    `json:"student_username"`
	CourseID        uint64    `json:"course_id"`
	Frequency       string    `json:"frequency"`
	EndDate         time.Time `json:"end_date"`
}

// Create handles POST /v1/enrollments. Only the course's tutor enrolls
// students; the end date may not lie in the past.
func (h *EnrollmentHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body enrollmentRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	course, err := h.course(c, body.CourseID)
	if err != nil {
		return err
	}
	if !authz.CanManageEnrollment(p, course.TutorUsername) {
		return forbidden(c)
	}
	if body.EndDate.Before(time.Now().UTC()) {
		return badRequest(c, "end_date must not be in the past")
	}

	student, err := h.Accounts.GetByUsername(ctx, body.StudentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "student")
		}
		return internal(c, "db error")
	}
	if student.IsTutor {
		return badRequest(c, "only students can be enrolled")
	}

	e := model.Enrollment{
		StudentUsername: student.Username,
		CourseID:        course.ID,
		Frequency:       body.Frequency,
		EndDate:         body.EndDate,
	}
	if err := h.Enrollments.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict(c, "student is already enrolled in this course")
		}
		return internal(c, "could not create enrollment")
	}
	e.Version = 1
	return c.JSON(http.StatusCreated, e)
}

// Update handles PUT /v1/courses/:id/enrollments/:student for the course's
// tutor; only frequency and end date may change.
func (h *EnrollmentHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body enrollmentRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	course, err := h.course(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageEnrollment(p, course.TutorUsername) {
		return forbidden(c)
	}
	if body.EndDate.Before(time.Now().UTC()) {
		return badRequest(c, "end_date must not be in the past")
	}

	student := c.Param("student")
	e, err := h.Enrollments.Get(ctx, student, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "enrollment")
		}
		return internal(c, "db error")
	}
	e.Frequency = body.Frequency
	e.EndDate = body.EndDate
	if err := h.Enrollments.Update(ctx, e); err != nil {
		return staleOrGone(c, err, "enrollment", func() (bool, error) {
			return h.Enrollments.Exists(ctx, student, id)
		})
	}
	updated, err := h.Enrollments.Get(ctx, student, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/courses/:id/enrollments/:student. The named
// student may leave the course; the course's tutor may remove the student.
func (h *EnrollmentHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	course, err := h.course(c, id)
	if err != nil {
		return err
	}
	e, err := h.Enrollments.Get(ctx, c.Param("student"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "enrollment")
		}
		return internal(c, "db error")
	}
	if !authz.CanDeleteEnrollment(p, e, course.TutorUsername) {
		return forbidden(c)
	}
	if err := h.Enrollments.Delete(ctx, e.StudentUsername, e.CourseID); err != nil {
		return internal(c, "could not delete enrollment")
	}
	return c.NoContent(http.StatusNoContent)
}
