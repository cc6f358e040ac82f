package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// CourseHandler implements course CRUD.
type CourseHandler struct {
	Accounts    *repository.AccountRepo
	Courses     *repository.CourseRepo
	Enrollments *repository.EnrollmentRepo
	Files       *filestore.Store
}

func NewCourseHandler(accounts *repository.AccountRepo, courses *repository.CourseRepo, enrollments *repository.EnrollmentRepo, files *filestore.Store) *CourseHandler {
	return &CourseHandler{Accounts: accounts, Courses: courses, Enrollments: enrollments, Files: files}
}

// List handles GET /v1/courses. Any tutor sees the full catalogue; students
// are rejected and reach course data through their enrollments instead.
func (h *CourseHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	if !p.IsTutor {
		return forbidden(c)
	}
	items, err := h.Courses.ListAll(c.Request().Context())
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/courses/:id. The owning tutor, or a student enrolled in
// the course.
func (h *CourseHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	course, err := h.Courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "course")
		}
		return internal(c, "db error")
	}

	enrolled := false
	if !p.IsTutor {
		enrolled, err = h.Enrollments.Exists(ctx, p.Username, id)
		if err != nil {
			return internal(c, "db error")
		}
	}
	if !authz.CanReadCourse(p, course, enrolled) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, course)
}

type courseRequest struct {
	TutorUsername string `json:"tutor_username"`
	Name          string `json:"name"`
	PriceCents    uint32 `json:"price_cents"`
	Description   string `json:"description"`
}

// Create handles POST /v1/courses. The declared tutor must be the caller.
func (h *CourseHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body courseRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.TutorUsername == "" {
		body.TutorUsername = p.Username
	}
	if !authz.CanCreateCourse(p, body.TutorUsername) {
		return forbidden(c)
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}

	course := model.Course{
		TutorUsername: body.TutorUsername,
		Name:          body.Name,
		PriceCents:    body.PriceCents,
		Description:   body.Description,
	}
	if err := h.Courses.Create(c.Request().Context(), &course); err != nil {
		return internal(c, "could not create course")
	}
	return c.JSON(http.StatusCreated, course)
}

// Update handles PUT /v1/courses/:id. The owning tutor may edit name, price
// and description; the tutor itself is immutable.
func (h *CourseHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body courseRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	course, err := h.Courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "course")
		}
		return internal(c, "db error")
	}
	if !authz.CanWriteCourse(p, course) {
		return forbidden(c)
	}
	if body.TutorUsername != "" && body.TutorUsername != course.TutorUsername {
		return badRequest(c, "a course's tutor cannot be changed")
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}

	course.Name = body.Name
	course.PriceCents = body.PriceCents
	course.Description = body.Description
	if err := h.Courses.Update(ctx, course); err != nil {
		return staleOrGone(c, err, "course", func() (bool, error) {
			_, gerr := h.Courses.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	updated, err := h.Courses.GetByID(ctx, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/courses/:id. The owning tutor only; removes the
// course and everything hanging off it, then removes the orphaned stored
// files best-effort.
func (h *CourseHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	course, err := h.Courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "course")
		}
		return internal(c, "db error")
	}
	if !authz.CanWriteCourse(p, course) {
		return forbidden(c)
	}
	orphans, err := h.Courses.Delete(ctx, id)
	if err != nil {
		return internal(c, "could not delete course")
	}
	for _, f := range orphans {
		_ = h.Files.Remove(f)
	}
	return c.NoContent(http.StatusNoContent)
}
