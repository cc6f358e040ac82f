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

// MaterialHandler implements teaching-material CRUD and file download.
// Visibility follows course access on every route.
type MaterialHandler struct {
	Accounts    *repository.AccountRepo
	Courses     *repository.CourseRepo
	Enrollments *repository.EnrollmentRepo
	Materials   *repository.MaterialRepo
	Files       *filestore.Store
}

func NewMaterialHandler(accounts *repository.AccountRepo, courses *repository.CourseRepo, enrollments *repository.EnrollmentRepo, materials *repository.MaterialRepo, files *filestore.Store) *MaterialHandler {
	return &MaterialHandler{Accounts: accounts, Courses: courses, Enrollments: enrollments, Materials: materials, Files: files}
}

// load fetches a material and its course, writing the error response itself
// on failure.
func (h *MaterialHandler) load(c echo.Context, id uint64) (model.TeachingMaterial, model.Course, error) {
	ctx := c.Request().Context()
	m, err := h.Materials.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, model.Course{}, notFound(c, "material")
		}
		return m, model.Course{}, internal(c, "db error")
	}
	course, err := h.Courses.GetByID(ctx, m.CourseID)
	if err != nil {
		return m, course, internal(c, "material references a missing course")
	}
	return m, course, nil
}

// access resolves the course-access predicate for the caller.
func (h *MaterialHandler) access(c echo.Context, p authz.Principal, course model.Course) (bool, error) {
	enrolled := false
	if !p.IsTutor {
		var err error
		enrolled, err = h.Enrollments.Exists(c.Request().Context(), p.Username, course.ID)
		if err != nil {
			return false, internal(c, "db error")
		}
	}
	return authz.CanAccessMaterial(p, course.TutorUsername, enrolled), nil
}

// List handles GET /v1/materials, filtered to courses the caller can access.
func (h *MaterialHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var items []model.TeachingMaterial
	if p.IsTutor {
		items, err = h.Materials.ListForTutor(ctx, p.Username)
	} else {
		items, err = h.Materials.ListForStudent(ctx, p.Username)
	}
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/materials/:id.
func (h *MaterialHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	m, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	ok, err := h.access(c, p, course)
	if err != nil {
		return err
	}
	if !ok {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, m)
}

// Create handles POST /v1/materials as multipart form data: course_id, name
// and an optional file. Course tutor only.
func (h *MaterialHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body struct {
		CourseID uint64 `json:"course_id" form:"course_id"`
		Name     string `json:"name" form:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}
	ctx := c.Request().Context()

	course, err := h.Courses.GetByID(ctx, body.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "course")
		}
		return internal(c, "db error")
	}
	if !authz.CanManageMaterial(p, course.TutorUsername) {
		return forbidden(c)
	}

	var fileName *string
	if fh, ferr := c.FormFile("file"); ferr == nil {
		src, oerr := fh.Open()
		if oerr != nil {
			return internal(c, "could not read upload")
		}
		defer src.Close()
		fileID, serr := h.Files.Save(src, fh.Filename)
		if serr != nil {
			return internal(c, "could not store file")
		}
		fileName = &fileID
	}

	m := model.TeachingMaterial{CourseID: course.ID, Name: body.Name, FileName: fileName}
	if err := h.Materials.Create(ctx, &m); err != nil {
		if fileName != nil {
			_ = h.Files.Remove(*fileName)
		}
		return internal(c, "could not create material")
	}
	return c.JSON(http.StatusCreated, m)
}

// Update handles PUT /v1/materials/:id for the course's tutor. Only the name
// is editable; the file and course are fixed at creation.
func (h *MaterialHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}
	ctx := c.Request().Context()

	m, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageMaterial(p, course.TutorUsername) {
		return forbidden(c)
	}
	m.Name = body.Name
	if err := h.Materials.Update(ctx, m); err != nil {
		return staleOrGone(c, err, "material", func() (bool, error) {
			_, gerr := h.Materials.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	updated, err := h.Materials.GetByID(ctx, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/materials/:id for the course's tutor. The backing
// file is removed best-effort.
func (h *MaterialHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	m, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageMaterial(p, course.TutorUsername) {
		return forbidden(c)
	}
	if err := h.Materials.Delete(c.Request().Context(), m.ID); err != nil {
		return internal(c, "could not delete material")
	}
	if m.FileName != nil && *m.FileName != "" {
		_ = h.Files.Remove(*m.FileName)
	}
	return c.NoContent(http.StatusNoContent)
}

// Download handles GET /v1/materials/:id/file for anyone with course access.
func (h *MaterialHandler) Download(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	m, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	ok, err := h.access(c, p, course)
	if err != nil {
		return err
	}
	if !ok {
		return forbidden(c)
	}
	if m.FileName == nil || *m.FileName == "" {
		return notFound(c, "file")
	}
	path, err := h.Files.Path(*m.FileName)
	if err != nil {
		return internal(c, "stored file id is invalid")
	}
	return c.Attachment(path, *m.FileName)
}
