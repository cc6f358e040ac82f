package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// HomeworkHandler implements homework CRUD plus the write-once solution
// upload and its download.
type HomeworkHandler struct {
	Accounts *repository.AccountRepo
	Courses  *repository.CourseRepo
	Sessions *repository.SessionRepo
	Homework *repository.HomeworkRepo
	Files    *filestore.Store
}

func NewHomeworkHandler(accounts *repository.AccountRepo, courses *repository.CourseRepo, sessions *repository.SessionRepo, homework *repository.HomeworkRepo, files *filestore.Store) *HomeworkHandler {
	return &HomeworkHandler{Accounts: accounts, Courses: courses, Sessions: sessions, Homework: homework, Files: files}
}

// load fetches an assignment with its session and course, writing the error
// response itself on failure.
func (h *HomeworkHandler) load(c echo.Context, id uint64) (model.HomeworkAssignment, model.Session, model.Course, error) {
	ctx := c.Request().Context()
	hw, err := h.Homework.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hw, model.Session{}, model.Course{}, notFound(c, "homework")
		}
		return hw, model.Session{}, model.Course{}, internal(c, "db error")
	}
	s, err := h.Sessions.GetByID(ctx, hw.SessionID)
	if err != nil {
		return hw, s, model.Course{}, internal(c, "homework references a missing session")
	}
	course, err := h.Courses.GetByID(ctx, s.CourseID)
	if err != nil {
		return hw, s, course, internal(c, "session references a missing course")
	}
	return hw, s, course, nil
}

// List handles GET /v1/homework, role-filtered through session and course
// membership.
func (h *HomeworkHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var items []model.HomeworkAssignment
	if p.IsTutor {
		items, err = h.Homework.ListByTutor(ctx, p.Username)
	} else {
		items, err = h.Homework.ListByStudent(ctx, p.Username)
	}
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/homework/:id.
func (h *HomeworkHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	hw, s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanAccessHomework(p, s, course.TutorUsername) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, withSolutionFlag(hw))
}

type homeworkRequest struct {
	SessionID uint64  `json:"session_id"`
	Name      string  `json:"name"`
	Objective string  `json:"objective"`
	Feedback  *string `json:"solution_feedback"`
}

// Create handles POST /v1/homework for the tutor of the session's course. The
// student is notified in the same transaction.
func (h *HomeworkHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body homeworkRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	s, err := h.Sessions.GetByID(ctx, body.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "session")
		}
		return internal(c, "db error")
	}
	course, err := h.Courses.GetByID(ctx, s.CourseID)
	if err != nil {
		return internal(c, "session references a missing course")
	}
	if !authz.CanManageHomework(p, course.TutorUsername) {
		return forbidden(c)
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}

	hw := model.HomeworkAssignment{
		SessionID: s.ID,
		Name:      body.Name,
		Objective: body.Objective,
	}
	notif := model.Notification{
		AccountUsername:  s.StudentUsername,
		NotificationType: model.NotifyHomeworkAssigned,
		Message:          fmt.Sprintf("New homework %q was assigned in %s", hw.Name, course.Name),
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Homework.Create(ctx, &hw, notif); err != nil {
		return internal(c, "could not create homework")
	}
	return c.JSON(http.StatusCreated, withSolutionFlag(hw))
}

// Update handles PUT /v1/homework/:id for the tutor; name, objective and
// feedback only.
func (h *HomeworkHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body homeworkRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	hw, _, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageHomework(p, course.TutorUsername) {
		return forbidden(c)
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}

	hw.Name = body.Name
	hw.Objective = body.Objective
	hw.SolutionFeedback = body.Feedback
	if err := h.Homework.Update(ctx, hw); err != nil {
		return staleOrGone(c, err, "homework", func() (bool, error) {
			_, gerr := h.Homework.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	updated, err := h.Homework.GetByID(ctx, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, withSolutionFlag(updated))
}

// Delete handles DELETE /v1/homework/:id for the tutor. The stored solution
// file, if any, is removed best-effort.
func (h *HomeworkHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	hw, _, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanManageHomework(p, course.TutorUsername) {
		return forbidden(c)
	}
	if err := h.Homework.Delete(c.Request().Context(), hw.ID); err != nil {
		return internal(c, "could not delete homework")
	}
	if hw.HasSolutionFile() {
		_ = h.Files.Remove(*hw.SolutionFile)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadSolution handles POST /v1/homework/:id/solution. Student-only,
// write-once: a second upload is rejected with Conflict even under concurrent
// requests. The tutor is notified in the same transaction as the update.
func (h *HomeworkHandler) UploadSolution(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	hw, s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanUploadSolution(p, s) {
		return forbidden(c)
	}
	if hw.HasSolutionFile() {
		return conflict(c, "a solution has already been uploaded")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "a file upload named \"file\" is required")
	}
	src, err := fh.Open()
	if err != nil {
		return internal(c, "could not read upload")
	}
	defer src.Close()

	fileID, err := h.Files.Save(src, fh.Filename)
	if err != nil {
		return internal(c, "could not store upload")
	}

	notif := model.Notification{
		AccountUsername:  course.TutorUsername,
		NotificationType: model.NotifySolutionUploaded,
		Message:          fmt.Sprintf("%s uploaded a solution for %q", p.Username, hw.Name),
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Homework.SetSolution(ctx, hw.ID, fileID, notif); err != nil {
		_ = h.Files.Remove(fileID)
		if errors.Is(err, repository.ErrConflict) {
			return conflict(c, "a solution has already been uploaded")
		}
		return internal(c, "could not record solution")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "uploaded"})
}

// DownloadSolution handles GET /v1/homework/:id/solution for either party
// with access to the assignment.
func (h *HomeworkHandler) DownloadSolution(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	hw, s, course, err := h.load(c, id)
	if err != nil {
		return err
	}
	if !authz.CanAccessHomework(p, s, course.TutorUsername) {
		return forbidden(c)
	}
	if !hw.HasSolutionFile() {
		return notFound(c, "solution")
	}
	path, err := h.Files.Path(*hw.SolutionFile)
	if err != nil {
		return internal(c, "stored file id is invalid")
	}
	return c.Attachment(path, *hw.SolutionFile)
}

// withSolutionFlag augments the JSON shape with has_solution; the stored file
// name itself stays private.
func withSolutionFlag(hw model.HomeworkAssignment) echo.Map {
	return echo.Map{
		"id":                hw.ID,
		"session_id":        hw.SessionID,
		"name":              hw.Name,
		"objective":         hw.Objective,
		"solution_feedback": hw.SolutionFeedback,
		"has_solution":      hw.HasSolutionFile(),
	}
}
