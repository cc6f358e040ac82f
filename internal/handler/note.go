package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// NoteHandler implements the strictly private note CRUD. There is no tutor
// override anywhere on this surface.
type NoteHandler struct {
	Accounts *repository.AccountRepo
	Notes    *repository.NoteRepo
}

func NewNoteHandler(accounts *repository.AccountRepo, notes *repository.NoteRepo) *NoteHandler {
	return &NoteHandler{Accounts: accounts, Notes: notes}
}

// List handles GET /v1/notes: the caller's own notes only.
func (h *NoteHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	items, err := h.Notes.ListByAccount(c.Request().Context(), p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/notes/:id.
func (h *NoteHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	n, err := h.Notes.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "note")
		}
		return internal(c, "db error")
	}
	if !authz.CanAccessNote(p, n) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, n)
}

type noteRequest struct {
	AccountUsername string    `json:"account_username"`
	Date            time.Time `json:"date"`
	Body            string    `json:"body"`
}

// Create handles POST /v1/notes. The declared owner, when present, must be
// the caller.
func (h *NoteHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body noteRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.AccountUsername != "" && body.AccountUsername != p.Username {
		return forbidden(c)
	}
	if strings.TrimSpace(body.Body) == "" {
		return badRequest(c, "body is required")
	}
	if body.Date.IsZero() {
		body.Date = time.Now().UTC()
	}

	n := model.Note{
		AccountUsername: p.Username,
		Date:            body.Date,
		Body:            body.Body,
	}
	if err := h.Notes.Create(c.Request().Context(), &n); err != nil {
		return internal(c, "could not create note")
	}
	return c.JSON(http.StatusCreated, n)
}

// Update handles PUT /v1/notes/:id for the owner.
func (h *NoteHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body noteRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	n, err := h.Notes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "note")
		}
		return internal(c, "db error")
	}
	if !authz.CanAccessNote(p, n) {
		return forbidden(c)
	}
	if strings.TrimSpace(body.Body) == "" {
		return badRequest(c, "body is required")
	}
	if !body.Date.IsZero() {
		n.Date = body.Date
	}
	n.Body = body.Body
	if err := h.Notes.Update(ctx, n); err != nil {
		return staleOrGone(c, err, "note", func() (bool, error) {
			_, gerr := h.Notes.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	updated, err := h.Notes.GetByID(ctx, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/notes/:id for the owner.
func (h *NoteHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	n, err := h.Notes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "note")
		}
		return internal(c, "db error")
	}
	if !authz.CanAccessNote(p, n) {
		return forbidden(c)
	}
	if err := h.Notes.Delete(ctx, n.ID); err != nil {
		return internal(c, "could not delete note")
	}
	return c.NoContent(http.StatusNoContent)
}
