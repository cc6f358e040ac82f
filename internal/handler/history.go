package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/repository"
)

// HistoryHandler exposes the append-only account history log read-only. The
// only writers are login and deactivation.
type HistoryHandler struct {
	Accounts *repository.AccountRepo
	History  *repository.HistoryRepo
}

func NewHistoryHandler(accounts *repository.AccountRepo, history *repository.HistoryRepo) *HistoryHandler {
	return &HistoryHandler{Accounts: accounts, History: history}
}

// List handles GET /v1/history. Filter policy: tutors see the full log,
// everyone else their own events.
func (h *HistoryHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if p.IsTutor {
		items, err := h.History.ListAll(ctx)
		if err != nil {
			return internal(c, "db error")
		}
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	}
	items, err := h.History.ListByAccount(ctx, p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/history/:id. Visible to tutors and the event's own
// account.
func (h *HistoryHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}

	ev, err := h.History.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "history event")
		}
		return internal(c, "db error")
	}
	if !p.IsTutor && ev.AccountUsername != p.Username {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, ev)
}
