package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/repository"
)

// NotificationHandler exposes the caller's inbox. Notifications are created
// only as side effects of other mutations; the surface here is read and
// delete.
type NotificationHandler struct {
	Accounts      *repository.AccountRepo
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(accounts *repository.AccountRepo, notifications *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Accounts: accounts, Notifications: notifications}
}

// List handles GET /v1/notifications, newest first, owner-only.
func (h *NotificationHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	items, err := h.Notifications.ListByAccount(c.Request().Context(), p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/notifications/:id for the owner.
func (h *NotificationHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	n, err := h.Notifications.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "notification")
		}
		return internal(c, "db error")
	}
	if n.AccountUsername != p.Username {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, n)
}

// Delete handles DELETE /v1/notifications/:id for the owner.
func (h *NotificationHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	n, err := h.Notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "notification")
		}
		return internal(c, "db error")
	}
	if n.AccountUsername != p.Username {
		return forbidden(c)
	}
	if err := h.Notifications.Delete(ctx, n.ID); err != nil {
		return internal(c, "could not delete notification")
	}
	return c.NoContent(http.StatusNoContent)
}
