package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/mailer"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// AccountHandler implements the account read endpoints and deactivation.
type AccountHandler struct {
	Accounts *repository.AccountRepo
	History  *repository.HistoryRepo
	Mailer   mailer.Mailer
}

func NewAccountHandler(accounts *repository.AccountRepo, history *repository.HistoryRepo, m mailer.Mailer) *AccountHandler {
	return &AccountHandler{Accounts: accounts, History: history, Mailer: m}
}

// List handles GET /v1/accounts. Filter policy, not forbid: tutors see every
// account, anyone else sees a one-element list holding themselves.
func (h *AccountHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if p.IsTutor {
		items, err := h.Accounts.ListAll(ctx)
		if err != nil {
			return internal(c, "db error")
		}
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	}
	self, err := h.Accounts.GetByUsername(ctx, p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": []model.Account{self}})
}

// Get handles GET /v1/accounts/:username. Visible to any tutor and to the
// account itself.
func (h *AccountHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	target := c.Param("username")

	a, err := h.Accounts.GetByUsername(c.Request().Context(), target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "account")
		}
		return internal(c, "db error")
	}
	if !authz.CanViewAccount(p, a.Username) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, a)
}

// Deactivate handles POST /v1/accounts/:username/deactivate. An active tutor
// may deactivate themselves or any student; tutors never deactivate other
// tutors. Deactivating a student sends the deletion-warning mail; a tutor
// deactivating themselves gets no mail.
func (h *AccountHandler) Deactivate(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	target, err := h.Accounts.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "account")
		}
		return internal(c, "db error")
	}
	if !authz.CanDeactivate(p, target) {
		return forbidden(c)
	}

	_, err = h.History.Append(ctx, model.HistoryEvent{
		AccountUsername: target.Username,
		EventType:       model.EventDeactivation,
		EventAt:         time.Now().UTC(),
	})
	if err != nil {
		return internal(c, "could not deactivate account")
	}

	if !target.IsTutor {
		mail := mailer.Mail{
			To:      target.Email,
			Subject: "Your account has been deactivated",
			HTMLBody: "<p>Your account was deactivated. It will be permanently deleted in two weeks " +
				"unless you log in before then.</p>",
		}
		if err := h.Mailer.Send(ctx, mail); err != nil {
			log.Printf("account: deactivation mail to %s failed: %v", target.Email, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deactivated"})
}
