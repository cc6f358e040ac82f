package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/mailer"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
	"github.com/tutorhub/tutorhub/internal/utils"
)

// AuthHandler implements registration, email verification and login.
type AuthHandler struct {
	Accounts *repository.AccountRepo
	History  *repository.HistoryRepo
	Mailer   mailer.Mailer

	AppURL           string
	JWTSecret        string
	TokenTTLDays     int
	ActivationTTLHrs int
}

func NewAuthHandler(accounts *repository.AccountRepo, history *repository.HistoryRepo, m mailer.Mailer, appURL, jwtSecret string, tokenTTLDays, activationTTLHrs int) *AuthHandler {
	return &AuthHandler{
		Accounts:         accounts,
		History:          history,
		Mailer:           m,
		AppURL:           appURL,
		JWTSecret:        jwtSecret,
		TokenTTLDays:     tokenTTLDays,
		ActivationTTLHrs: activationTTLHrs,
	}
}

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (r *registerRequest) validate() string {
	r.Username = strings.TrimSpace(r.Username)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	switch {
	case r.Username == "" || len(r.Username) > 64 || strings.ContainsAny(r.Username, " \t/"):
		return "username is required and may not contain spaces or slashes"
	case r.DisplayName == "":
		return "display_name is required"
	case !strings.Contains(r.Email, "@"):
		return "a valid email is required"
	case len(r.Password) < 8:
		return "password must be at least 8 characters"
	}
	return ""
}

// RegisterTutor handles POST /v1/auth/register. Anonymous; creates a tutor
// account pending email verification.
func (h *AuthHandler) RegisterTutor(c echo.Context) error {
	return h.register(c, true)
}

// RegisterStudent handles POST /v1/students. Only an authenticated tutor may
// create student accounts.
func (h *AuthHandler) RegisterStudent(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	if !p.IsTutor {
		return forbidden(c)
	}
	return h.register(c, false)
}

func (h *AuthHandler) register(c echo.Context, isTutor bool) error {
	var body registerRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := body.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx := c.Request().Context()

	// Fast-path duplicate checks for friendly messages. The unique indexes
	// remain the actual guarantee; a racing insert still lands on ErrConflict
	// below.
	if taken, err := h.Accounts.UsernameExists(ctx, body.Username); err != nil {
		return internal(c, "db error")
	} else if taken {
		return conflict(c, "username already taken")
	}
	if taken, err := h.Accounts.EmailExists(ctx, body.Email); err != nil {
		return internal(c, "db error")
	} else if taken {
		return badRequest(c, "email already registered")
	}

	act, err := utils.NewActivationToken()
	if err != nil {
		return internal(c, "token generation failed")
	}
	salt, err := utils.NewSalt()
	if err != nil {
		return internal(c, "salt generation failed")
	}

	a := model.Account{
		Username:    body.Username,
		DisplayName: body.DisplayName,
		Email:       body.Email,
		IsActive:    false,
		IsTutor:     isTutor,
	}
	hash, err := utils.HashPassword(body.Password, salt)
	if err != nil {
		return internal(c, "password hashing failed")
	}
	s := model.AccountSettings{
		AccountUsername: body.Username,
		PasswordHash:    hash,
		PasswordSalt:    salt,
		ActivationToken: act.Hash,
		TokenExpiresAt:  time.Now().UTC().Add(time.Duration(h.ActivationTTLHrs) * time.Hour),
	}
	if err := h.Accounts.Create(ctx, a, s); err != nil {
		// A racing insert slips past the fast-path checks above and lands
		// here; the store's refined conflict keeps the wording identical.
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return badRequest(c, "email already registered")
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "username already taken")
		}
		return internal(c, "could not create account")
	}

	link := fmt.Sprintf("%s/v1/auth/verify?username=%s&token=%s", h.AppURL, a.Username, act.Raw)
	mail := mailer.Mail{
		To:      a.Email,
		Subject: "Verify your email",
		HTMLBody: fmt.Sprintf("<p>Hi %s,</p><p>Confirm your address by opening <a href=%q>this link</a> within %d hours.</p>",
			a.DisplayName, link, h.ActivationTTLHrs),
	}
	if err := h.Mailer.Send(ctx, mail); err != nil {
		// Mail failures never fail registration.
		log.Printf("auth: verification mail to %s failed: %v", a.Email, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// VerifyEmail handles GET /v1/auth/verify. Presenting the raw token mailed at
// registration activates the account; activating an already-active account is
// a no-op success.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	username := c.QueryParam("username")
	token := c.QueryParam("token")
	if username == "" || token == "" {
		return badRequest(c, "username and token are required")
	}
	ctx := c.Request().Context()

	a, err := h.Accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "account")
		}
		return internal(c, "db error")
	}
	if a.IsActive {
		return c.JSON(http.StatusOK, echo.Map{"status": "already active"})
	}

	s, err := h.Accounts.GetSettings(ctx, username)
	if err != nil {
		return internal(c, "db error")
	}
	if time.Now().UTC().After(s.TokenExpiresAt) {
		return badRequest(c, "activation token expired")
	}
	if s.ActivationToken == "" || utils.HashActivationRaw(token) != s.ActivationToken {
		return badRequest(c, "invalid activation token")
	}

	if err := h.Accounts.Activate(ctx, username); err != nil {
		return internal(c, "could not activate account")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "activated"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login. A successful login on an account whose
// latest history event is a deactivation appends an activation event: logging
// in is the only path back from the deactivated state.
func (h *AuthHandler) Login(c echo.Context) error {
	var body loginRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	a, err := h.Accounts.GetByUsername(ctx, body.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return unauthorized(c, "invalid credentials")
		}
		return internal(c, "db error")
	}
	if !a.IsActive {
		return unauthorized(c, "account not verified")
	}

	s, err := h.Accounts.GetSettings(ctx, a.Username)
	if err != nil {
		return internal(c, "db error")
	}
	if !utils.VerifyPassword(s.PasswordHash, s.PasswordSalt, body.Password) {
		return unauthorized(c, "invalid credentials")
	}

	latest, err := h.History.Latest(ctx, a.Username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return internal(c, "db error")
	}
	if err == nil && latest.EventType == model.EventDeactivation {
		_, err := h.History.Append(ctx, model.HistoryEvent{
			AccountUsername: a.Username,
			EventType:       model.EventActivation,
			EventAt:         time.Now().UTC(),
		})
		if err != nil {
			return internal(c, "could not reactivate account")
		}
	}

	tok, err := utils.NewAccessToken(h.JWTSecret, a.Username, h.TokenTTLDays)
	if err != nil {
		return internal(c, "could not issue token")
	}
	return c.JSON(http.StatusOK, tok)
}
