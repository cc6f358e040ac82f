// Package handler implements the HTTP surface. One handler struct per entity
// bundles the repositories it needs; authorization is delegated to the pure
// predicates in internal/authz after the entity has been loaded, so Forbidden
// and NotFound stay distinct responses.
package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// Error response helpers. Every failure carries a human-readable "error" and
// a stable machine code in "code".

func errJSON(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

func badRequest(c echo.Context, msg string) error {
	return errJSON(c, http.StatusBadRequest, "bad_request", msg)
}

func unauthorized(c echo.Context, msg string) error {
	return errJSON(c, http.StatusUnauthorized, "unauthorized", msg)
}

func forbidden(c echo.Context) error {
	return errJSON(c, http.StatusForbidden, "forbidden", "not permitted")
}

func notFound(c echo.Context, what string) error {
	return errJSON(c, http.StatusNotFound, "not_found", what+" not found")
}

func conflict(c echo.Context, msg string) error {
	return errJSON(c, http.StatusConflict, "conflict", msg)
}

func internal(c echo.Context, msg string) error {
	return errJSON(c, http.StatusInternalServerError, "internal", msg)
}

// principal resolves the authenticated caller against the accounts table. The
// token only proves identity; role and existence are read fresh on every
// request, so a deleted account's leftover token stops working immediately.
func principal(c echo.Context, accounts *repository.AccountRepo) (authz.Principal, error) {
	username, _ := c.Get("username").(string)
	if username == "" {
		return authz.Principal{}, unauthorized(c, "missing identity")
	}
	a, err := accounts.GetByUsername(c.Request().Context(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authz.Principal{}, unauthorized(c, "unknown account")
		}
		return authz.Principal{}, internal(c, "db error")
	}
	return authz.Principal{Username: a.Username, IsTutor: a.IsTutor}, nil
}

// pathID parses the numeric :id (or other named) path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// staleOrGone normalizes an optimistic-concurrency miss uniformly across
// handlers: re-check whether the row still exists, report NotFound when it is
// gone and Conflict when it merely changed. Any other error surfaces as
// Internal.
func staleOrGone(c echo.Context, err error, what string, exists func() (bool, error)) error {
	if !errors.Is(err, repository.ErrConflict) {
		return internal(c, "db error")
	}
	ok, eerr := exists()
	if eerr != nil {
		return internal(c, "db error")
	}
	if !ok {
		return notFound(c, what)
	}
	return conflict(c, what+" was modified concurrently")
}
