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

// PaymentHandler implements payment-record CRUD. Only the named tutor writes;
// both named parties read.
type PaymentHandler struct {
	Accounts *repository.AccountRepo
	Payments *repository.PaymentRepo
}

func NewPaymentHandler(accounts *repository.AccountRepo, payments *repository.PaymentRepo) *PaymentHandler {
	return &PaymentHandler{Accounts: accounts, Payments: payments}
}

// List handles GET /v1/payments, role-filtered to the caller's side of each
// record.
func (h *PaymentHandler) List(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var items []model.PaymentRecord
	if p.IsTutor {
		items, err = h.Payments.ListByTutor(ctx, p.Username)
	} else {
		items, err = h.Payments.ListByStudent(ctx, p.Username)
	}
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/payments/:id for either named party.
func (h *PaymentHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	rec, err := h.Payments.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "payment")
		}
		return internal(c, "db error")
	}
	if !authz.CanReadPayment(p, rec) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, rec)
}

type paymentRequest struct {
	StudentUsername string    `json:"student_username"`
	TutorUsername   string    `json:"tutor_username"`
	AmountCents     uint32    `json:"amount_cents"`
	MeansOfPayment  string    `json:"means_of_payment"`
	PaidOn          time.Time `json:"paid_on"`
}

// Create handles POST /v1/payments. The named tutor must be the caller.
func (h *PaymentHandler) Create(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body paymentRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.TutorUsername == "" {
		body.TutorUsername = p.Username
	}
	if !authz.CanWritePayment(p, body.TutorUsername) {
		return forbidden(c)
	}
	if !model.ValidMeansOfPayment(body.MeansOfPayment) {
		return badRequest(c, "means_of_payment must be CASH, BANK_TRANSFER or BLIK")
	}
	if body.AmountCents == 0 {
		return badRequest(c, "amount_cents must be positive")
	}
	ctx := c.Request().Context()

	student, err := h.Accounts.GetByUsername(ctx, body.StudentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "student")
		}
		return internal(c, "db error")
	}
	if student.IsTutor {
		return badRequest(c, "payments record a student paying a tutor")
	}
	if body.PaidOn.IsZero() {
		body.PaidOn = time.Now().UTC()
	}

	rec := model.PaymentRecord{
		StudentUsername: student.Username,
		TutorUsername:   body.TutorUsername,
		AmountCents:     body.AmountCents,
		MeansOfPayment:  body.MeansOfPayment,
		PaidOn:          body.PaidOn,
	}
	if err := h.Payments.Create(ctx, &rec); err != nil {
		return internal(c, "could not create payment")
	}
	return c.JSON(http.StatusCreated, rec)
}

// Update handles PUT /v1/payments/:id for the named tutor. Both parties are
// immutable; only amount, means and date can change.
func (h *PaymentHandler) Update(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	var body paymentRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()

	rec, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "payment")
		}
		return internal(c, "db error")
	}
	if !authz.CanWritePayment(p, rec.TutorUsername) {
		return forbidden(c)
	}
	if body.StudentUsername != "" && body.StudentUsername != rec.StudentUsername {
		return badRequest(c, "a payment's student cannot be changed")
	}
	if body.TutorUsername != "" && body.TutorUsername != rec.TutorUsername {
		return badRequest(c, "a payment's tutor cannot be changed")
	}
	if !model.ValidMeansOfPayment(body.MeansOfPayment) {
		return badRequest(c, "means_of_payment must be CASH, BANK_TRANSFER or BLIK")
	}
	if body.AmountCents == 0 {
		return badRequest(c, "amount_cents must be positive")
	}

	rec.AmountCents = body.AmountCents
	rec.MeansOfPayment = body.MeansOfPayment
	if !body.PaidOn.IsZero() {
		rec.PaidOn = body.PaidOn
	}
	if err := h.Payments.Update(ctx, rec); err != nil {
		return staleOrGone(c, err, "payment", func() (bool, error) {
			_, gerr := h.Payments.GetByID(ctx, id)
			if errors.Is(gerr, sql.ErrNoRows) {
				return false, nil
			}
			return gerr == nil, gerr
		})
	}
	updated, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/payments/:id for the named tutor.
func (h *PaymentHandler) Delete(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()

	rec, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "payment")
		}
		return internal(c, "db error")
	}
	if !authz.CanWritePayment(p, rec.TutorUsername) {
		return forbidden(c)
	}
	if err := h.Payments.Delete(ctx, rec.ID); err != nil {
		return internal(c, "could not delete payment")
	}
	return c.NoContent(http.StatusNoContent)
}
