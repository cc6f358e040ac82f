package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// PaymentRepo persists payment records. The student and tutor columns are
// written once at insert; Update touches only the payment details.
type PaymentRepo struct{ DB *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

// Create inserts a payment record and populates its generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.PaymentRecord) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO payment_records (student_username, tutor_username, amount_cents, means_of_payment, paid_on) VALUES (?,?,?,?,?)",
		p.StudentUsername, p.TutorUsername, p.AmountCents, p.MeansOfPayment, fmtTime(p.PaidOn))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Version = 1
	return nil
}

// GetByID fetches one payment record.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.PaymentRecord, error) {
	var (
		p  model.PaymentRecord
		at string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, student_username, tutor_username, amount_cents, means_of_payment, paid_on, version FROM payment_records WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.StudentUsername, &p.TutorUsername, &p.AmountCents, &p.MeansOfPayment, &at, &p.Version)
	if err != nil {
		return p, err
	}
	p.PaidOn = parseTime(at)
	return p, nil
}

// ListByTutor returns payments received by one tutor.
func (r *PaymentRepo) ListByTutor(ctx context.Context, tutor string) ([]model.PaymentRecord, error) {
	return r.list(ctx,
		"SELECT id, student_username, tutor_username, amount_cents, means_of_payment, paid_on, version FROM payment_records WHERE tutor_username=? ORDER BY paid_on DESC, id DESC",
		tutor)
}

// ListByStudent returns payments made by one student.
func (r *PaymentRepo) ListByStudent(ctx context.Context, student string) ([]model.PaymentRecord, error) {
	return r.list(ctx,
		"SELECT id, student_username, tutor_username, amount_cents, means_of_payment, paid_on, version FROM payment_records WHERE student_username=? ORDER BY paid_on DESC, id DESC",
		student)
}

// Update rewrites amount, means and date under the optimistic version. The
// parties are deliberately absent from the SET list.
func (r *PaymentRepo) Update(ctx context.Context, p model.PaymentRecord) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE payment_records SET amount_cents=?, means_of_payment=?, paid_on=?, version=version+1 WHERE id=? AND version=?",
		p.AmountCents, p.MeansOfPayment, fmtTime(p.PaidOn), p.ID, p.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes a payment record row.
func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM payment_records WHERE id=?", id)
	return err
}

func (r *PaymentRepo) list(ctx context.Context, query string, args ...any) ([]model.PaymentRecord, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PaymentRecord
	for rows.Next() {
		var (
			p  model.PaymentRecord
			at string
		)
		if err := rows.Scan(&p.ID, &p.StudentUsername, &p.TutorUsername, &p.AmountCents, &p.MeansOfPayment, &at, &p.Version); err != nil {
			return nil, err
		}
		p.PaidOn = parseTime(at)
		out = append(out, p)
	}
	return out, rows.Err()
}
