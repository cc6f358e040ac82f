package model

import "time"

// Accepted payment methods.
const (
	PaymentCash         = "CASH"
	PaymentBankTransfer = "BANK_TRANSFER"
	PaymentBLIK         = "BLIK"
)

// PaymentRecord documents a student-to-tutor payment. Both party usernames
// are immutable after creation; only the payment details may be edited, and
// only by the named tutor.
type PaymentRecord struct {
	ID              uint64    `json:"id"`
	StudentUsername string    `json:"student_username"`
	TutorUsername   string    `json:"tutor_username"`
	AmountCents     uint32    `json:"amount_cents"`
	MeansOfPayment  string    `json:"means_of_payment"`
	PaidOn          time.Time `json:"paid_on"`
	Version         uint32    `json:"-"`
}

// ValidMeansOfPayment reports whether s is one of the accepted methods.
func ValidMeansOfPayment(s string) bool {
	switch s {
	case PaymentCash, PaymentBankTransfer, PaymentBLIK:
		return true
	}
	return false
}
