package model

import "time"

// Account history event types.
const (
	EventActivation   = "ACTIVATION"
	EventDeactivation = "DEACTIVATION"
)

// HistoryEvent is an append-only log entry recording activation and
// deactivation of an account. The most recent event decides whether the
// account is live; rows are never updated and only removed when the account
// itself is cascade-deleted.
type HistoryEvent struct {
	ID              uint64    `json:"id"`
	AccountUsername string    `json:"account_username"`
	EventType       string    `json:"event_type"`
	EventAt         time.Time `json:"event_at"`
}
