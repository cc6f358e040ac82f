package model

import "time"

// Notification types, one per triggering mutation.
const (
	NotifySessionCreated   = "SESSION_CREATED"
	NotifySessionAccepted  = "SESSION_ACCEPTED"
	NotifySessionRejected  = "SESSION_REJECTED"
	NotifyHomeworkAssigned = "HOMEWORK_ASSIGNED"
	NotifySolutionUploaded = "HOMEWORK_SOLUTION_UPLOADED"
	NotifyMessageReceived  = "MESSAGE_RECEIVED"
)

// Notification is an ephemeral, user-deletable inbox entry persisted in the
// same transaction as the mutation that triggered it. There is no push
// channel; clients poll.
type Notification struct {
	ID               uint64    `json:"id"`
	AccountUsername  string    `json:"account_username"`
	NotificationType string    `json:"notification_type"`
	Message          string    `json:"message"`
	CreatedAt        time.Time `json:"created_at"`
}
