package model

import "time"

// Message is a sender-to-recipient note with at most one attachment.
// Self-messaging is forbidden at creation time.
type Message struct {
	ID                uint64    `json:"id"`
	SenderUsername    string    `json:"sender_username"`
	RecipientUsername string    `json:"recipient_username"`
	Topic             string    `json:"topic"`
	Body              string    `json:"body"`
	AttachmentFile    *string   `json:"attachment_file,omitempty"`
	SentOn            time.Time `json:"sent_on"`
}
