package model

import "time"

// Note is a strictly private journal entry; not even tutors may read another
// account's notes.
type Note struct {
	ID              uint64    `json:"id"`
	AccountUsername string    `json:"account_username"`
	Date            time.Time `json:"date"`
	Body            string    `json:"body"`
	Version         uint32    `json:"-"`
}
