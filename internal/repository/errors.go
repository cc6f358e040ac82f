// Package repository implements data access on database/sql. Sentinel errors
// let handlers translate failures without inspecting driver details: absence
// is reported as sql.ErrNoRows, ErrConflict covers both duplicate keys and
// stale optimistic-version writes.
package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConflict is returned when an insert hits a unique key or an update was
// made against a stale version of the row. Handlers re-check existence to
// decide between 404 and 409.
var ErrConflict = errors.New("conflict")

// ErrUsernameExists and ErrEmailExists refine ErrConflict for registration so
// the handler can word the response without a second lookup. Both match
// errors.Is(err, ErrConflict).
var (
	ErrUsernameExists = fmt.Errorf("username already exists: %w", ErrConflict)
	ErrEmailExists    = fmt.Errorf("email already exists: %w", ErrConflict)
)

// isDuplicate detects unique-key violations for both the MySQL driver
// (error 1062) and the sqlite driver used in tests.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}

// Timestamps are stored as RFC3339 UTC text so that every query behaves the
// same on MySQL and on the sqlite test database, and so that ORDER BY and
// range comparisons on timestamp columns are plain string operations. The
// layout keeps a fixed-width fraction; trimming trailing zeros would break
// lexicographic ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
