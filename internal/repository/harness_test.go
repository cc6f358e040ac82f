package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tutorhub/tutorhub/internal/database"
	"github.com/tutorhub/tutorhub/internal/model"
)

// newTestDB opens a temp-file sqlite database carrying the full schema, with
// foreign keys enforced to match the production store. The single-connection
// pool keeps sqlite's writer locking out of the way.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "tutorhub.db") + "?_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.MigrateSQLite(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedAccount inserts an account with a throwaway credential row.
func seedAccount(t *testing.T, db *sql.DB, username string, isTutor bool) model.Account {
	t.Helper()

	a := model.Account{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		IsActive:    true,
		IsTutor:     isTutor,
	}
	s := model.AccountSettings{
		AccountUsername: username,
		PasswordHash:    "hash",
		PasswordSalt:    "salt",
		ActivationToken: "",
		TokenExpiresAt:  time.Now().UTC(),
	}
	if err := NewAccountRepo(db).Create(context.Background(), a, s); err != nil {
		t.Fatalf("seed account %s: %v", username, err)
	}
	return a
}

// seedCourse inserts a course owned by the given tutor.
func seedCourse(t *testing.T, db *sql.DB, tutor string) model.Course {
	t.Helper()

	c := model.Course{TutorUsername: tutor, Name: "Algebra", PriceCents: 5000, Description: "weekly"}
	if err := NewCourseRepo(db).Create(context.Background(), &c); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

func countRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	var n int
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
