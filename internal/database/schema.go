package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are VARCHAR columns holding RFC3339 UTC strings; uniqueness of
// usernames and emails is enforced here by the store itself, the handler-level
// pre-checks are only a fast path for friendlier error messages.
//
// The id spelling is the one point where the MySQL and sqlite dialects
// diverge, so the statements take it as a parameter.
func statements(autoInc string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			username     VARCHAR(64)  NOT NULL PRIMARY KEY,
			display_name VARCHAR(128) NOT NULL,
			email        VARCHAR(255) NOT NULL UNIQUE,
			is_active    BOOLEAN      NOT NULL DEFAULT FALSE,
			is_tutor     BOOLEAN      NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS account_settings (
			account_username VARCHAR(64)  NOT NULL PRIMARY KEY,
			password_hash    VARCHAR(128) NOT NULL,
			password_salt    VARCHAR(64)  NOT NULL,
			activation_token VARCHAR(64)  NOT NULL,
			token_expires_at VARCHAR(40)  NOT NULL,
			profile_picture  VARCHAR(255) NOT NULL DEFAULT '',
			FOREIGN KEY (account_username) REFERENCES accounts(username)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS account_history (
			id               %s,
			account_username VARCHAR(64) NOT NULL,
			event_type       VARCHAR(16) NOT NULL,
			event_at         VARCHAR(40) NOT NULL,
			FOREIGN KEY (account_username) REFERENCES accounts(username)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS courses (
			id                %s,
			tutor_username    VARCHAR(64)  NOT NULL,
			name              VARCHAR(128) NOT NULL,
			price_cents       INTEGER      NOT NULL DEFAULT 0,
			description       TEXT         NOT NULL,
			version           INTEGER      NOT NULL DEFAULT 1,
			FOREIGN KEY (tutor_username) REFERENCES accounts(username)
		)`, autoInc),
		`CREATE TABLE IF NOT EXISTS student_courses (
			student_username VARCHAR(64) NOT NULL,
			course_id        INTEGER     NOT NULL,
			frequency        VARCHAR(64) NOT NULL,
			end_date         VARCHAR(40) NOT NULL,
			version          INTEGER     NOT NULL DEFAULT 1,
			PRIMARY KEY (student_username, course_id),
			FOREIGN KEY (student_username) REFERENCES accounts(username),
			FOREIGN KEY (course_id) REFERENCES courses(id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sessions (
			id                  %s,
			student_username    VARCHAR(64) NOT NULL,
			course_id           INTEGER     NOT NULL,
			session_at          VARCHAR(40) NOT NULL,
			is_paid_for         BOOLEAN     NOT NULL DEFAULT FALSE,
			confirmation_status VARCHAR(8)  NOT NULL DEFAULT 'UNKNOWN',
			version             INTEGER     NOT NULL DEFAULT 1,
			FOREIGN KEY (student_username) REFERENCES accounts(username),
			FOREIGN KEY (course_id) REFERENCES courses(id)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS homework_assignments (
			id                %s,
			session_id        INTEGER      NOT NULL,
			name              VARCHAR(128) NOT NULL,
			objective         TEXT         NOT NULL,
			solution_file     VARCHAR(255) NULL,
			solution_feedback TEXT         NULL,
			version           INTEGER      NOT NULL DEFAULT 1,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
			id                 %s,
			sender_username    VARCHAR(64)  NOT NULL,
			recipient_username VARCHAR(64)  NOT NULL,
			topic              VARCHAR(255) NOT NULL,
			body               TEXT         NOT NULL,
			attachment_file    VARCHAR(255) NULL,
			sent_on            VARCHAR(40)  NOT NULL,
			FOREIGN KEY (sender_username) REFERENCES accounts(username),
			FOREIGN KEY (recipient_username) REFERENCES accounts(username)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS notes (
			id               %s,
			account_username VARCHAR(64) NOT NULL,
			note_date        VARCHAR(40) NOT NULL,
			body             TEXT        NOT NULL,
			version          INTEGER     NOT NULL DEFAULT 1,
			FOREIGN KEY (account_username) REFERENCES accounts(username)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS payment_records (
			id               %s,
			student_username VARCHAR(64) NOT NULL,
			tutor_username   VARCHAR(64) NOT NULL,
			amount_cents     INTEGER     NOT NULL,
			means_of_payment VARCHAR(16) NOT NULL,
			paid_on          VARCHAR(40) NOT NULL,
			version          INTEGER     NOT NULL DEFAULT 1,
			FOREIGN KEY (student_username) REFERENCES accounts(username),
			FOREIGN KEY (tutor_username) REFERENCES accounts(username)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS notifications (
			id                %s,
			account_username  VARCHAR(64) NOT NULL,
			notification_type VARCHAR(32) NOT NULL,
			message           TEXT        NOT NULL,
			created_at        VARCHAR(40) NOT NULL,
			FOREIGN KEY (account_username) REFERENCES accounts(username)
		)`, autoInc),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS teaching_materials (
			id        %s,
			course_id INTEGER      NOT NULL,
			name      VARCHAR(128) NOT NULL,
			file_name VARCHAR(255) NULL,
			version   INTEGER      NOT NULL DEFAULT 1,
			FOREIGN KEY (course_id) REFERENCES courses(id)
		)`, autoInc),
	}
}

// Migrate creates every table the application needs if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, statements("INTEGER PRIMARY KEY AUTO_INCREMENT"))
}

// MigrateSQLite applies the same schema in sqlite's dialect. Tests run the
// repositories against a temp-file sqlite database.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, statements("INTEGER PRIMARY KEY AUTOINCREMENT"))
}

func run(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
