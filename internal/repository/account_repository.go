package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tutorhub/tutorhub/internal/model"
)

// AccountRepo provides persistence for accounts and their credential rows.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Create inserts the account and its settings row in one transaction. The
// unique indexes on username and email are the real uniqueness guarantee; the
// duplicate checks exposed below are only a fast path for error messages.
func (r *AccountRepo) Create(ctx context.Context, a model.Account, s model.AccountSettings) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO accounts (username, display_name, email, is_active, is_tutor) VALUES (?,?,?,?,?)",
		a.Username, a.DisplayName, a.Email, a.IsActive, a.IsTutor)
	if err != nil {
		if isDuplicate(err) {
			// Both drivers name the violated index; the email index is the
			// only unique key besides the username primary key.
			if strings.Contains(strings.ToLower(err.Error()), "email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO account_settings (account_username, password_hash, password_salt, activation_token, token_expires_at, profile_picture) VALUES (?,?,?,?,?,?)",
		s.AccountUsername, s.PasswordHash, s.PasswordSalt, s.ActivationToken, fmtTime(s.TokenExpiresAt), s.ProfilePicture)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetByUsername fetches an account; sql.ErrNoRows when absent.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	var a model.Account
	err := r.DB.QueryRowContext(ctx,
		"SELECT username, display_name, email, is_active, is_tutor FROM accounts WHERE username=? LIMIT 1",
		username).Scan(&a.Username, &a.DisplayName, &a.Email, &a.IsActive, &a.IsTutor)
	return a, err
}

// GetSettings fetches the credential row for an account.
func (r *AccountRepo) GetSettings(ctx context.Context, username string) (model.AccountSettings, error) {
	var (
		s   model.AccountSettings
		exp string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT account_username, password_hash, password_salt, activation_token, token_expires_at, profile_picture FROM account_settings WHERE account_username=? LIMIT 1",
		username).Scan(&s.AccountUsername, &s.PasswordHash, &s.PasswordSalt, &s.ActivationToken, &exp, &s.ProfilePicture)
	if err != nil {
		return s, err
	}
	s.TokenExpiresAt = parseTime(exp)
	return s, nil
}

// Activate flips is_active and clears the consumed activation token, in one
// transaction.
func (r *AccountRepo) Activate(ctx context.Context, username string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "UPDATE accounts SET is_active=? WHERE username=?", true, username); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE account_settings SET activation_token='' WHERE account_username=?", username); err != nil {
		return err
	}
	return tx.Commit()
}

// UsernameExists reports whether an account with the given username exists.
func (r *AccountRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE username=?", username).Scan(&n)
	return n > 0, err
}

// EmailExists reports whether any account uses the given email. Uniqueness is
// only enforced at creation time; later email edits are not revalidated.
func (r *AccountRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE email=?", email).Scan(&n)
	return n > 0, err
}

// ListAll returns every account, ordered by username.
func (r *AccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT username, display_name, email, is_active, is_tutor FROM accounts ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.Username, &a.DisplayName, &a.Email, &a.IsActive, &a.IsTutor); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
