package model

import "time"

// Account is the root entity; every other table references it by username.
// Username is the immutable identity, IsTutor is fixed at creation, and
// IsActive only gates the initial email verification. Whether an account is
// currently deactivated is derived from the latest history event, never from
// IsActive.
type Account struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsTutor     bool   `json:"is_tutor"`
}

// AccountSettings is the 1:1 credential record for an account. Only hashes are
// stored: the password as PBKDF2-SHA512 with a per-account random salt, the
// activation token as a SHA-256 digest of the raw value mailed to the user.
// ActivationToken is cleared to the empty string once consumed.
type AccountSettings struct {
	AccountUsername string
	PasswordHash    string
	PasswordSalt    string
	ActivationToken string
	TokenExpiresAt  time.Time
	ProfilePicture  string
}
