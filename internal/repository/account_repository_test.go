package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/tutorhub/tutorhub/internal/model"
)

func TestAccountCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	exp := time.Now().UTC().Add(24 * time.Hour)
	a := model.Account{Username: "t1", DisplayName: "Tutor One", Email: "T1@Example.com", IsTutor: true}
	s := model.AccountSettings{
		AccountUsername: "t1",
		PasswordHash:    "deadbeef",
		PasswordSalt:    "cafe",
		ActivationToken: "tok-hash",
		TokenExpiresAt:  exp,
	}
	if err := repo.Create(ctx, a, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByUsername(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if got.Email != "t1@example.com" {
		t.Fatalf("email not lowercased: %q", got.Email)
	}
	if got.IsActive || !got.IsTutor {
		t.Fatalf("unexpected flags: %#v", got)
	}

	settings, err := repo.GetSettings(ctx, "t1")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.ActivationToken != "tok-hash" {
		t.Fatalf("activation token mismatch: %q", settings.ActivationToken)
	}
	if settings.TokenExpiresAt.Sub(exp).Abs() > time.Second {
		t.Fatalf("expiry round-trip drifted: want %v got %v", exp, settings.TokenExpiresAt)
	}
}

func TestAccountDuplicates(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, db, "t1", true)

	dup := model.Account{Username: "t1", DisplayName: "x", Email: "other@example.com"}
	err := repo.Create(ctx, dup, model.AccountSettings{AccountUsername: "t1"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("duplicate username: want ErrUsernameExists, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("refined username error should still match ErrConflict, got %v", err)
	}

	dup = model.Account{Username: "t2", DisplayName: "x", Email: "t1@example.com"}
	err = repo.Create(ctx, dup, model.AccountSettings{AccountUsername: "t2"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate email: want ErrEmailExists, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("refined email error should still match ErrConflict, got %v", err)
	}

	if taken, _ := repo.UsernameExists(ctx, "t1"); !taken {
		t.Fatal("UsernameExists returned false for existing account")
	}
	if taken, _ := repo.EmailExists(ctx, "T1@EXAMPLE.COM"); !taken {
		t.Fatal("EmailExists should match case-insensitively")
	}
}

func TestAccountActivateClearsToken(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	a := model.Account{Username: "s1", DisplayName: "Student", Email: "s1@example.com"}
	s := model.AccountSettings{AccountUsername: "s1", ActivationToken: "pending", TokenExpiresAt: time.Now().UTC()}
	if err := repo.Create(ctx, a, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Activate(ctx, "s1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	got, err := repo.GetByUsername(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if !got.IsActive {
		t.Fatal("account still inactive after Activate")
	}
	settings, err := repo.GetSettings(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.ActivationToken != "" {
		t.Fatalf("activation token not cleared: %q", settings.ActivationToken)
	}
}

func TestAccountGetMissing(t *testing.T) {
	db := newTestDB(t)

	_, err := NewAccountRepo(db).GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want sql.ErrNoRows, got %v", err)
	}
}
