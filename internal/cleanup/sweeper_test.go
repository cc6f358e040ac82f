package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tutorhub/tutorhub/internal/database"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "tutorhub.db")+"?_pragma=foreign_keys(1)")
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

func seed(t *testing.T, db *sql.DB, username string, events ...model.HistoryEvent) {
	t.Helper()
	ctx := context.Background()
	accounts := repository.NewAccountRepo(db)
	history := repository.NewHistoryRepo(db)

	err := accounts.Create(ctx, model.Account{
		Username: username, DisplayName: username, Email: username + "@example.com", IsActive: true,
	}, model.AccountSettings{
		AccountUsername: username, PasswordHash: "x", PasswordSalt: "x",
		ActivationToken: "", TokenExpiresAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	for _, ev := range events {
		ev.AccountUsername = username
		if _, err := history.Append(ctx, ev); err != nil {
			t.Fatalf("seed history for %s: %v", username, err)
		}
	}
}

func exists(t *testing.T, db *sql.DB, username string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM accounts WHERE username=?", username).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n > 0
}

func TestSweepDeletesOnlyStaleDeactivations(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	seed(t, db, "old", model.HistoryEvent{EventType: model.EventDeactivation, EventAt: now.Add(-15 * 24 * time.Hour)})
	seed(t, db, "recent", model.HistoryEvent{EventType: model.EventDeactivation, EventAt: now.Add(-13 * 24 * time.Hour)})
	seed(t, db, "revived",
		model.HistoryEvent{EventType: model.EventDeactivation, EventAt: now.Add(-20 * 24 * time.Hour)},
		model.HistoryEvent{EventType: model.EventActivation, EventAt: now.Add(-5 * 24 * time.Hour)})
	seed(t, db, "fresh")

	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	att, err := files.Save(strings.NewReader("img"), "att.png")
	if err != nil {
		t.Fatalf("save attachment: %v", err)
	}
	msg := model.Message{SenderUsername: "old", RecipientUsername: "fresh", Topic: "hi", Body: "b", AttachmentFile: &att, SentOn: now}
	notifications := repository.NewNotificationRepo(db)
	if err := repository.NewMessageRepo(db, notifications).Create(context.Background(), &msg,
		model.Notification{AccountUsername: "fresh", NotificationType: model.NotifyMessageReceived, Message: "m", CreatedAt: now}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	s := NewSweeper(repository.NewCleanupRepo(db), files, time.Hour, 14*24*time.Hour)
	s.Sweep(context.Background())

	if exists(t, db, "old") {
		t.Error("account deactivated past the cutoff should be deleted")
	}
	for _, u := range []string{"recent", "revived", "fresh"} {
		if !exists(t, db, u) {
			t.Errorf("account %s should survive the sweep", u)
		}
	}

	// The deleted account's message attachment goes with it.
	path, err := files.Path(att)
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("orphaned attachment still stored: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db := newTestDB(t)
	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	s := NewSweeper(repository.NewCleanupRepo(db), files, 10*time.Millisecond, 14*24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
