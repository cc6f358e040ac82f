package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/tutorhub/tutorhub/internal/model"
)

func appendEvent(t *testing.T, db *sql.DB, username, eventType string, at time.Time) {
	t.Helper()
	_, err := NewHistoryRepo(db).Append(context.Background(), model.HistoryEvent{
		AccountUsername: username,
		EventType:       eventType,
		EventAt:         at,
	})
	if err != nil {
		t.Fatalf("append %s for %s: %v", eventType, username, err)
	}
}

func TestLatestEventWins(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "s1", false)
	now := time.Now().UTC()

	appendEvent(t, db, "s1", model.EventDeactivation, now.Add(-2*time.Hour))
	appendEvent(t, db, "s1", model.EventActivation, now.Add(-time.Hour))

	latest, err := NewHistoryRepo(db).Latest(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.EventType != model.EventActivation {
		t.Fatalf("want latest ACTIVATION, got %s", latest.EventType)
	}
}

func TestStaleDeactivatedCutoff(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	day := 24 * time.Hour

	// Deactivated 15 days ago: eligible.
	seedAccount(t, db, "old", false)
	appendEvent(t, db, "old", model.EventDeactivation, now.Add(-15*day))

	// Deactivated 13 days ago: inside the grace window.
	seedAccount(t, db, "recent", false)
	appendEvent(t, db, "recent", model.EventDeactivation, now.Add(-13*day))

	// Deactivated long ago but reactivated since: not eligible, the latest
	// event decides.
	seedAccount(t, db, "revived", false)
	appendEvent(t, db, "revived", model.EventDeactivation, now.Add(-20*day))
	appendEvent(t, db, "revived", model.EventActivation, now.Add(-5*day))

	// No history at all: not eligible.
	seedAccount(t, db, "fresh", false)

	stale, err := NewCleanupRepo(db).StaleDeactivated(ctx, now.Add(-14*day))
	if err != nil {
		t.Fatalf("StaleDeactivated failed: %v", err)
	}
	if len(stale) != 1 || stale[0].Username != "old" {
		t.Fatalf("want exactly [old], got %#v", stale)
	}
}

func TestDeleteAccountCascadeTutor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tutor := seedAccount(t, db, "t1", true)
	seedAccount(t, db, "s1", false)
	course := seedCourse(t, db, "t1")

	enrollments := NewEnrollmentRepo(db)
	if err := enrollments.Create(ctx, model.Enrollment{
		StudentUsername: "s1", CourseID: course.ID, Frequency: "weekly", EndDate: now.Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	notifications := NewNotificationRepo(db)
	sessions := NewSessionRepo(db, notifications)
	sess := model.Session{StudentUsername: "s1", CourseID: course.ID, SessionAt: now.Add(48 * time.Hour), ConfirmationStatus: model.ConfirmationUnknown}
	notif := model.Notification{AccountUsername: "s1", NotificationType: model.NotifySessionCreated, Message: "m", CreatedAt: now}
	if err := sessions.Create(ctx, &sess, notif); err != nil {
		t.Fatalf("create session: %v", err)
	}

	homework := NewHomeworkRepo(db, notifications)
	hw := model.HomeworkAssignment{SessionID: sess.ID, Name: "hw", Objective: "o"}
	if err := homework.Create(ctx, &hw, model.Notification{AccountUsername: "s1", NotificationType: model.NotifyHomeworkAssigned, Message: "m", CreatedAt: now}); err != nil {
		t.Fatalf("create homework: %v", err)
	}
	if err := homework.SetSolution(ctx, hw.ID, "sol.pdf", model.Notification{AccountUsername: "t1", NotificationType: model.NotifySolutionUploaded, Message: "m", CreatedAt: now}); err != nil {
		t.Fatalf("SetSolution failed: %v", err)
	}

	messages := NewMessageRepo(db, notifications)
	att := "att.png"
	msg := model.Message{SenderUsername: "s1", RecipientUsername: "t1", Topic: "hi", Body: "b", AttachmentFile: &att, SentOn: now}
	if err := messages.Create(ctx, &msg, model.Notification{AccountUsername: "t1", NotificationType: model.NotifyMessageReceived, Message: "m", CreatedAt: now}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	payments := NewPaymentRepo(db)
	pay := model.PaymentRecord{StudentUsername: "s1", TutorUsername: "t1", AmountCents: 5000, MeansOfPayment: model.PaymentCash, PaidOn: now}
	if err := payments.Create(ctx, &pay); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	notes := NewNoteRepo(db)
	note := model.Note{AccountUsername: "t1", Date: now, Body: "n"}
	if err := notes.Create(ctx, &note); err != nil {
		t.Fatalf("create note: %v", err)
	}

	materials := NewMaterialRepo(db)
	slides := "slides.pdf"
	mat := model.TeachingMaterial{CourseID: course.ID, Name: "slides", FileName: &slides}
	if err := materials.Create(ctx, &mat); err != nil {
		t.Fatalf("create material: %v", err)
	}

	appendEvent(t, db, "t1", model.EventDeactivation, now.Add(-15*24*time.Hour))

	orphans, err := NewCleanupRepo(db).DeleteAccountCascade(ctx, tutor)
	if err != nil {
		t.Fatalf("DeleteAccountCascade failed: %v", err)
	}

	// The cascade reports every stored file its deletes orphan.
	got := make(map[string]bool, len(orphans))
	for _, f := range orphans {
		got[f] = true
	}
	for _, want := range []string{"att.png", "sol.pdf", "slides.pdf"} {
		if !got[want] {
			t.Errorf("orphaned file %s not reported, got %v", want, orphans)
		}
	}

	for _, tbl := range []struct {
		table, where string
		args         []any
	}{
		{"accounts", "username=?", []any{"t1"}},
		{"account_settings", "account_username=?", []any{"t1"}},
		{"account_history", "account_username=?", []any{"t1"}},
		{"courses", "tutor_username=?", []any{"t1"}},
		{"student_courses", "course_id=?", []any{course.ID}},
		{"sessions", "course_id=?", []any{course.ID}},
		{"homework_assignments", "session_id=?", []any{sess.ID}},
		{"messages", "sender_username=? OR recipient_username=?", []any{"t1", "t1"}},
		{"payment_records", "tutor_username=?", []any{"t1"}},
		{"notes", "account_username=?", []any{"t1"}},
		{"notifications", "account_username=?", []any{"t1"}},
		{"teaching_materials", "course_id=?", []any{course.ID}},
	} {
		if n := countRows(t, db, tbl.table, tbl.where, tbl.args...); n != 0 {
			t.Errorf("%s: %d rows survived the cascade", tbl.table, n)
		}
	}

	// The student account itself survives.
	if n := countRows(t, db, "accounts", "username=?", "s1"); n != 1 {
		t.Fatalf("student account should survive, found %d rows", n)
	}
}
