package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	_ "modernc.org/sqlite"

	"github.com/tutorhub/tutorhub/internal/database"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/handler"
	"github.com/tutorhub/tutorhub/internal/mailer"
	"github.com/tutorhub/tutorhub/internal/repository"
	"github.com/tutorhub/tutorhub/internal/router"
)

const testSecret = "test-secret"

// mailbox records outbound mail instead of delivering it.
type mailbox struct {
	mu    sync.Mutex
	mails []mailer.Mail
}

func (m *mailbox) Send(_ context.Context, mail mailer.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, mail)
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mails)
}

func (m *mailbox) last() mailer.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mails) == 0 {
		return mailer.Mail{}
	}
	return m.mails[len(m.mails)-1]
}

var tokenRe = regexp.MustCompile(`token=([0-9a-f]+)`)

// lastToken extracts the raw activation token from the most recent mail.
func (m *mailbox) lastToken(t *testing.T) string {
	t.Helper()
	match := tokenRe.FindStringSubmatch(m.last().HTMLBody)
	if match == nil {
		t.Fatalf("no activation token in mail body: %q", m.last().HTMLBody)
	}
	return match[1]
}

type app struct {
	e     *echo.Echo
	db    *sql.DB
	mails *mailbox
}

func newApp(t *testing.T) *app {
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

	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	mails := &mailbox{}

	notifications := repository.NewNotificationRepo(db)
	accounts := repository.NewAccountRepo(db)
	history := repository.NewHistoryRepo(db)
	courses := repository.NewCourseRepo(db)
	enrollments := repository.NewEnrollmentRepo(db)
	sessions := repository.NewSessionRepo(db, notifications)
	homework := repository.NewHomeworkRepo(db, notifications)
	messages := repository.NewMessageRepo(db, notifications)
	notes := repository.NewNoteRepo(db)
	payments := repository.NewPaymentRepo(db)
	materials := repository.NewMaterialRepo(db)

	h := router.Handlers{
		Auth:          handler.NewAuthHandler(accounts, history, mails, "http://api.test", testSecret, 7, 24),
		Accounts:      handler.NewAccountHandler(accounts, history, mails),
		History:       handler.NewHistoryHandler(accounts, history),
		Courses:       handler.NewCourseHandler(accounts, courses, enrollments, files),
		Enrollments:   handler.NewEnrollmentHandler(accounts, courses, enrollments),
		Sessions:      handler.NewSessionHandler(accounts, courses, sessions, homework, files),
		Homework:      handler.NewHomeworkHandler(accounts, courses, sessions, homework, files),
		Messages:      handler.NewMessageHandler(accounts, messages, files),
		Notes:         handler.NewNoteHandler(accounts, notes),
		Payments:      handler.NewPaymentHandler(accounts, payments),
		Materials:     handler.NewMaterialHandler(accounts, courses, enrollments, materials, files),
		Notifications: handler.NewNotificationHandler(accounts, notifications),
	}

	e := echo.New()
	router.RegisterPublic(e, h)
	router.RegisterProtected(e, h, testSecret)
	return &app{e: e, db: db, mails: mails}
}

// do issues a JSON request against the in-memory server.
func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// registerTutor registers, activates and logs in a tutor, returning the
// bearer token.
func (a *app) registerTutor(t *testing.T, username string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": username, "display_name": username, "email": username + "@example.com", "password": "password1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, rec.Code, rec.Body)
	}
	a.verify(t, username, a.mails.lastToken(t), http.StatusOK)
	return a.login(t, username, "password1")
}

// registerStudent creates a student with a tutor's token and activates them.
func (a *app) registerStudent(t *testing.T, tutorToken, username string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/v1/students", tutorToken, map[string]any{
		"username": username, "display_name": username, "email": username + "@example.com", "password": "password1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register student %s: %d %s", username, rec.Code, rec.Body)
	}
	a.verify(t, username, a.mails.lastToken(t), http.StatusOK)
	return a.login(t, username, "password1")
}

func (a *app) verify(t *testing.T, username, token string, want int) {
	t.Helper()
	rec := a.do(t, http.MethodGet, "/v1/auth/verify?username="+username+"&token="+token, "", nil)
	if rec.Code != want {
		t.Fatalf("verify %s: want %d, got %d %s", username, want, rec.Code, rec.Body)
	}
}

func (a *app) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": username, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body)
	}
	tok, _ := decode(t, rec)["token"].(string)
	if tok == "" {
		t.Fatalf("login %s: empty token", username)
	}
	return tok
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": "t1", "display_name": "Tutor", "email": "t1@example.com", "password": "password1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	raw := a.mails.lastToken(t)

	// Login before verification fails.
	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "t1", "password": "password1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("pre-verify login: want 401, got %d", rec.Code)
	}

	// Reusing the email is rejected.
	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": "t2", "display_name": "Other", "email": "t1@example.com", "password": "password1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email: want 400, got %d %s", rec.Code, rec.Body)
	}

	// Wrong token fails, correct token activates, second presentation is an
	// idempotent no-op success.
	a.verify(t, "t1", "deadbeef", http.StatusBadRequest)
	a.verify(t, "t1", raw, http.StatusOK)
	a.verify(t, "t1", raw, http.StatusOK)

	tok := a.login(t, "t1", "password1")
	if tok == "" {
		t.Fatal("no token after verification")
	}

	// Wrong password still fails.
	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "t1", "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: want 401, got %d", rec.Code)
	}
}

func TestCourseOwnership(t *testing.T) {
	a := newApp(t)
	t1 := a.registerTutor(t, "t1")
	t2 := a.registerTutor(t, "t2")
	s1 := a.registerStudent(t, t1, "s1")

	rec := a.do(t, http.MethodPost, "/v1/courses", t1, map[string]any{"name": "Algebra", "price_cents": 5000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create course: %d %s", rec.Code, rec.Body)
	}
	courseID := decode(t, rec)["id"].(float64)

	// Impersonating another tutor is Forbidden.
	rec = a.do(t, http.MethodPost, "/v1/courses", t1, map[string]any{"tutor_username": "t2", "name": "Fake"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("impersonated create: want 403, got %d", rec.Code)
	}

	// A student cannot create a course at all.
	rec = a.do(t, http.MethodPost, "/v1/courses", s1, map[string]any{"name": "Nope"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student create: want 403, got %d", rec.Code)
	}

	// Another tutor cannot update or delete it. Existence is checked first,
	// so the response is Forbidden rather than NotFound.
	path := "/v1/courses/" + itoa(courseID)
	rec = a.do(t, http.MethodPut, path, t2, map[string]any{"name": "Hijack"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("rival update: want 403, got %d %s", rec.Code, rec.Body)
	}
	rec = a.do(t, http.MethodDelete, path, t2, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("rival delete: want 403, got %d", rec.Code)
	}

	// An unenrolled student cannot read it; an enrolled one can.
	rec = a.do(t, http.MethodGet, path, s1, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unenrolled read: want 403, got %d", rec.Code)
	}
	end := time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	rec = a.do(t, http.MethodPost, "/v1/enrollments", t1, map[string]any{
		"student_username": "s1", "course_id": courseID, "frequency": "weekly", "end_date": end,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll: %d %s", rec.Code, rec.Body)
	}
	rec = a.do(t, http.MethodGet, path, s1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("enrolled read: want 200, got %d", rec.Code)
	}

	// Duplicate enrollment is a conflict.
	rec = a.do(t, http.MethodPost, "/v1/enrollments", t1, map[string]any{
		"student_username": "s1", "course_id": courseID, "frequency": "weekly", "end_date": end,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate enrollment: want 409, got %d", rec.Code)
	}
}

func TestRescheduleResetsConfirmation(t *testing.T) {
	a := newApp(t)
	t1 := a.registerTutor(t, "t1")
	s1 := a.registerStudent(t, t1, "s1")

	rec := a.do(t, http.MethodPost, "/v1/courses", t1, map[string]any{"name": "Algebra"})
	courseID := decode(t, rec)["id"].(float64)

	when := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	rec = a.do(t, http.MethodPost, "/v1/sessions", t1, map[string]any{
		"student_username": "s1", "course_id": courseID, "session_at": when,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body)
	}
	sessID := itoa(decode(t, rec)["id"].(float64))

	// A past date is rejected outright.
	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	rec = a.do(t, http.MethodPost, "/v1/sessions", t1, map[string]any{
		"student_username": "s1", "course_id": courseID, "session_at": past,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past session: want 400, got %d", rec.Code)
	}

	// The tutor cannot accept; the student can.
	rec = a.do(t, http.MethodPost, "/v1/sessions/"+sessID+"/accept", t1, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tutor accept: want 403, got %d", rec.Code)
	}
	rec = a.do(t, http.MethodPost, "/v1/sessions/"+sessID+"/accept", s1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("student accept: %d %s", rec.Code, rec.Body)
	}

	// A second decision hits the already-confirmed guard.
	rec = a.do(t, http.MethodPost, "/v1/sessions/"+sessID+"/reject", s1, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-decide: want 409, got %d", rec.Code)
	}

	// Rescheduling resets the confirmation to UNKNOWN.
	later := time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339)
	rec = a.do(t, http.MethodPut, "/v1/sessions/"+sessID, t1, map[string]any{"session_at": later})
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: %d %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["confirmation_status"]; got != "UNKNOWN" {
		t.Fatalf("confirmation after reschedule: want UNKNOWN, got %v", got)
	}

	// After the reset the student may decide again.
	rec = a.do(t, http.MethodPost, "/v1/sessions/"+sessID+"/reject", s1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-accept after reschedule: %d %s", rec.Code, rec.Body)
	}
}

func TestDeactivationRules(t *testing.T) {
	a := newApp(t)
	t1 := a.registerTutor(t, "t1")
	a.registerTutor(t, "t2")
	s1 := a.registerStudent(t, t1, "s1")

	// Tutor deactivating another tutor is Forbidden.
	rec := a.do(t, http.MethodPost, "/v1/accounts/t2/deactivate", t1, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tutor vs tutor: want 403, got %d", rec.Code)
	}

	// A student deactivates nobody.
	rec = a.do(t, http.MethodPost, "/v1/accounts/s1/deactivate", s1, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student deactivate: want 403, got %d", rec.Code)
	}

	// Deactivating a student sends the deletion-warning mail.
	before := a.mails.count()
	rec = a.do(t, http.MethodPost, "/v1/accounts/s1/deactivate", t1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate student: %d %s", rec.Code, rec.Body)
	}
	if a.mails.count() != before+1 {
		t.Fatal("student deactivation should send a warning mail")
	}

	// The student logging back in reactivates: the latest history event flips
	// to ACTIVATION.
	a.login(t, "s1", "password1")
	rec = a.do(t, http.MethodGet, "/v1/history", t1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history list: %d", rec.Code)
	}
	items := decode(t, rec)["items"].([]any)
	if len(items) < 2 {
		t.Fatalf("expected deactivation+activation events, got %d", len(items))
	}
	latest := items[0].(map[string]any)
	if latest["account_username"] != "s1" || latest["event_type"] != "ACTIVATION" {
		t.Fatalf("latest event: %#v", latest)
	}

	// Tutor self-deactivation succeeds and sends no mail.
	before = a.mails.count()
	rec = a.do(t, http.MethodPost, "/v1/accounts/t1/deactivate", t1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("self deactivate: %d %s", rec.Code, rec.Body)
	}
	if a.mails.count() != before {
		t.Fatal("tutor self-deactivation must not send mail")
	}
}

func TestNotePrivacyAndAccountFilter(t *testing.T) {
	a := newApp(t)
	t1 := a.registerTutor(t, "t1")
	s1 := a.registerStudent(t, t1, "s1")

	rec := a.do(t, http.MethodPost, "/v1/notes", s1, map[string]any{"body": "my secret"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create note: %d %s", rec.Code, rec.Body)
	}
	noteID := itoa(decode(t, rec)["id"].(float64))

	// No tutor override on notes.
	rec = a.do(t, http.MethodGet, "/v1/notes/"+noteID, t1, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tutor reads student note: want 403, got %d", rec.Code)
	}

	// Account list filters rather than forbids: the student sees only
	// themselves, the tutor sees everyone.
	rec = a.do(t, http.MethodGet, "/v1/accounts", s1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("student account list: %d", rec.Code)
	}
	if items := decode(t, rec)["items"].([]any); len(items) != 1 {
		t.Fatalf("student should see 1 account, got %d", len(items))
	}
	rec = a.do(t, http.MethodGet, "/v1/accounts", t1, nil)
	if items := decode(t, rec)["items"].([]any); len(items) != 2 {
		t.Fatalf("tutor should see 2 accounts, got %d", len(items))
	}

	// Requests without a token never reach the handlers.
	rec = a.do(t, http.MethodGet, "/v1/notes", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: want 401, got %d", rec.Code)
	}
}

func TestHomeworkSolutionUpload(t *testing.T) {
	a := newApp(t)
	t1 := a.registerTutor(t, "t1")
	s1 := a.registerStudent(t, t1, "s1")

	rec := a.do(t, http.MethodPost, "/v1/courses", t1, map[string]any{"name": "Algebra"})
	courseID := decode(t, rec)["id"].(float64)
	when := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	rec = a.do(t, http.MethodPost, "/v1/sessions", t1, map[string]any{
		"student_username": "s1", "course_id": courseID, "session_at": when,
	})
	sessID := decode(t, rec)["id"].(float64)

	rec = a.do(t, http.MethodPost, "/v1/homework", t1, map[string]any{
		"session_id": sessID, "name": "essay", "objective": "500 words",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create homework: %d %s", rec.Code, rec.Body)
	}
	hwID := itoa(decode(t, rec)["id"].(float64))

	// The tutor may not upload a solution.
	rec = a.upload(t, "/v1/homework/"+hwID+"/solution", t1, "essay.txt", "the work")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tutor upload: want 403, got %d", rec.Code)
	}

	// First student upload succeeds, second hits the write-once rule.
	rec = a.upload(t, "/v1/homework/"+hwID+"/solution", s1, "essay.txt", "the work")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}
	rec = a.upload(t, "/v1/homework/"+hwID+"/solution", s1, "essay2.txt", "revised")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second upload: want 409, got %d", rec.Code)
	}

	// Both parties can download, and the content round-trips.
	rec = a.do(t, http.MethodGet, "/v1/homework/"+hwID+"/solution", t1, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "the work" {
		t.Fatalf("download: %d %q", rec.Code, rec.Body.String())
	}

	// Deleting the session takes its homework along, solution and all.
	rec = a.do(t, http.MethodDelete, "/v1/sessions/"+itoa(sessID), t1, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete session with homework: %d %s", rec.Code, rec.Body)
	}
	rec = a.do(t, http.MethodGet, "/v1/homework/"+hwID, t1, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("homework should vanish with its session: %d", rec.Code)
	}
}

// upload posts a multipart form with a single file field.
func (a *app) upload(t *testing.T, path, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form: %v", err)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// itoa renders a JSON-decoded numeric id for use in a path.
func itoa(f float64) string {
	return strconv.FormatUint(uint64(f), 10)
}
