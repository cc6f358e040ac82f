package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/cleanup"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/database"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/handler"
	"github.com/tutorhub/tutorhub/internal/mailer"
	appmw "github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/queue"
	"github.com/tutorhub/tutorhub/internal/repository"
	"github.com/tutorhub/tutorhub/internal/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	files, err := filestore.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("open file store: %v", err)
	}

	// Outbound mail: prefer the broker pipeline, fall back to direct SMTP,
	// then to logging only.
	var outbound mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		outbound = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPSender)
	}
	if cfg.AMQPURL != "" {
		pub, err := queue.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.Printf("email queue unavailable, sending directly: %v", err)
		} else {
			defer pub.Close()
			go queue.StartEmailConsumer(ctx, cfg.AMQPURL, outbound)
			outbound = pub
		}
	}

	notifications := repository.NewNotificationRepo(db)
	repos := struct {
		accounts    *repository.AccountRepo
		history     *repository.HistoryRepo
		courses     *repository.CourseRepo
		enrollments *repository.EnrollmentRepo
		sessions    *repository.SessionRepo
		homework    *repository.HomeworkRepo
		messages    *repository.MessageRepo
		notes       *repository.NoteRepo
		payments    *repository.PaymentRepo
		materials   *repository.MaterialRepo
		cleanup     *repository.CleanupRepo
	}{
		accounts:    repository.NewAccountRepo(db),
		history:     repository.NewHistoryRepo(db),
		courses:     repository.NewCourseRepo(db),
		enrollments: repository.NewEnrollmentRepo(db),
		sessions:    repository.NewSessionRepo(db, notifications),
		homework:    repository.NewHomeworkRepo(db, notifications),
		messages:    repository.NewMessageRepo(db, notifications),
		notes:       repository.NewNoteRepo(db),
		payments:    repository.NewPaymentRepo(db),
		materials:   repository.NewMaterialRepo(db),
		cleanup:     repository.NewCleanupRepo(db),
	}

	h := router.Handlers{
		Auth:          handler.NewAuthHandler(repos.accounts, repos.history, outbound, cfg.AppURL, cfg.JWTSecret, cfg.TokenTTLDays, cfg.ActivationTTLHrs),
		Accounts:      handler.NewAccountHandler(repos.accounts, repos.history, outbound),
		History:       handler.NewHistoryHandler(repos.accounts, repos.history),
		Courses:       handler.NewCourseHandler(repos.accounts, repos.courses, repos.enrollments, files),
		Enrollments:   handler.NewEnrollmentHandler(repos.accounts, repos.courses, repos.enrollments),
		Sessions:      handler.NewSessionHandler(repos.accounts, repos.courses, repos.sessions, repos.homework, files),
		Homework:      handler.NewHomeworkHandler(repos.accounts, repos.courses, repos.sessions, repos.homework, files),
		Messages:      handler.NewMessageHandler(repos.accounts, repos.messages, files),
		Notes:         handler.NewNoteHandler(repos.accounts, repos.notes),
		Payments:      handler.NewPaymentHandler(repos.accounts, repos.payments),
		Materials:     handler.NewMaterialHandler(repos.accounts, repos.courses, repos.enrollments, repos.materials, files),
		Notifications: handler.NewNotificationHandler(repos.accounts, notifications),
	}

	sweeper := cleanup.NewSweeper(repos.cleanup, files,
		time.Duration(cfg.CleanupIntervalHr)*time.Hour,
		time.Duration(cfg.CleanupCutoffDays)*24*time.Hour)
	go sweeper.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient()))
	router.RegisterPublic(e, h)
	router.RegisterProtected(e, h, cfg.JWTSecret)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
