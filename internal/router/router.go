// Package router wires URL paths to handlers. Public routes carry no
// middleware beyond the global limiter; everything under the protected group
// requires a valid bearer token.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/handler"
	"github.com/tutorhub/tutorhub/internal/middleware"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Accounts      *handler.AccountHandler
	History       *handler.HistoryHandler
	Courses       *handler.CourseHandler
	Enrollments   *handler.EnrollmentHandler
	Sessions      *handler.SessionHandler
	Homework      *handler.HomeworkHandler
	Messages      *handler.MessageHandler
	Notes         *handler.NoteHandler
	Payments      *handler.PaymentHandler
	Materials     *handler.MaterialHandler
	Notifications *handler.NotificationHandler
}

// RegisterPublic mounts the routes that work without a bearer token: the
// health check, tutor self-registration, email verification and login.
func RegisterPublic(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)

	g := e.Group("/v1/auth")
	g.POST("/register", h.Auth.RegisterTutor)
	g.GET("/verify", h.Auth.VerifyEmail)
	g.POST("/login", h.Auth.Login)
}

// RegisterProtected mounts every authenticated route under /v1 behind the JWT
// middleware.
func RegisterProtected(e *echo.Echo, h Handlers, jwtSecret string) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))

	// Accounts and lifecycle.
	v1.POST("/students", h.Auth.RegisterStudent)
	v1.GET("/accounts", h.Accounts.List)
	v1.GET("/accounts/:username", h.Accounts.Get)
	v1.POST("/accounts/:username/deactivate", h.Accounts.Deactivate)
	v1.GET("/history", h.History.List)
	v1.GET("/history/:id", h.History.Get)

	// Courses and enrollments.
	v1.GET("/courses", h.Courses.List)
	v1.POST("/courses", h.Courses.Create)
	v1.GET("/courses/:id", h.Courses.Get)
	v1.PUT("/courses/:id", h.Courses.Update)
	v1.DELETE("/courses/:id", h.Courses.Delete)
	v1.GET("/enrollments", h.Enrollments.ListOwn)
	v1.POST("/enrollments", h.Enrollments.Create)
	v1.GET("/courses/:id/enrollments", h.Enrollments.ListByCourse)
	v1.GET("/courses/:id/enrollments/:student", h.Enrollments.Get)
	v1.PUT("/courses/:id/enrollments/:student", h.Enrollments.Update)
	v1.DELETE("/courses/:id/enrollments/:student", h.Enrollments.Delete)

	// Sessions and homework.
	v1.GET("/sessions", h.Sessions.List)
	v1.POST("/sessions", h.Sessions.Create)
	v1.GET("/sessions/:id", h.Sessions.Get)
	v1.PUT("/sessions/:id", h.Sessions.Update)
	v1.DELETE("/sessions/:id", h.Sessions.Delete)
	v1.POST("/sessions/:id/accept", h.Sessions.Accept)
	v1.POST("/sessions/:id/reject", h.Sessions.Reject)
	v1.GET("/homework", h.Homework.List)
	v1.POST("/homework", h.Homework.Create)
	v1.GET("/homework/:id", h.Homework.Get)
	v1.PUT("/homework/:id", h.Homework.Update)
	v1.DELETE("/homework/:id", h.Homework.Delete)
	v1.POST("/homework/:id/solution", h.Homework.UploadSolution)
	v1.GET("/homework/:id/solution", h.Homework.DownloadSolution)

	// Messaging and notifications.
	v1.GET("/messages/received", h.Messages.ListReceived)
	v1.GET("/messages/sent", h.Messages.ListSent)
	v1.POST("/messages", h.Messages.Send)
	v1.GET("/messages/:id", h.Messages.Get)
	v1.GET("/messages/:id/attachment", h.Messages.DownloadAttachment)
	v1.GET("/notifications", h.Notifications.List)
	v1.GET("/notifications/:id", h.Notifications.Get)
	v1.DELETE("/notifications/:id", h.Notifications.Delete)

	// Notes, payments, teaching materials.
	v1.GET("/notes", h.Notes.List)
	v1.POST("/notes", h.Notes.Create)
	v1.GET("/notes/:id", h.Notes.Get)
	v1.PUT("/notes/:id", h.Notes.Update)
	v1.DELETE("/notes/:id", h.Notes.Delete)
	v1.GET("/payments", h.Payments.List)
	v1.POST("/payments", h.Payments.Create)
	v1.GET("/payments/:id", h.Payments.Get)
	v1.PUT("/payments/:id", h.Payments.Update)
	v1.DELETE("/payments/:id", h.Payments.Delete)
	v1.GET("/materials", h.Materials.List)
	v1.POST("/materials", h.Materials.Create)
	v1.GET("/materials/:id", h.Materials.Get)
	v1.PUT("/materials/:id", h.Materials.Update)
	v1.DELETE("/materials/:id", h.Materials.Delete)
	v1.GET("/materials/:id/file", h.Materials.Download)
}
