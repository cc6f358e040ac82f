package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/authz"
	"github.com/tutorhub/tutorhub/internal/filestore"
	"github.com/tutorhub/tutorhub/internal/model"
	"github.com/tutorhub/tutorhub/internal/repository"
)

// MessageHandler implements direct messaging with an optional single
// attachment per message. Messages are immutable once sent.
type MessageHandler struct {
	Accounts *repository.AccountRepo
	Messages *repository.MessageRepo
	Files    *filestore.Store
}

func NewMessageHandler(accounts *repository.AccountRepo, messages *repository.MessageRepo, files *filestore.Store) *MessageHandler {
	return &MessageHandler{Accounts: accounts, Messages: messages, Files: files}
}

// ListReceived handles GET /v1/messages/received.
func (h *MessageHandler) ListReceived(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	items, err := h.Messages.ListReceived(c.Request().Context(), p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListSent handles GET /v1/messages/sent.
func (h *MessageHandler) ListSent(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	items, err := h.Messages.ListSent(c.Request().Context(), p.Username)
	if err != nil {
		return internal(c, "db error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/messages/:id for the sender or the recipient.
func (h *MessageHandler) Get(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	m, err := h.Messages.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "message")
		}
		return internal(c, "db error")
	}
	if !authz.CanReadMessage(p, m) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, m)
}

type messageRequest struct {
	RecipientUsername string `json:"recipient_username" form:"recipient_username"`
	Topic             string `json:"topic" form:"topic"`
	Body              string `json:"body" form:"body"`
}

// Send handles POST /v1/messages. Accepts JSON, or multipart form data when
// an attachment named "file" is included. Self-messaging is rejected; the
// recipient is notified in the same transaction as the insert.
func (h *MessageHandler) Send(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	var body messageRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	body.Topic = strings.TrimSpace(body.Topic)
	if body.RecipientUsername == "" || body.Topic == "" {
		return badRequest(c, "recipient_username and topic are required")
	}
	if !authz.CanSendMessage(p, body.RecipientUsername) {
		return badRequest(c, "you cannot send a message to yourself")
	}
	ctx := c.Request().Context()

	recipient, err := h.Accounts.GetByUsername(ctx, body.RecipientUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "recipient")
		}
		return internal(c, "db error")
	}

	var attachment *string
	if fh, ferr := c.FormFile("file"); ferr == nil {
		src, oerr := fh.Open()
		if oerr != nil {
			return internal(c, "could not read upload")
		}
		defer src.Close()
		fileID, serr := h.Files.Save(src, fh.Filename)
		if serr != nil {
			return internal(c, "could not store attachment")
		}
		attachment = &fileID
	}

	m := model.Message{
		SenderUsername:    p.Username,
		RecipientUsername: recipient.Username,
		Topic:             body.Topic,
		Body:              body.Body,
		AttachmentFile:    attachment,
		SentOn:            time.Now().UTC(),
	}
	notif := model.Notification{
		AccountUsername:  recipient.Username,
		NotificationType: model.NotifyMessageReceived,
		Message:          fmt.Sprintf("New message from %s: %s", p.Username, m.Topic),
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.Messages.Create(ctx, &m, notif); err != nil {
		if attachment != nil {
			_ = h.Files.Remove(*attachment)
		}
		return internal(c, "could not send message")
	}
	return c.JSON(http.StatusCreated, m)
}

// DownloadAttachment handles GET /v1/messages/:id/attachment for the sender
// or the recipient.
func (h *MessageHandler) DownloadAttachment(c echo.Context) error {
	p, err := principal(c, h.Accounts)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid id")
	}
	m, err := h.Messages.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "message")
		}
		return internal(c, "db error")
	}
	if !authz.CanReadMessage(p, m) {
		return forbidden(c)
	}
	if m.AttachmentFile == nil || *m.AttachmentFile == "" {
		return notFound(c, "attachment")
	}
	path, err := h.Files.Path(*m.AttachmentFile)
	if err != nil {
		return internal(c, "stored file id is invalid")
	}
	return c.Attachment(path, *m.AttachmentFile)
}
