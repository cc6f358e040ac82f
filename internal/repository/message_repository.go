package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// MessageRepo persists messages. Messages are immutable once sent; the only
// writes are the insert (paired with the recipient's notification) and the
// cascade delete.
type MessageRepo struct {
	DB            *sql.DB
	Notifications *NotificationRepo
}

func NewMessageRepo(db *sql.DB, n *NotificationRepo) *MessageRepo {
	return &MessageRepo{DB: db, Notifications: n}
}

// Create inserts a message together with the "message received" notification
// for its recipient.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message, notif model.Notification) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (sender_username, recipient_username, topic, body, attachment_file, sent_on) VALUES (?,?,?,?,?,?)",
		m.SenderUsername, m.RecipientUsername, m.Topic, m.Body, m.AttachmentFile, fmtTime(m.SentOn))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)

	if err := r.Notifications.CreateTx(ctx, tx, notif); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID fetches one message.
func (r *MessageRepo) GetByID(ctx context.Context, id uint64) (model.Message, error) {
	var (
		m  model.Message
		at string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, sender_username, recipient_username, topic, body, attachment_file, sent_on FROM messages WHERE id=? LIMIT 1",
		id).Scan(&m.ID, &m.SenderUsername, &m.RecipientUsername, &m.Topic, &m.Body, &m.AttachmentFile, &at)
	if err != nil {
		return m, err
	}
	m.SentOn = parseTime(at)
	return m, nil
}

// ListReceived returns the messages addressed to an account, newest first.
func (r *MessageRepo) ListReceived(ctx context.Context, username string) ([]model.Message, error) {
	return r.list(ctx,
		"SELECT id, sender_username, recipient_username, topic, body, attachment_file, sent_on FROM messages WHERE recipient_username=? ORDER BY sent_on DESC, id DESC",
		username)
}

// ListSent returns the messages an account sent, newest first.
func (r *MessageRepo) ListSent(ctx context.Context, username string) ([]model.Message, error) {
	return r.list(ctx,
		"SELECT id, sender_username, recipient_username, topic, body, attachment_file, sent_on FROM messages WHERE sender_username=? ORDER BY sent_on DESC, id DESC",
		username)
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m  model.Message
			at string
		)
		if err := rows.Scan(&m.ID, &m.SenderUsername, &m.RecipientUsername, &m.Topic, &m.Body, &m.AttachmentFile, &at); err != nil {
			return nil, err
		}
		m.SentOn = parseTime(at)
		out = append(out, m)
	}
	return out, rows.Err()
}
