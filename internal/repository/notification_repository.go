package repository

import (
	"context"
	"database/sql"

	"github.com/tutorhub/tutorhub/internal/model"
)

// NotificationRepo persists inbox notifications. CreateTx exists so that the
// repositories performing a triggering mutation can insert the notification
// inside the same transaction; the two writes succeed or fail together.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// CreateTx inserts a notification within an existing transaction.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx *sql.Tx, n model.Notification) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO notifications (account_username, notification_type, message, created_at) VALUES (?,?,?,?)",
		n.AccountUsername, n.NotificationType, n.Message, fmtTime(n.CreatedAt))
	return err
}

// ListByAccount returns an account's notifications, newest first.
func (r *NotificationRepo) ListByAccount(ctx context.Context, username string) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, account_username, notification_type, message, created_at FROM notifications WHERE account_username=? ORDER BY created_at DESC, id DESC",
		username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n  model.Notification
			at string
		)
		if err := rows.Scan(&n.ID, &n.AccountUsername, &n.NotificationType, &n.Message, &at); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTime(at)
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetByID fetches a single notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id uint64) (model.Notification, error) {
	var (
		n  model.Notification
		at string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, account_username, notification_type, message, created_at FROM notifications WHERE id=? LIMIT 1",
		id).Scan(&n.ID, &n.AccountUsername, &n.NotificationType, &n.Message, &at)
	if err != nil {
		return n, err
	}
	n.CreatedAt = parseTime(at)
	return n, nil
}

// Delete removes a notification row.
func (r *NotificationRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM notifications WHERE id=?", id)
	return err
}
