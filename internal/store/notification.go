package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/eventhub/apiserver/types"
)

// NotificationRepository handles persistence for interest-alert notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts all notifications in one transaction. Duplicate
// deliveries for the same (user, event) pair are skipped, which keeps the
// alert worker idempotent across message redeliveries.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []types.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO notifications (user_id, event_id, message, read, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (user_id, event_id) DO NOTHING`

	now := time.Now()
	created := 0
	for _, notification := range notifications {
		result, err := tx.ExecContext(ctx, query, notification.UserID, notification.EventID, notification.Message, now)
		if err != nil {
			return 0, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int) ([]types.Notification, error) {
	const query = `
		SELECT id, user_id, event_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []types.Notification
	for rows.Next() {
		var notification types.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.EventID,
			&notification.Message,
			&notification.Read,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead marks the notification as read. Only the owning user may do so.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int) error {
	const query = `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
