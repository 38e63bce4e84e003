package repository

import (
	"context"

	"github.com/tracklite-io/tracklite/internal/domain"
)

// NotificationRepository persists per-recipient alerts.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// MarkRead and MarkAllRead are recipient-scoped and idempotent.
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) error
}

type notificationRepository struct {
	db Querier
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, ticket_id, notification_type, message)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		n.RecipientID,
		n.TicketID,
		n.Type,
		n.Message,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, recipient_id, ticket_id, notification_type, message, is_read, created_at
        FROM notifications
        WHERE recipient_id=$1 AND is_read=FALSE
        ORDER BY created_at DESC, id DESC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.TicketID,
			&n.Type,
			&n.Message,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read=FALSE`
	var count int
	if err := r.db.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id string) error {
	const query = `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND recipient_id=$2`
	_, err := r.db.Exec(ctx, query, id, recipientID)
	return err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	const query = `UPDATE notifications SET is_read=TRUE WHERE recipient_id=$1 AND is_read=FALSE`
	_, err := r.db.Exec(ctx, query, recipientID)
	return err
}
