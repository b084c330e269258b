package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
)

// CreateNotification appends a message to the user's log.
func (q *queries) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := q.db.Exec(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Read, n.CreatedAt); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications of a user first.
func (q *queries) ListNotifications(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, title, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

	rows, err := q.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return notifications, nil
}

// MarkNotificationRead sets the read flag on a notification owned by userID.
func (q *queries) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetCommunityStats counts users, sums their balances and sums all credited liters.
func (q *queries) GetCommunityStats(ctx context.Context) (*model.CommunityStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(total_oil_liters), 0)::text FROM users),
			(SELECT COALESCE(SUM(oil_liters), 0)::text FROM courier_requests)
	`

	var (
		stats             model.CommunityStats
		balances, credits string
	)
	if err := q.db.QueryRow(ctx, query).Scan(&stats.TotalUsers, &balances, &credits); err != nil {
		return nil, fmt.Errorf("failed to get community stats: %w", err)
	}

	var err error
	if stats.TotalOilCollected, err = decimal.NewFromString(balances); err != nil {
		return nil, fmt.Errorf("parse collected liters: %w", err)
	}
	if stats.TotalOilCredited, err = decimal.NewFromString(credits); err != nil {
		return nil, fmt.Errorf("parse credited liters: %w", err)
	}
	return &stats, nil
}
