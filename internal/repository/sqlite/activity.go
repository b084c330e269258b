package sqlite

import (
	"context"
	"fmt"

	"github.com/colloil/colloil/internal/model"
)

// CreateCourierRequest appends a pickup request to the user's history.
func (q *queries) CreateCourierRequest(ctx context.Context, req *model.CourierRequest) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO courier_requests (id, user_id, oil_ml, address, notes, status, courier_name, estimated_arrival, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.UserID,
		toMilliliters(req.OilLiters),
		req.Address,
		req.Notes,
		string(req.Status),
		req.CourierName,
		formatTime(req.EstimatedArrival),
		formatTime(req.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create courier request: %w", err)
	}
	return nil
}

// ListCourierRequests returns the newest requests of a user first.
func (q *queries) ListCourierRequests(ctx context.Context, userID string, limit int) ([]*model.CourierRequest, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, oil_ml, address, notes, status, courier_name, estimated_arrival, created_at
		FROM courier_requests
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courier requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*model.CourierRequest, 0)
	for rows.Next() {
		var (
			req       model.CourierRequest
			ml        int64
			status    string
			arrival   string
			createdAt string
		)
		if err := rows.Scan(&req.ID, &req.UserID, &ml, &req.Address, &req.Notes, &status,
			&req.CourierName, &arrival, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan courier request: %w", err)
		}
		req.OilLiters = fromMilliliters(ml)
		req.Status = model.CourierStatus(status)
		if req.EstimatedArrival, err = parseTime(arrival); err != nil {
			return nil, fmt.Errorf("parse estimated_arrival: %w", err)
		}
		if req.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

// CreateNotification appends a message to the user's log.
func (q *queries) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Read, formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications of a user first.
func (q *queries) ListNotifications(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*model.Notification, 0)
	for rows.Next() {
		var (
			n         model.Notification
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead sets the read flag on a notification owned by userID.
func (q *queries) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n > 0, nil
}

// GetCommunityStats counts users, sums their balances and sums all credited liters.
func (q *queries) GetCommunityStats(ctx context.Context) (*model.CommunityStats, error) {
	var (
		stats                 model.CommunityStats
		balanceML, creditedML int64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(total_oil_ml), 0) FROM users),
			(SELECT COALESCE(SUM(oil_ml), 0) FROM courier_requests)`,
	).Scan(&stats.TotalUsers, &balanceML, &creditedML)
	if err != nil {
		return nil, fmt.Errorf("failed to get community stats: %w", err)
	}
	stats.TotalOilCollected = fromMilliliters(balanceML)
	stats.TotalOilCredited = fromMilliliters(creditedML)
	return &stats, nil
}
