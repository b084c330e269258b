package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
)

// CreateCourierRequest appends a pickup request to the user's history.
func (q *queries) CreateCourierRequest(ctx context.Context, req *model.CourierRequest) error {
	query := `
		INSERT INTO courier_requests (id, user_id, oil_liters, address, notes, status, courier_name, estimated_arrival, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.db.Exec(ctx, query,
		req.ID,
		req.UserID,
		req.OilLiters.String(),
		req.Address,
		req.Notes,
		string(req.Status),
		req.CourierName,
		req.EstimatedArrival,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create courier request: %w", err)
	}
	return nil
}

// ListCourierRequests returns the newest requests of a user first.
func (q *queries) ListCourierRequests(ctx context.Context, userID string, limit int) ([]*model.CourierRequest, error) {
	query := `
		SELECT id, user_id, oil_liters::text, address, notes, status, courier_name, estimated_arrival, created_at
		FROM courier_requests
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

	rows, err := q.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list courier requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*model.CourierRequest, 0)
	for rows.Next() {
		var (
			req    model.CourierRequest
			liters string
			status string
		)
		if err := rows.Scan(
			&req.ID,
			&req.UserID,
			&liters,
			&req.Address,
			&req.Notes,
			&status,
			&req.CourierName,
			&req.EstimatedArrival,
			&req.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan courier request: %w", err)
		}
		if req.OilLiters, err = decimal.NewFromString(liters); err != nil {
			return nil, fmt.Errorf("parse oil liters: %w", err)
		}
		req.Status = model.CourierStatus(status)
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return requests, nil
}
