package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
)

const couponColumns = `id, user_id, partner_name, partner_logo, discount_percent, required_liters::text,
	activated, code, activated_at, expires_at, position, created_at`

// CreateCoupons inserts a batch of coupons with a single statement.
func (q *queries) CreateCoupons(ctx context.Context, coupons []*model.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	n := len(coupons)
	ids := make([]string, n)
	userIDs := make([]string, n)
	names := make([]string, n)
	logos := make([]string, n)
	discounts := make([]int64, n)
	required := make([]string, n)
	positions := make([]int64, n)
	createdAt := make([]string, n)

	for i, c := range coupons {
		ids[i] = c.ID
		userIDs[i] = c.UserID
		names[i] = c.PartnerName
		logos[i] = c.PartnerLogo
		discounts[i] = int64(c.DiscountPercent)
		required[i] = c.RequiredLiters.String()
		positions[i] = int64(c.Position)
		createdAt[i] = c.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
		INSERT INTO coupons (id, user_id, partner_name, partner_logo, discount_percent, required_liters, position, created_at)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::text[],
			$5::int[], $6::numeric[], $7::int[], $8::timestamptz[]
		)
	`

	_, err := q.db.Exec(ctx, query,
		pq.Array(ids),
		pq.Array(userIDs),
		pq.Array(names),
		pq.Array(logos),
		pq.Array(discounts),
		pq.Array(required),
		pq.Array(positions),
		pq.Array(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create coupons: %w", err)
	}

	return nil
}

// GetCouponForUpdate retrieves a coupon owned by userID and locks it.
// A coupon owned by another user is reported as not found.
func (q *queries) GetCouponForUpdate(ctx context.Context, userID, couponID string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 AND user_id = $2 FOR UPDATE`

	coupon, err := scanCoupon(q.db.QueryRow(ctx, query, couponID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

// CouponCodeExists checks whether a redemption code has been issued.
func (q *queries) CouponCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coupon code: %w", err)
	}
	return exists, nil
}

// MarkCouponActivated performs the pending -> activated transition.
func (q *queries) MarkCouponActivated(ctx context.Context, couponID, code string, activatedAt, expiresAt time.Time) error {
	query := `
		UPDATE coupons
		SET activated = TRUE, code = $2, activated_at = $3, expires_at = $4
		WHERE id = $1 AND activated = FALSE
	`

	tag, err := q.db.Exec(ctx, query, couponID, code, activatedAt, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCouponCodeExists
		}
		return fmt.Errorf("failed to activate coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponAlreadyActivated
	}
	return nil
}

// ListCoupons returns a user's coupons in catalog order.
func (q *queries) ListCoupons(ctx context.Context, userID string, limit int) ([]*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE user_id = $1 ORDER BY position, id LIMIT $2`

	rows, err := q.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := make([]*model.Coupon, 0, 4)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return coupons, nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c        model.Coupon
		required string
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.PartnerName,
		&c.PartnerLogo,
		&c.DiscountPercent,
		&required,
		&c.Activated,
		&c.Code,
		&c.ActivatedAt,
		&c.ExpiresAt,
		&c.Position,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.RequiredLiters, err = decimal.NewFromString(required)
	if err != nil {
		return nil, fmt.Errorf("parse required liters: %w", err)
	}
	return &c, nil
}
