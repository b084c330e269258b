package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository"
)

const couponColumns = `id, user_id, partner_name, partner_logo, discount_percent, required_ml,
	activated, code, activated_at, expires_at, position, created_at`

// CreateCoupons inserts coupons one row at a time; callers run it inside ExecTx.
func (q *queries) CreateCoupons(ctx context.Context, coupons []*model.Coupon) error {
	for _, c := range coupons {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO coupons (id, user_id, partner_name, partner_logo, discount_percent, required_ml, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID,
			c.UserID,
			c.PartnerName,
			c.PartnerLogo,
			c.DiscountPercent,
			toMilliliters(c.RequiredLiters),
			c.Position,
			formatTime(c.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create coupon %s: %w", c.PartnerName, err)
		}
	}
	return nil
}

// GetCouponForUpdate retrieves a coupon owned by userID.
func (q *queries) GetCouponForUpdate(ctx context.Context, userID, couponID string) (*model.Coupon, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = ? AND user_id = ?`,
		couponID, userID,
	)
	coupon, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

// CouponCodeExists checks whether a redemption code has been issued.
func (q *queries) CouponCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coupon code: %w", err)
	}
	return exists, nil
}

// MarkCouponActivated performs the pending -> activated transition.
func (q *queries) MarkCouponActivated(ctx context.Context, couponID, code string, activatedAt, expiresAt time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE coupons
		SET activated = 1, code = ?, activated_at = ?, expires_at = ?
		WHERE id = ? AND activated = 0`,
		code, formatTime(activatedAt), formatTime(expiresAt), couponID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrCouponCodeExists
		}
		return fmt.Errorf("failed to activate coupon: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to activate coupon: %w", err)
	}
	if n == 0 {
		return repository.ErrCouponAlreadyActivated
	}
	return nil
}

// ListCoupons returns a user's coupons in catalog order.
func (q *queries) ListCoupons(ctx context.Context, userID string, limit int) ([]*model.Coupon, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = ? ORDER BY position, id LIMIT ?`,
		userID, limit,
	)
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
	return coupons, rows.Err()
}

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var (
		c           model.Coupon
		requiredML  int64
		code        sql.NullString
		activatedAt sql.NullString
		expiresAt   sql.NullString
		createdAt   string
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.PartnerName,
		&c.PartnerLogo,
		&c.DiscountPercent,
		&requiredML,
		&c.Activated,
		&code,
		&activatedAt,
		&expiresAt,
		&c.Position,
		&createdAt,
	); err != nil {
		return nil, err
	}

	c.RequiredLiters = fromMilliliters(requiredML)
	if code.Valid {
		c.Code = &code.String
	}

	var err error
	if c.ActivatedAt, err = parseNullTime(activatedAt); err != nil {
		return nil, fmt.Errorf("parse activated_at: %w", err)
	}
	if c.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &c, nil
}
