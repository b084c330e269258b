package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailExists            = errors.New("email already exists")
	ErrCouponNotFound         = errors.New("coupon not found")
	ErrCouponAlreadyActivated = errors.New("coupon already activated")
	ErrCouponCodeExists       = errors.New("coupon code already exists")
)

// Querier is the set of operations available both on a store and inside a transaction.
// Methods suffixed ForUpdate lock the returned row until the transaction ends.
type Querier interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserForUpdate(ctx context.Context, id string) (*model.User, error)

	// AddOilLiters atomically increments the balance and returns the new value.
	AddOilLiters(ctx context.Context, userID string, liters decimal.Decimal) (decimal.Decimal, error)
	// DebitOilLiters atomically decrements the balance, floored at zero, and returns the new value.
	DebitOilLiters(ctx context.Context, userID string, liters decimal.Decimal) (decimal.Decimal, error)

	CreateCoupons(ctx context.Context, coupons []*model.Coupon) error
	GetCouponForUpdate(ctx context.Context, userID, couponID string) (*model.Coupon, error)
	CouponCodeExists(ctx context.Context, code string) (bool, error)
	// MarkCouponActivated flips a pending coupon to activated.
	// Returns ErrCouponAlreadyActivated if the coupon was not pending.
	MarkCouponActivated(ctx context.Context, couponID, code string, activatedAt, expiresAt time.Time) error

	CreateCourierRequest(ctx context.Context, req *model.CourierRequest) error
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Store is the persistence contract used by the services.
type Store interface {
	Querier

	// ExecTx runs fn in a transaction. The transaction commits if fn returns nil
	// and rolls back otherwise.
	ExecTx(ctx context.Context, fn func(q Querier) error) error

	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error)

	ListCourierRequests(ctx context.Context, userID string, limit int) ([]*model.CourierRequest, error)
	ListCoupons(ctx context.Context, userID string, limit int) ([]*model.Coupon, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	// MarkNotificationRead reports whether a notification owned by userID was found.
	MarkNotificationRead(ctx context.Context, id, userID string) (bool, error)

	GetCommunityStats(ctx context.Context) (*model.CommunityStats, error)

	Ping(ctx context.Context) error
	Close() error
}
