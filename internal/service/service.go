package service

import (
	"context"
	"time"
)

const (
	// historyLimit caps courier history and notification listings.
	historyLimit = 50
	// couponListLimit caps the coupon listing.
	couponListLimit = 100
)

// withStorageTimeout bounds a storage call. A zero timeout leaves ctx unchanged.
func withStorageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
