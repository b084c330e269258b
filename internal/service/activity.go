package service

import (
	"context"
	"fmt"
	"time"

	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository"
)

// ActivityService serves the read-only per-user listings.
type ActivityService struct {
	store   repository.Store
	timeout time.Duration
}

// NewActivityService creates a new ActivityService.
func NewActivityService(store repository.Store, timeout time.Duration) *ActivityService {
	return &ActivityService{store: store, timeout: timeout}
}

// CourierHistory returns the 50 newest courier requests, newest first.
func (s *ActivityService) CourierHistory(ctx context.Context, userID string) ([]*model.CourierRequest, error) {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	requests, err := s.store.ListCourierRequests(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list courier history: %w", err)
	}
	return requests, nil
}

// Coupons returns the user's coupons in catalog order.
func (s *ActivityService) Coupons(ctx context.Context, userID string) ([]*model.Coupon, error) {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	coupons, err := s.store.ListCoupons(ctx, userID, couponListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

// Notifications returns the 50 newest notifications, newest first.
func (s *ActivityService) Notifications(ctx context.Context, userID string) ([]*model.Notification, error) {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	notifications, err := s.store.ListNotifications(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification as read. A missing or foreign
// id is silently ignored.
func (s *ActivityService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.MarkNotificationRead(ctx, notificationID, userID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
