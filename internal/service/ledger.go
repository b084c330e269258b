package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/cache"
	"github.com/colloil/colloil/internal/catalog"
	"github.com/colloil/colloil/internal/events"
	"github.com/colloil/colloil/internal/metrics"
	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository"
)

// DefaultMaxLitersPerRequest bounds a single pickup unless overridden.
const DefaultMaxLitersPerRequest = 1000

const (
	// litersPrecision is the number of decimal places accepted for oil volumes.
	litersPrecision = 3

	minArrivalHours = 1
	maxArrivalHours = 3
)

// LedgerService owns the two balance mutators: courier credits and coupon debits.
type LedgerService struct {
	store   repository.Store
	catalog *catalog.Catalog
	cache   *cache.Cache
	events  *events.Publisher
	metrics metrics.Recorder
	logger  *slog.Logger
	timeout time.Duration
	random  RandomSource
	now     func() time.Time

	maxLiters decimal.Decimal
}

// NewLedgerService creates a new LedgerService using crypto randomness and the wall clock.
func NewLedgerService(
	store repository.Store,
	cat *catalog.Catalog,
	c *cache.Cache,
	publisher *events.Publisher,
	recorder metrics.Recorder,
	logger *slog.Logger,
	timeout time.Duration,
) *LedgerService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LedgerService{
		store:   store,
		catalog: cat,
		cache:   c,
		events:  publisher,
		metrics: recorder,
		logger:  logger.With("component", "service.ledger"),
		timeout: timeout,
		random:  CryptoRandom{},
		now:     time.Now,

		maxLiters: decimal.NewFromInt(DefaultMaxLitersPerRequest),
	}
}

// SetMaxLitersPerRequest changes the per-pickup ceiling. Non-positive values are ignored.
func (s *LedgerService) SetMaxLitersPerRequest(max float64) {
	if max > 0 && !math.IsInf(max, 0) {
		s.maxLiters = decimal.NewFromFloat(max)
	}
}

// CourierInput defines input for a pickup request.
type CourierInput struct {
	OilLiters float64
	Address   string
	Notes     string
}

// NormalizeLiters converts a liter amount to an exact decimal. Amounts finer
// than a milliliter are rejected rather than rounded so that the balance is
// always the exact sum of the accepted requests.
func NormalizeLiters(v float64, max decimal.Decimal) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return decimal.Zero, invalidLiters("must be a positive number")
	}
	liters := decimal.NewFromFloat(v)
	if !liters.Equal(liters.Truncate(litersPrecision)) {
		return decimal.Zero, invalidLiters(fmt.Sprintf("must have at most %d decimal places", litersPrecision))
	}
	if liters.GreaterThan(max) {
		return decimal.Zero, invalidLiters("must be at most " + max.String())
	}
	return liters, nil
}

// RequestCourier records a pickup request, credits the liters to the user's
// balance and notifies the user, all in one transaction.
func (s *LedgerService) RequestCourier(ctx context.Context, userID string, input CourierInput) (*model.CourierRequest, error) {
	liters, err := NormalizeLiters(input.OilLiters, s.maxLiters)
	if err != nil {
		return nil, err
	}

	courier, err := pick(s.random, s.catalog.Couriers())
	if err != nil {
		return nil, fmt.Errorf("pick courier: %w", err)
	}
	hours, err := intBetween(s.random, minArrivalHours, maxArrivalHours)
	if err != nil {
		return nil, fmt.Errorf("pick arrival window: %w", err)
	}

	now := s.now().UTC()
	req := &model.CourierRequest{
		ID:               newULID(now),
		UserID:           userID,
		OilLiters:        liters,
		Notes:            strings.TrimSpace(input.Notes),
		Status:           model.CourierStatusPending,
		CourierName:      courier,
		EstimatedArrival: now.Add(time.Duration(hours) * time.Hour),
		CreatedAt:        now,
	}
	notification := &model.Notification{
		ID:        newULID(now),
		UserID:    userID,
		Title:     "Courier on the way!",
		Message:   fmt.Sprintf("Courier %s will arrive in about %s.", courier, pluralHours(hours)),
		CreatedAt: now,
	}

	txCtx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	var balance decimal.Decimal
	start := time.Now()
	err = s.store.ExecTx(txCtx, func(q repository.Querier) error {
		user, err := q.GetUserByID(txCtx, userID)
		if err != nil {
			return err
		}
		req.Address = strings.TrimSpace(input.Address)
		if req.Address == "" {
			req.Address = user.Address
		}

		if err := q.CreateCourierRequest(txCtx, req); err != nil {
			return err
		}
		if balance, err = q.AddOilLiters(txCtx, userID, liters); err != nil {
			return err
		}
		return q.CreateNotification(txCtx, notification)
	})
	s.metrics.ObserveLedgerTxDuration(time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to request courier: %w", err)
	}

	s.metrics.IncCourierRequested()
	s.metrics.AddLitersCredited(liters.Shift(litersPrecision).IntPart())
	if err := s.cache.InvalidateCommunityStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate community stats", "error", err)
	}
	s.events.PublishAsync(events.New(events.TypeCourierRequested, userID, now, map[string]any{
		"request_id":   req.ID,
		"oil_liters":   liters.InexactFloat64(),
		"balance":      balance.InexactFloat64(),
		"courier_name": courier,
	}))

	return req, nil
}

// Activation is the result of a successful coupon activation.
type Activation struct {
	CouponID        string
	PartnerName     string
	DiscountPercent int
	Code            string
	ExpiresAt       time.Time
	Balance         decimal.Decimal
}

// ActivateCoupon redeems a pending coupon: it checks eligibility, issues a
// unique code, marks the coupon activated, debits the balance and notifies
// the user, all in one transaction.
func (s *LedgerService) ActivateCoupon(ctx context.Context, userID, couponID string) (*Activation, error) {
	now := s.now().UTC()

	txCtx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	var result *Activation
	start := time.Now()
	err := s.store.ExecTx(txCtx, func(q repository.Querier) error {
		coupon, err := q.GetCouponForUpdate(txCtx, userID, couponID)
		if err != nil {
			return err
		}
		if coupon.Activated {
			return repository.ErrCouponAlreadyActivated
		}

		user, err := q.GetUserForUpdate(txCtx, userID)
		if err != nil {
			return err
		}
		if !coupon.IsEligible(user.TotalOilLiters) {
			return &InsufficientBalanceError{Required: coupon.RequiredLiters, Current: user.TotalOilLiters}
		}

		code, err := s.uniqueCode(txCtx, q)
		if err != nil {
			return err
		}
		expiresAt := now.Add(model.CouponValidity)

		if err := q.MarkCouponActivated(txCtx, coupon.ID, code, now, expiresAt); err != nil {
			return err
		}
		balance, err := q.DebitOilLiters(txCtx, userID, coupon.RequiredLiters)
		if err != nil {
			return err
		}

		err = q.CreateNotification(txCtx, &model.Notification{
			ID:     newULID(now),
			UserID: userID,
			Title:  "Coupon activated!",
			Message: fmt.Sprintf("Your %s %d%% discount coupon is active. Code: %s",
				coupon.PartnerName, coupon.DiscountPercent, code),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		result = &Activation{
			CouponID:        coupon.ID,
			PartnerName:     coupon.PartnerName,
			DiscountPercent: coupon.DiscountPercent,
			Code:            code,
			ExpiresAt:       expiresAt,
			Balance:         balance,
		}
		return nil
	})
	s.metrics.ObserveLedgerTxDuration(time.Since(start))

	if err != nil {
		var insufficient *InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			s.metrics.IncCouponActivation(metrics.ActivationInsufficient)
			return nil, insufficient
		case errors.Is(err, repository.ErrCouponNotFound):
			s.metrics.IncCouponActivation(metrics.ActivationRejected)
			return nil, ErrCouponNotFound
		case errors.Is(err, repository.ErrCouponAlreadyActivated):
			s.metrics.IncCouponActivation(metrics.ActivationRejected)
			return nil, ErrCouponAlreadyActivated
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to activate coupon: %w", err)
	}

	s.metrics.IncCouponActivation(metrics.ActivationSuccess)
	if err := s.cache.InvalidateCommunityStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate community stats", "error", err)
	}
	s.events.PublishAsync(events.New(events.TypeCouponActivated, userID, now, map[string]any{
		"coupon_id":        result.CouponID,
		"partner_name":     result.PartnerName,
		"discount_percent": result.DiscountPercent,
		"code":             result.Code,
		"balance":          result.Balance.InexactFloat64(),
	}))

	return result, nil
}

// uniqueCode generates a redemption code not yet issued to any coupon.
func (s *LedgerService) uniqueCode(ctx context.Context, q repository.Querier) (string, error) {
	for i := 0; i < maxCodeRetries; i++ {
		code, err := GenerateCouponCode(s.random)
		if err != nil {
			return "", err
		}
		exists, err := q.CouponCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errCodeRetriesExhausted
}

// newULID returns a time-sortable id stamped with t.
func newULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

func pluralHours(n int) string {
	if n == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", n)
}
