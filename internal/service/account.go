package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/auth"
	"github.com/colloil/colloil/internal/cache"
	"github.com/colloil/colloil/internal/catalog"
	"github.com/colloil/colloil/internal/events"
	"github.com/colloil/colloil/internal/metrics"
	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository"
)

// AccountService handles registration, login and profile management.
type AccountService struct {
	store   repository.Store
	catalog *catalog.Catalog
	tokens  *auth.TokenIssuer
	cache   *cache.Cache
	events  *events.Publisher
	metrics metrics.Recorder
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	store repository.Store,
	cat *catalog.Catalog,
	tokens *auth.TokenIssuer,
	c *cache.Cache,
	publisher *events.Publisher,
	recorder metrics.Recorder,
	logger *slog.Logger,
	timeout time.Duration,
) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		store:   store,
		catalog: cat,
		tokens:  tokens,
		cache:   c,
		events:  publisher,
		metrics: recorder,
		logger:  logger.With("component", "service.account"),
		timeout: timeout,
		now:     time.Now,
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Surname  string
	Phone    string
	Address  string
	Nickname string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a zero balance, seeds the partner coupons in
// the same transaction and issues a token.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}
	for _, f := range []struct{ field, value string }{
		{"name", input.Name},
		{"surname", input.Surname},
		{"phone", input.Phone},
		{"address", input.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, &ValidationError{Field: f.field, Message: "is required"}
		}
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmptyPassword):
			return nil, &ValidationError{Field: "password", Message: "is required"}
		case errors.Is(err, auth.ErrPasswordTooLong):
			return nil, &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordLength)}
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		nickname = input.Name
	}

	now := s.now().UTC()
	user := &model.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		Name:           input.Name,
		Surname:        input.Surname,
		Phone:          input.Phone,
		Address:        input.Address,
		Nickname:       nickname,
		TotalOilLiters: decimal.Zero,
		CreatedAt:      now,
	}
	coupons := seedCoupons(user.ID, s.catalog.Partners(), now)

	txCtx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	err = s.store.ExecTx(txCtx, func(q repository.Querier) error {
		if err := q.CreateUser(txCtx, user); err != nil {
			return err
		}
		return q.CreateCoupons(txCtx, coupons)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncUserRegistered()
	if err := s.cache.InvalidateCommunityStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate community stats", "error", err)
	}
	s.events.PublishAsync(events.New(events.TypeUserRegistered, user.ID, now, map[string]any{
		"coupons_seeded": len(coupons),
	}))

	return &AuthResult{Token: token, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// seedCoupons builds the pending coupon set for a new user in catalog order.
func seedCoupons(userID string, partners []catalog.Partner, now time.Time) []*model.Coupon {
	coupons := make([]*model.Coupon, 0, len(partners))
	for i, p := range partners {
		coupons = append(coupons, &model.Coupon{
			ID:              uuid.NewString(),
			UserID:          userID,
			PartnerName:     p.Name,
			PartnerLogo:     p.Logo,
			DiscountPercent: p.DiscountPercent,
			RequiredLiters:  p.Required(),
			Position:        i,
			CreatedAt:       now,
		})
	}
	return coupons
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeTiming runs a password check against a throwaway hash so unknown
// emails cost as much as wrong passwords.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("colloil-timing-equalizer")
	})
	if dummyHash != "" {
		_, _ = auth.VerifyPassword(password, dummyHash)
	}
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	lookupCtx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.GetUserByEmail(lookupCtx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			equalizeTiming(password)
			s.metrics.IncLoginFailed()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.metrics.IncLoginFailed()
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// GetProfile returns the user record.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial profile update and returns the updated user.
// An empty patch returns the current profile unchanged.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (*model.User, error) {
	if patch.IsEmpty() {
		return s.GetProfile(ctx, userID)
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.UpdateUserProfile(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// UserExists reports whether a token subject still has an account.
func (s *AccountService) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := s.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
