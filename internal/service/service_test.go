package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloil/colloil/internal/auth"
	"github.com/colloil/colloil/internal/catalog"
	"github.com/colloil/colloil/internal/events"
	"github.com/colloil/colloil/internal/metrics"
	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository/sqlite"
)

// seqRandom replays a fixed sequence of values, each reduced modulo n.
type seqRandom struct {
	mu     sync.Mutex
	values []int
	i      int
}

func (r *seqRandom) IntN(n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.values[r.i%len(r.values)]
	r.i++
	return v % n, nil
}

type testEnv struct {
	store    *sqlite.Store
	account  *AccountService
	ledger   *LedgerService
	activity *ActivityService
	info     *InfoService
	metrics  *metrics.InMemoryRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cat, err := catalog.Load()
	require.NoError(t, err)

	tokens, err := auth.NewTokenIssuer("service-test-secret-123", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := metrics.NewInMemory()
	publisher := events.NewPublisher(nil, logger, rec)
	t.Cleanup(func() { _ = publisher.Close() })

	return &testEnv{
		store:    store,
		account:  NewAccountService(store, cat, tokens, nil, publisher, rec, logger, time.Second),
		ledger:   NewLedgerService(store, cat, nil, publisher, rec, logger, time.Second),
		activity: NewActivityService(store, time.Second),
		info:     NewInfoService(store, cat, nil, logger, time.Second),
		metrics:  rec,
	}
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()

	res, err := e.account.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: "correct horse",
		Name:     "Anna",
		Surname:  "Nowak",
		Phone:    "+48 600 000 000",
		Address:  "ul. Wolska 88, Warsaw",
	})
	require.NoError(t, err)
	return res.UserID
}

func (e *testEnv) couponFor(t *testing.T, userID, partner string) *model.Coupon {
	t.Helper()

	coupons, err := e.activity.Coupons(context.Background(), userID)
	require.NoError(t, err)
	for _, c := range coupons {
		if c.PartnerName == partner {
			return c
		}
	}
	t.Fatalf("no %s coupon for user %s", partner, userID)
	return nil
}

func (e *testEnv) balance(t *testing.T, userID string) string {
	t.Helper()

	user, err := e.account.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	return user.TotalOilLiters.String()
}

func TestRegister_SeedsCouponsAndZeroBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.account.Register(ctx, RegisterInput{
		Email:    "  Anna@Example.COM ",
		Password: "correct horse",
		Name:     "Anna",
		Surname:  "Nowak",
		Phone:    "+48 600 000 000",
		Address:  "ul. Wolska 88, Warsaw",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.UserID)

	user, err := env.account.GetProfile(ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", user.Email)
	assert.Equal(t, "Anna", user.Nickname, "nickname defaults to name")
	assert.True(t, user.TotalOilLiters.IsZero())

	coupons, err := env.activity.Coupons(ctx, res.UserID)
	require.NoError(t, err)
	require.Len(t, coupons, 4)

	names := make([]string, 0, len(coupons))
	for _, c := range coupons {
		names = append(names, c.PartnerName)
		assert.False(t, c.Activated)
		assert.Nil(t, c.Code)
		assert.Nil(t, c.ExpiresAt)
	}
	assert.Equal(t, []string{"Hebe", "Uber Eats", "Żabka", "Rossmann"}, names)
	assert.Equal(t, uint64(1), env.metrics.Snapshot().UsersRegistered)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "anna@example.com")

	_, err := env.account.Register(context.Background(), RegisterInput{
		Email:    "ANNA@example.com",
		Password: "another",
		Name:     "Anna",
		Surname:  "Nowak",
		Phone:    "+48 600 000 000",
		Address:  "ul. Wolska 88, Warsaw",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegister_RequiredFields(t *testing.T) {
	env := newTestEnv(t)

	valid := func() RegisterInput {
		return RegisterInput{
			Email:    "a@example.com",
			Password: "correct horse",
			Name:     "Anna",
			Surname:  "Nowak",
			Phone:    "+48 600 000 000",
			Address:  "ul. Wolska 88, Warsaw",
		}
	}

	tests := []struct {
		field  string
		mutate func(*RegisterInput)
	}{
		{"email", func(in *RegisterInput) { in.Email = "  " }},
		{"name", func(in *RegisterInput) { in.Name = "" }},
		{"surname", func(in *RegisterInput) { in.Surname = "" }},
		{"phone", func(in *RegisterInput) { in.Phone = " " }},
		{"address", func(in *RegisterInput) { in.Address = "" }},
		{"password", func(in *RegisterInput) { in.Password = "" }},
		{"password", func(in *RegisterInput) { in.Password = strings.Repeat("x", auth.MaxPasswordLength+1) }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			_, err := env.account.Register(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, uint64(0), env.metrics.Snapshot().UsersRegistered)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	res, err := env.account.Login(ctx, "Anna@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, userID, res.UserID)
	assert.NotEmpty(t, res.Token)

	_, wrongPassword := env.account.Login(ctx, "anna@example.com", "wrong")
	_, unknownEmail := env.account.Login(ctx, "nobody@example.com", "correct horse")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, uint64(2), env.metrics.Snapshot().LoginsFailed)

	coupons, err := env.activity.Coupons(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, coupons, 4, "login must not seed coupons")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	phone := "+48 111 222 333"
	nickname := "oilqueen"
	user, err := env.account.UpdateProfile(ctx, userID, model.ProfilePatch{Phone: &phone, Nickname: &nickname})
	require.NoError(t, err)
	assert.Equal(t, phone, user.Phone)
	assert.Equal(t, nickname, user.Nickname)
	assert.Equal(t, "Nowak", user.Surname)
	assert.Equal(t, "anna@example.com", user.Email)

	unchanged, err := env.account.UpdateProfile(ctx, userID, model.ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, nickname, unchanged.Nickname)

	_, err = env.account.UpdateProfile(ctx, "missing", model.ProfilePatch{Phone: &phone})
	assert.ErrorIs(t, err, ErrUserNotFound)

	exists, err := env.account.UserExists(ctx, userID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = env.account.UserExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedger_CreditThenRedeem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	env.ledger.now = func() time.Time { return now }

	_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 6})
	require.NoError(t, err)
	assert.Equal(t, "6", env.balance(t, userID))

	uber := env.couponFor(t, userID, "Uber Eats")

	_, err = env.ledger.ActivateCoupon(ctx, userID, uber.ID)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "8", insufficient.Required.String())
	assert.Equal(t, "6", insufficient.Current.String())
	assert.Equal(t, "6", env.balance(t, userID), "failed activation must not debit")

	_, err = env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 3})
	require.NoError(t, err)
	assert.Equal(t, "9", env.balance(t, userID))

	activation, err := env.ledger.ActivateCoupon(ctx, userID, uber.ID)
	require.NoError(t, err)
	assert.True(t, ValidateCouponCode(activation.Code), "code %q", activation.Code)
	assert.Equal(t, now.Add(14*24*time.Hour), activation.ExpiresAt)
	assert.Equal(t, "1", activation.Balance.String())
	assert.Equal(t, "1", env.balance(t, userID))

	got := env.couponFor(t, userID, "Uber Eats")
	assert.True(t, got.Activated)
	require.NotNil(t, got.Code)
	assert.Equal(t, activation.Code, *got.Code)

	_, err = env.ledger.ActivateCoupon(ctx, userID, uber.ID)
	assert.ErrorIs(t, err, ErrCouponAlreadyActivated)

	notifications, err := env.activity.Notifications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notifications, 3)
	assert.Equal(t, "Coupon activated!", notifications[0].Title)
	assert.Contains(t, notifications[0].Message, activation.Code)
	assert.Contains(t, notifications[0].Message, "Uber Eats 10%")

	snap := env.metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.CourierRequests)
	assert.Equal(t, int64(9000), snap.MillilitersCredited)
	assert.Equal(t, uint64(1), snap.CouponsActivated)
	assert.Equal(t, uint64(1), snap.CouponsInsufficient)
	assert.Equal(t, uint64(1), snap.CouponsRejected)
}

func TestActivateCoupon_DebitFloorsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 5})
	require.NoError(t, err)

	activation, err := env.ledger.ActivateCoupon(ctx, userID, env.couponFor(t, userID, "Hebe").ID)
	require.NoError(t, err)
	assert.True(t, activation.Balance.IsZero())
	assert.Equal(t, "0", env.balance(t, userID))
}

func TestActivateCoupon_ForeignOrMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "anna@example.com")
	other := env.register(t, "piotr@example.com")

	_, err := env.ledger.RequestCourier(ctx, other, CourierInput{OilLiters: 50})
	require.NoError(t, err)

	_, err = env.ledger.ActivateCoupon(ctx, other, env.couponFor(t, owner, "Hebe").ID)
	assert.ErrorIs(t, err, ErrCouponNotFound)

	_, err = env.ledger.ActivateCoupon(ctx, other, "does-not-exist")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestActivateCoupon_CodeRetriesExhaustedRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 20})
	require.NoError(t, err)

	env.ledger.random = &seqRandom{values: []int{0}}

	first, err := env.ledger.ActivateCoupon(ctx, userID, env.couponFor(t, userID, "Hebe").ID)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", first.Code)

	_, err = env.ledger.ActivateCoupon(ctx, userID, env.couponFor(t, userID, "Żabka").ID)
	assert.ErrorIs(t, err, errCodeRetriesExhausted)

	assert.Equal(t, "15", env.balance(t, userID))
	assert.False(t, env.couponFor(t, userID, "Żabka").Activated)
}

func TestRequestCourier_Details(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	env.ledger.now = func() time.Time { return now }
	// courier index 2, then hours offset 1 -> 2 hours
	env.ledger.random = &seqRandom{values: []int{2, 1}}

	req, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 2.5, Notes: " back door "})
	require.NoError(t, err)
	assert.Equal(t, "Piotr B.", req.CourierName)
	assert.Equal(t, now.Add(2*time.Hour), req.EstimatedArrival)
	assert.Equal(t, "ul. Wolska 88, Warsaw", req.Address, "falls back to the stored address")
	assert.Equal(t, "back door", req.Notes)
	assert.Equal(t, model.CourierStatusPending, req.Status)
	assert.Equal(t, "2.5", req.OilLiters.String())

	req, err = env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 1, Address: "ul. Targowa 72"})
	require.NoError(t, err)
	assert.Equal(t, "ul. Targowa 72", req.Address)

	history, err := env.activity.CourierHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, req.ID, history[0].ID)

	notifications, err := env.activity.Notifications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "Courier on the way!", notifications[1].Title)
	assert.Equal(t, "Courier Piotr B. will arrive in about 2 hours.", notifications[1].Message)
}

func TestRequestCourier_InvalidLiters(t *testing.T) {
	env := newTestEnv(t)
	userID := env.register(t, "anna@example.com")

	tests := []struct {
		name   string
		liters float64
	}{
		{"zero", 0},
		{"negative", -1},
		{"sub-milliliter", 0.0004},
		{"too large", DefaultMaxLitersPerRequest + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.RequestCourier(context.Background(), userID, CourierInput{OilLiters: tt.liters})
			assert.ErrorIs(t, err, ErrInvalidLiters)
		})
	}

	assert.Equal(t, "0", env.balance(t, userID))
}

func TestRequestCourier_ConfiguredCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	env.ledger.SetMaxLitersPerRequest(20)

	_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 20.5})
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "must be at most 20", invalid.Message)

	_, err = env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 20})
	require.NoError(t, err)
	assert.Equal(t, "20", env.balance(t, userID))
}

func TestRequestCourier_MillilitersAccumulateExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	for i := 0; i < 3; i++ {
		_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 0.0006})
		assert.ErrorIs(t, err, ErrInvalidLiters)
	}
	for i := 0; i < 3; i++ {
		_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 0.001})
		require.NoError(t, err)
	}
	assert.Equal(t, "0.003", env.balance(t, userID))
}

func TestActivity_SameInstantNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	env.ledger.now = func() time.Time { return now }

	var ids []string
	for _, liters := range []float64{1, 2, 3, 4} {
		req, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: liters})
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}

	history, err := env.activity.CourierHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, req := range history {
		assert.Equal(t, ids[len(ids)-1-i], req.ID)
	}

	_, err = env.ledger.ActivateCoupon(ctx, userID, env.couponFor(t, userID, "Hebe").ID)
	require.NoError(t, err)

	notifications, err := env.activity.Notifications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notifications, 5)
	assert.Equal(t, "Coupon activated!", notifications[0].Title)
	for _, n := range notifications[1:] {
		assert.Equal(t, "Courier on the way!", n.Title)
	}
}

func TestRequestCourier_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.RequestCourier(context.Background(), "ghost", CourierInput{OilLiters: 1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedger_ConcurrentCreditsSum(t *testing.T) {
	env := newTestEnv(t)
	userID := env.register(t, "anna@example.com")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.RequestCourier(context.Background(), userID, CourierInput{OilLiters: 0.5})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, "10", env.balance(t, userID))
}

func TestLedger_ConcurrentActivationSucceedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.register(t, "anna@example.com")

	_, err := env.ledger.RequestCourier(ctx, userID, CourierInput{OilLiters: 20})
	require.NoError(t, err)
	couponID := env.couponFor(t, userID, "Hebe").ID

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.ActivateCoupon(ctx, userID, couponID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCouponAlreadyActivated):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 4, conflicts)
	assert.Equal(t, "15", env.balance(t, userID))
}

func TestActivity_MarkNotificationRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "anna@example.com")
	other := env.register(t, "piotr@example.com")

	_, err := env.ledger.RequestCourier(ctx, owner, CourierInput{OilLiters: 1})
	require.NoError(t, err)

	list, err := env.activity.Notifications(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	require.NoError(t, env.activity.MarkNotificationRead(ctx, other, id))
	require.NoError(t, env.activity.MarkNotificationRead(ctx, owner, "missing"))

	list, err = env.activity.Notifications(ctx, owner)
	require.NoError(t, err)
	assert.False(t, list[0].Read, "foreign caller must not mutate")

	require.NoError(t, env.activity.MarkNotificationRead(ctx, owner, id))
	require.NoError(t, env.activity.MarkNotificationRead(ctx, owner, id))

	list, err = env.activity.Notifications(ctx, owner)
	require.NoError(t, err)
	assert.True(t, list[0].Read)
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Len(t, env.info.CollectionPoints(), 5)

	page, err := env.info.Page(catalog.PageBiodiesel)
	require.NoError(t, err)
	assert.Equal(t, "What is Biodiesel?", page.Title)

	_, err = env.info.Page("missing")
	assert.ErrorIs(t, err, ErrPageNotFound)

	a := env.register(t, "anna@example.com")
	env.register(t, "piotr@example.com")
	_, err = env.ledger.RequestCourier(ctx, a, CourierInput{OilLiters: 4})
	require.NoError(t, err)

	community, err := env.info.Community(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Community Stats", community.Title)
	assert.Equal(t, int64(2), community.Stats.TotalUsers)
	assert.Equal(t, "4", community.Stats.TotalOilCollected.String())
	assert.Equal(t, "4", community.Stats.TotalOilCredited.String())
	assert.Equal(t, "10", community.Stats.CO2SavedKg().String())

	_, err = env.ledger.RequestCourier(ctx, a, CourierInput{OilLiters: 2})
	require.NoError(t, err)
	_, err = env.ledger.ActivateCoupon(ctx, a, env.couponFor(t, a, "Hebe").ID)
	require.NoError(t, err)

	community, err = env.info.Community(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", community.Stats.TotalOilCollected.String(), "redeemed liters leave the balance sum")
	assert.Equal(t, "6", community.Stats.TotalOilCredited.String())
	assert.Equal(t, "2.5", community.Stats.CO2SavedKg().String())
}
