//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/testutil"
)

// ============================================================================
// Store Integration Tests (PostgreSQL)
// ============================================================================

func seedIntegrationUser(t *testing.T, ctx context.Context, repo *Repository) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t)
	require.NoError(t, repo.CreateUser(ctx, user))
	return user
}

func TestIntegrationStore_CreateAndGetUser(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	got, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.TotalOilLiters.IsZero())

	_, err = repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	dup := testutil.NewTestUser(t)
	dup.Email = user.Email
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrEmailExists)
}

func TestIntegrationStore_BalanceArithmetic(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	bal, err := repo.AddOilLiters(ctx, user.ID, decimal.RequireFromString("6.5"))
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("6.5")), "got %s", bal)

	bal, err = repo.DebitOilLiters(ctx, user.ID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "debit must floor at zero, got %s", bal)

	_, err = repo.AddOilLiters(ctx, "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIntegrationStore_ConcurrentCreditsAreNotLost(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddOilLiters(ctx, user.ID, decimal.RequireFromString("1.5"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalOilLiters.Equal(decimal.NewFromInt(12)), "got %s", got.TotalOilLiters)
}

func TestIntegrationStore_CouponActivation(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	now := time.Now().UTC()
	c1, c2 := testutil.UniqueID("c1"), testutil.UniqueID("c2")
	require.NoError(t, repo.CreateCoupons(ctx, []*model.Coupon{
		{ID: c1, UserID: user.ID, PartnerName: "Hebe", DiscountPercent: 15, RequiredLiters: decimal.NewFromInt(5), Position: 0, CreatedAt: now},
		{ID: c2, UserID: user.ID, PartnerName: "Uber Eats", DiscountPercent: 10, RequiredLiters: decimal.NewFromInt(8), Position: 1, CreatedAt: now},
	}))

	coupons, err := repo.ListCoupons(ctx, user.ID, 100)
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	assert.Equal(t, "Hebe", coupons[0].PartnerName)

	_, err = repo.GetCouponForUpdate(ctx, "someone-else", c1)
	assert.ErrorIs(t, err, ErrCouponNotFound)

	code := "PG" + time.Now().Format("150405")
	expires := now.Add(model.CouponValidity)
	require.NoError(t, repo.MarkCouponActivated(ctx, c1, code, now, expires))
	assert.ErrorIs(t, repo.MarkCouponActivated(ctx, c1, "ZZZZ9999", now, expires), ErrCouponAlreadyActivated)
	assert.ErrorIs(t, repo.MarkCouponActivated(ctx, c2, code, now, expires), ErrCouponCodeExists)

	exists, err := repo.CouponCodeExists(ctx, code)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIntegrationStore_ExecTxRollsBack(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	boom := errors.New("boom")
	err := repo.ExecTx(ctx, func(q Querier) error {
		if _, err := q.AddOilLiters(ctx, user.ID, decimal.NewFromInt(10)); err != nil {
			return err
		}
		if err := q.CreateNotification(ctx, &model.Notification{
			ID: testutil.UniqueID("n"), UserID: user.ID, Title: "t", Message: "m", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalOilLiters.IsZero())

	list, err := repo.ListNotifications(ctx, user.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIntegrationStore_HistoryAndStats(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateCourierRequest(ctx, &model.CourierRequest{
			ID: testutil.UniqueID("r"), UserID: user.ID, OilLiters: decimal.NewFromInt(2),
			Address: user.Address, Status: model.CourierStatusPending, CourierName: "Anna W.",
			EstimatedArrival: base, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	requests, err := repo.ListCourierRequests(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.True(t, requests[0].CreatedAt.After(requests[1].CreatedAt))

	_, err = repo.AddOilLiters(ctx, user.ID, decimal.NewFromInt(4))
	require.NoError(t, err)

	stats, err := repo.GetCommunityStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.True(t, stats.TotalOilCollected.Equal(decimal.NewFromInt(4)), "got %s", stats.TotalOilCollected)
	assert.True(t, stats.TotalOilCredited.Equal(decimal.NewFromInt(6)), "got %s", stats.TotalOilCredited)
}

func TestIntegrationStore_SameTimestampOrdersByInsertion(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)
	user := seedIntegrationUser(t, ctx, repo)

	at := time.Now().UTC()
	ids := []string{"zz-" + testutil.UniqueID("r"), "mm-" + testutil.UniqueID("r"), "aa-" + testutil.UniqueID("r")}
	for _, id := range ids {
		require.NoError(t, repo.CreateCourierRequest(ctx, &model.CourierRequest{
			ID: id, UserID: user.ID, OilLiters: decimal.NewFromInt(1),
			Address: user.Address, Status: model.CourierStatusPending, CourierName: "Anna W.",
			EstimatedArrival: at, CreatedAt: at,
		}))
		require.NoError(t, repo.CreateNotification(ctx, &model.Notification{
			ID: id, UserID: user.ID, Title: "t", Message: "m", CreatedAt: at,
		}))
	}

	requests, err := repo.ListCourierRequests(ctx, user.ID, 50)
	require.NoError(t, err)
	require.Len(t, requests, 3)
	notifications, err := repo.ListNotifications(ctx, user.ID, 50)
	require.NoError(t, err)
	require.Len(t, notifications, 3)

	for i := range ids {
		assert.Equal(t, ids[len(ids)-1-i], requests[i].ID)
		assert.Equal(t, ids[len(ids)-1-i], notifications[i].ID)
	}
}
