package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
)

const (
	communityStatsKey = "stats:community"
	communityStatsTTL = 60 * time.Second
)

type cachedStats struct {
	TotalUsers        int64  `json:"u"`
	TotalOilCollected string `json:"l"`
	TotalOilCredited  string `json:"c"`
}

// GetCommunityStats returns the cached community totals, or nil on a miss.
func (c *Cache) GetCommunityStats(ctx context.Context) (*model.CommunityStats, error) {
	if !c.Enabled() {
		return nil, nil
	}

	data, err := c.client.Get(ctx, communityStatsKey).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedStats
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}
	collected, err := decimal.NewFromString(cached.TotalOilCollected)
	if err != nil {
		return nil, nil //nolint:nilerr
	}
	credited, err := decimal.NewFromString(cached.TotalOilCredited)
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.CommunityStats{
		TotalUsers:        cached.TotalUsers,
		TotalOilCollected: collected,
		TotalOilCredited:  credited,
	}, nil
}

// SetCommunityStats caches the community totals for a short period.
func (c *Cache) SetCommunityStats(ctx context.Context, stats *model.CommunityStats) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(cachedStats{
		TotalUsers:        stats.TotalUsers,
		TotalOilCollected: stats.TotalOilCollected.String(),
		TotalOilCredited:  stats.TotalOilCredited.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal community stats: %w", err)
	}
	return c.client.Set(ctx, communityStatsKey, data, communityStatsTTL).Err()
}

// InvalidateCommunityStats drops the cached totals after a write that changes them.
func (c *Cache) InvalidateCommunityStats(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, communityStatsKey).Err()
}
