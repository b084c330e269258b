package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/colloil/colloil/internal/cache"
	"github.com/colloil/colloil/internal/catalog"
	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository"
)

// ErrPageNotFound is returned for an unknown info page.
var ErrPageNotFound = errors.New("page not found")

// communityTitle heads the community stats response.
const communityTitle = "Community Stats"

// InfoService serves static content and community totals.
type InfoService struct {
	store   repository.Store
	catalog *catalog.Catalog
	cache   *cache.Cache
	logger  *slog.Logger
	timeout time.Duration
}

// NewInfoService creates a new InfoService.
func NewInfoService(store repository.Store, cat *catalog.Catalog, c *cache.Cache, logger *slog.Logger, timeout time.Duration) *InfoService {
	return &InfoService{
		store:   store,
		catalog: cat,
		cache:   c,
		logger:  logger.With("component", "service.info"),
		timeout: timeout,
	}
}

// CollectionPoints returns the fixed drop-off locations.
func (s *InfoService) CollectionPoints() []model.CollectionPoint {
	return s.catalog.CollectionPoints()
}

// Page returns a static info page by name.
func (s *InfoService) Page(name string) (model.InfoPage, error) {
	page, ok := s.catalog.Page(name)
	if !ok {
		return model.InfoPage{}, ErrPageNotFound
	}
	return page, nil
}

// Community is the community stats view.
type Community struct {
	Title string
	Stats model.CommunityStats
}

// Community returns user and volume totals, served from cache when fresh.
func (s *InfoService) Community(ctx context.Context) (*Community, error) {
	cached, err := s.cache.GetCommunityStats(ctx)
	if err == nil && cached != nil {
		return &Community{Title: communityTitle, Stats: *cached}, nil
	}

	dbCtx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.store.GetCommunityStats(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get community stats: %w", err)
	}

	if err := s.cache.SetCommunityStats(ctx, stats); err != nil {
		s.logger.Warn("failed to cache community stats", "error", err)
	}
	return &Community{Title: communityTitle, Stats: *stats}, nil
}
