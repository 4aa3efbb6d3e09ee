package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"swapmarket/internal/cache"
	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

// CatalogService is the public read path. Everything it returns satisfies
// the eligibility predicate at the time of the call.
type CatalogService struct {
	items         repository.ItemRepository
	featured      cache.FeaturedCache
	featuredLimit int
	now           func() time.Time
	log           zerolog.Logger
}

func NewCatalogService(items repository.ItemRepository, featured cache.FeaturedCache, featuredLimit int, now func() time.Time, log zerolog.Logger) *CatalogService {
	if now == nil {
		now = time.Now
	}
	if featured == nil {
		featured = cache.NoFeatured{}
	}
	if featuredLimit <= 0 {
		featuredLimit = 12
	}
	return &CatalogService{
		items:         items,
		featured:      featured,
		featuredLimit: featuredLimit,
		now:           now,
		log:           log,
	}
}

type CatalogQuery struct {
	Category  string
	Size      string
	Condition string
	Brand     string
	Color     string
	MinPoints int
	MaxPoints int
	Sort      string
}

func (q CatalogQuery) filter(now time.Time) (repository.ItemFilter, error) {
	switch q.Sort {
	case "", repository.SortNewest, repository.SortOldest, repository.SortPointsAsc,
		repository.SortPointsDesc, repository.SortViews:
	default:
		return repository.ItemFilter{}, validationf("unknown sort %q", q.Sort)
	}
	if q.MinPoints < 0 || q.MaxPoints < 0 || (q.MaxPoints > 0 && q.MinPoints > q.MaxPoints) {
		return repository.ItemFilter{}, validationf("invalid points range")
	}
	return repository.ItemFilter{
		Category:   q.Category,
		Size:       q.Size,
		Condition:  q.Condition,
		Brand:      strings.TrimSpace(q.Brand),
		Color:      strings.TrimSpace(q.Color),
		MinPoints:  q.MinPoints,
		MaxPoints:  q.MaxPoints,
		Sort:       q.Sort,
		OnlyActive: true,
		Now:        now,
	}, nil
}

func (s *CatalogService) List(ctx context.Context, query CatalogQuery, page repository.Page) ([]models.Item, error) {
	now := s.now()
	filter, err := query.filter(now)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter, page, now)
}

func (s *CatalogService) Search(ctx context.Context, text string, query CatalogQuery, page repository.Page) ([]models.Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationf("search query is required")
	}
	now := s.now()
	filter, err := query.filter(now)
	if err != nil {
		return nil, err
	}
	filter.Query = text
	return s.list(ctx, filter, page, now)
}

// Featured returns featured items, newest first, from the cache when it
// is warm.
func (s *CatalogService) Featured(ctx context.Context) ([]models.Item, error) {
	now := s.now()
	items, err := s.featured.Get(ctx)
	switch {
	case err == nil:
		return eligibleOnly(items, now), nil
	case !errors.Is(err, cache.ErrMiss):
		s.log.Warn().Err(err).Msg("featured cache read failed")
	}
	return s.WarmFeatured(ctx)
}

// WarmFeatured reloads the featured listing into the cache.
func (s *CatalogService) WarmFeatured(ctx context.Context) ([]models.Item, error) {
	now := s.now()
	items, err := s.list(ctx, repository.ItemFilter{
		Featured:   true,
		OnlyActive: true,
		Now:        now,
		Sort:       repository.SortNewest,
	}, repository.Page{Limit: s.featuredLimit}, now)
	if err != nil {
		return nil, err
	}
	if err := s.featured.Set(ctx, items); err != nil {
		s.log.Warn().Err(err).Msg("featured cache write failed")
	}
	return items, nil
}

func (s *CatalogService) list(ctx context.Context, filter repository.ItemFilter, page repository.Page, now time.Time) ([]models.Item, error) {
	items, err := s.items.List(ctx, filter, page)
	if err != nil {
		return nil, translate(err)
	}
	return eligibleOnly(items, now), nil
}

// eligibleOnly applies the lifecycle rules and drops anything that is no
// longer eligible. The store filters too; this guards against clock skew
// and stale cache entries.
func eligibleOnly(items []models.Item, now time.Time) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		item.Normalize(now)
		if item.IsEligible() {
			out = append(out, item)
		}
	}
	return out
}
