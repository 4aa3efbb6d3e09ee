package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

func TestCatalogShowsOnlyEligibleItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)

	visible := f.listed(t, owner, 40)
	_, err := f.items.Create(ctx, owner.ID, itemInput("Pending shirt", 10))
	require.NoError(t, err)
	removed := f.listed(t, owner, 20)
	require.NoError(t, f.items.Remove(ctx, removed.ID, owner))
	swapped := f.listed(t, owner, 30)
	swap, err := f.swaps.Create(ctx, pointsSwap(requester, swapped, 30))
	require.NoError(t, err)
	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)
	_, err = f.swaps.Complete(ctx, swap.ID, owner.ID)
	require.NoError(t, err)

	items, err := f.catalog.List(ctx, CatalogQuery{}, repository.Page{Limit: 20})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, visible.ID, items[0].ID)
	for _, item := range items {
		require.True(t, item.IsEligible())
	}
}

func TestExpiryBoundaryAgreesAcrossReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	item := f.listed(t, owner, 40)

	f.clock.Advance(models.DefaultItemTTL)
	items, err := f.catalog.List(ctx, CatalogQuery{}, repository.Page{Limit: 20})
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = f.items.Get(ctx, item.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Nanosecond)
	items, err = f.catalog.List(ctx, CatalogQuery{}, repository.Page{Limit: 20})
	require.NoError(t, err)
	require.Empty(t, items)
	_, err = f.items.Get(ctx, item.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)

	cheap := f.listed(t, owner, 10)
	f.clock.Advance(time.Minute)
	mid := f.listed(t, owner, 50)
	f.clock.Advance(time.Minute)
	in := itemInput("Leather boots", 90)
	in.Category = "shoes"
	in.Type = "other"
	in.Color = "brown"
	in.Tags = []string{"leather"}
	boots, err := f.items.Create(ctx, owner.ID, in)
	require.NoError(t, err)
	_, err = f.items.Approve(ctx, boots.ID)
	require.NoError(t, err)

	ids := func(items []models.Item) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.ID)
		}
		return out
	}
	page := repository.Page{Limit: 20}

	newest, err := f.catalog.List(ctx, CatalogQuery{}, page)
	require.NoError(t, err)
	require.Equal(t, []string{boots.ID, mid.ID, cheap.ID}, ids(newest))

	byPoints, err := f.catalog.List(ctx, CatalogQuery{Sort: repository.SortPointsAsc}, page)
	require.NoError(t, err)
	require.Equal(t, []string{cheap.ID, mid.ID, boots.ID}, ids(byPoints))

	ranged, err := f.catalog.List(ctx, CatalogQuery{MinPoints: 20, MaxPoints: 60}, page)
	require.NoError(t, err)
	require.Equal(t, []string{mid.ID}, ids(ranged))

	shoes, err := f.catalog.List(ctx, CatalogQuery{Category: "shoes", Color: "BROWN"}, page)
	require.NoError(t, err)
	require.Equal(t, []string{boots.ID}, ids(shoes))

	paged, err := f.catalog.List(ctx, CatalogQuery{}, repository.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, []string{cheap.ID}, ids(paged))

	_, err = f.catalog.List(ctx, CatalogQuery{Sort: "random"}, page)
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.catalog.List(ctx, CatalogQuery{MinPoints: 70, MaxPoints: 60}, page)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	jacket := f.listed(t, owner, 40)

	found, err := f.catalog.Search(ctx, "denim jacket", CatalogQuery{}, repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, jacket.ID, found[0].ID)

	found, err = f.catalog.Search(ctx, "tuxedo", CatalogQuery{}, repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = f.catalog.Search(ctx, "   ", CatalogQuery{}, repository.Page{Limit: 10})
	require.ErrorIs(t, err, ErrValidation)
}

func TestFeaturedUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	item := f.listed(t, owner, 40)
	f.listed(t, owner, 50)

	_, err := f.items.ToggleFeatured(ctx, item.ID)
	require.NoError(t, err)

	featured, err := f.catalog.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	require.Equal(t, item.ID, featured[0].ID)
	require.Equal(t, 1, f.featured.sets)

	_, err = f.catalog.Featured(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.featured.sets)

	// A cached entry that expired since it was stored is filtered out.
	f.clock.Advance(models.DefaultItemTTL + time.Hour)
	featured, err = f.catalog.Featured(ctx)
	require.NoError(t, err)
	require.Empty(t, featured)
}
