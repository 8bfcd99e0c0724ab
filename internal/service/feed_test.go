package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/pkg/models"
)

func seedFeed(t *testing.T, store *memStore) {
	t.Helper()
	for _, b := range []*models.Bill{
		{BillID: "old", Title: "Old", State: "Texas", Sector: models.SectorHealthcare, Summary: models.TextSummary("plain")},
		{BillID: "new", Title: "New", State: "Ohio", Sector: models.SectorEducation, Summary: models.StructuredOf(structured("Shiny"))},
	} {
		_, err := store.InsertBill(context.Background(), b)
		require.NoError(t, err)
	}
}

func TestFeed_ListNewestFirst(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedFeed(t, store)
	f := NewFeed(store, nil, slog.Default())

	items, err := f.List(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "Shiny", items[0].Title)
	assert.Equal(t, models.ImpactHigh, items[0].ImpactScore)
	assert.Equal(t, []string{"plain"}, items[1].SummaryPoints)
}

func TestFeed_ListFilters(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedFeed(t, store)
	f := NewFeed(store, nil, slog.Default())

	items, err := f.List(context.Background(), models.FeedFilter{State: "Texas"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].ID)
}

func TestFeed_ServesFromCache(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.ListErr = errors.New("store must not be read")
	cached := []models.FeedItem{{ID: "cached"}}
	c := &mockCache{
		GetFunc: func(_ context.Context, f models.FeedFilter) ([]models.FeedItem, int64, bool, error) {
			assert.Equal(t, models.DefaultFeedLimit, f.Limit)
			return cached, 3, true, nil
		},
	}
	f := NewFeed(store, c, slog.Default())

	items, err := f.List(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	assert.Equal(t, cached, items)
}

func TestFeed_CacheMissFillsCache(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedFeed(t, store)
	var (
		stored    []models.FeedItem
		storedGen int64
	)
	c := &mockCache{
		GetFunc: func(context.Context, models.FeedFilter) ([]models.FeedItem, int64, bool, error) {
			return nil, 7, false, nil
		},
		SetFunc: func(_ context.Context, _ models.FeedFilter, gen int64, items []models.FeedItem) error {
			stored, storedGen = items, gen
			return nil
		},
	}
	f := NewFeed(store, c, slog.Default())

	items, err := f.List(context.Background(), models.FeedFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, items, stored)
	assert.Equal(t, int64(7), storedGen)
}

func TestFeed_CacheErrorsFallBackToStore(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedFeed(t, store)
	c := &mockCache{
		GetFunc: func(context.Context, models.FeedFilter) ([]models.FeedItem, int64, bool, error) {
			return nil, 0, false, errors.New("redis down")
		},
		SetFunc: func(context.Context, models.FeedFilter, int64, []models.FeedItem) error {
			t.Error("page written without a known generation")
			return nil
		},
	}
	f := NewFeed(store, c, slog.Default())

	items, err := f.List(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFeed_CacheWriteErrorIsIgnored(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedFeed(t, store)
	c := &mockCache{
		GetFunc: func(context.Context, models.FeedFilter) ([]models.FeedItem, int64, bool, error) {
			return nil, 0, false, nil
		},
		SetFunc: func(context.Context, models.FeedFilter, int64, []models.FeedItem) error {
			return errors.New("redis down")
		},
	}
	f := NewFeed(store, c, slog.Default())

	items, err := f.List(context.Background(), models.FeedFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFeed_Get(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedFeed(t, store)
	f := NewFeed(store, nil, slog.Default())

	b, err := f.Get(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "Old", b.Title)

	_, err = f.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
