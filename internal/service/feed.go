package service

import (
	"context"
	"log/slog"

	"github.com/nitesh/lega/internal/logger"
	"github.com/nitesh/lega/pkg/models"
)

// Feed serves stored bills in their presentation shape.
type Feed struct {
	store BillStore
	cache FeedCache
	log   *slog.Logger
}

// NewFeed builds a Feed. cache may be nil.
func NewFeed(store BillStore, cache FeedCache, log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{store: store, cache: cache, log: log.With("component", "feed")}
}

// List returns feed items newest first. Cache failures are logged and
// the store is read directly.
func (f *Feed) List(ctx context.Context, filter models.FeedFilter) ([]models.FeedItem, error) {
	filter = filter.Normalize()
	log := logger.FromContext(ctx, f.log)

	var (
		gen       int64
		cacheable bool
	)
	if f.cache != nil {
		items, g, ok, err := f.cache.Get(ctx, filter)
		switch {
		case err != nil:
			log.Warn("feed cache read failed", "error", err)
		case ok:
			return items, nil
		default:
			gen, cacheable = g, true
		}
	}

	bills, err := f.store.ListBills(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]models.FeedItem, 0, len(bills))
	for _, b := range bills {
		items = append(items, models.NewFeedItem(b))
	}

	if cacheable {
		if err := f.cache.Set(ctx, filter, gen, items); err != nil {
			log.Warn("feed cache write failed", "error", err)
		}
	}
	return items, nil
}

// Get returns one stored bill or domain.ErrNotFound.
func (f *Feed) Get(ctx context.Context, id string) (*models.Bill, error) {
	return f.store.GetBill(ctx, id)
}
