package service

import (
	"context"

	"github.com/nitesh/lega/internal/openstates"
	"github.com/nitesh/lega/pkg/models"
)

// BillFetcher lists bills from the legislative-data provider.
type BillFetcher interface {
	FetchBills(ctx context.Context, q openstates.Query) ([]models.RawBill, error)
}

// Summarizer produces short or structured summaries of bill text.
type Summarizer interface {
	Brief(ctx context.Context, text string, sector models.Sector) (string, error)
	Structured(ctx context.Context, text string, sector models.Sector) (*models.StructuredSummary, error)
}

// BillStore persists processed bills.
type BillStore interface {
	GetBill(ctx context.Context, id string) (*models.Bill, error)
	// InsertBill reports false when the id already exists.
	InsertBill(ctx context.Context, b *models.Bill) (bool, error)
	UpsertBill(ctx context.Context, b *models.Bill) error
	ListBills(ctx context.Context, f models.FeedFilter) ([]*models.Bill, error)
}

// SubscriberStore persists push subscriptions.
type SubscriberStore interface {
	SaveSubscriber(ctx context.Context, sub *models.Subscriber) error
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	DeleteSubscriber(ctx context.Context, endpoint string) error
}

// Store is implemented by the SQL and DynamoDB stores.
type Store interface {
	BillStore
	SubscriberStore
}

// FeedCache caches rendered feed pages. Set takes the generation Get
// reported so pages read before an invalidation stay unreachable.
type FeedCache interface {
	Get(ctx context.Context, f models.FeedFilter) (items []models.FeedItem, gen int64, ok bool, err error)
	Set(ctx context.Context, f models.FeedFilter, gen int64, items []models.FeedItem) error
	Invalidate(ctx context.Context) error
}

// PushSender delivers a web push message to one subscription.
type PushSender interface {
	PublicKey() string
	Configured() bool
	Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error
}

// BillNotifier is told about every newly processed bill.
type BillNotifier interface {
	NotifyBill(ctx context.Context, b *models.Bill) int
}
