package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/internal/openstates"
	"github.com/nitesh/lega/pkg/models"
)

// ---------------------------------------------------------------------------
// Manual mocks (func fields)
// ---------------------------------------------------------------------------

type mockFetcher struct {
	FetchBillsFunc func(ctx context.Context, q openstates.Query) ([]models.RawBill, error)
}

func (m *mockFetcher) FetchBills(ctx context.Context, q openstates.Query) ([]models.RawBill, error) {
	return m.FetchBillsFunc(ctx, q)
}

type mockSummarizer struct {
	BriefFunc      func(ctx context.Context, text string, sector models.Sector) (string, error)
	StructuredFunc func(ctx context.Context, text string, sector models.Sector) (*models.StructuredSummary, error)
}

func (m *mockSummarizer) Brief(ctx context.Context, text string, sector models.Sector) (string, error) {
	return m.BriefFunc(ctx, text, sector)
}

func (m *mockSummarizer) Structured(ctx context.Context, text string, sector models.Sector) (*models.StructuredSummary, error) {
	return m.StructuredFunc(ctx, text, sector)
}

type mockSynth struct {
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)
}

func (m *mockSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return m.SynthesizeFunc(ctx, text)
}

type mockUploader struct {
	UploadFunc func(ctx context.Context, name string, data []byte) (string, error)
}

func (m *mockUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	return m.UploadFunc(ctx, name, data)
}

type mockCache struct {
	GetFunc        func(ctx context.Context, f models.FeedFilter) ([]models.FeedItem, int64, bool, error)
	SetFunc        func(ctx context.Context, f models.FeedFilter, gen int64, items []models.FeedItem) error
	InvalidateFunc func(ctx context.Context) error
}

func (m *mockCache) Get(ctx context.Context, f models.FeedFilter) ([]models.FeedItem, int64, bool, error) {
	return m.GetFunc(ctx, f)
}

func (m *mockCache) Set(ctx context.Context, f models.FeedFilter, gen int64, items []models.FeedItem) error {
	return m.SetFunc(ctx, f, gen, items)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.InvalidateFunc(ctx)
}

type mockSender struct {
	mu        sync.Mutex
	publicKey string
	SendFunc  func(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error
	sent      []models.PushMessage
}

func (m *mockSender) PublicKey() string { return m.publicKey }

func (m *mockSender) Configured() bool { return m.publicKey != "" }

func (m *mockSender) Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, sub, msg)
	}
	return nil
}

// memStore is an in-memory Store following the SQL store's write policy.
// Err fields force failures for the matching operation.
type memStore struct {
	mu     sync.Mutex
	bills  map[string]*models.Bill
	subs   map[string]*models.Subscriber
	now    func() time.Time
	writes int

	GetErr    error
	InsertErr error
	ListErr   error
}

func newMemStore() *memStore {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &memStore{
		bills: map[string]*models.Bill{},
		subs:  map[string]*models.Subscriber{},
		now: func() time.Time {
			t = t.Add(time.Second)
			return t
		},
	}
}

func (m *memStore) GetBill(_ context.Context, id string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	b, ok := m.bills[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) InsertBill(_ context.Context, b *models.Bill) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	if _, ok := m.bills[b.BillID]; ok {
		return false, nil
	}
	now := m.now()
	cp := *b
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.bills[b.BillID] = &cp
	m.writes++
	return true, nil
}

func (m *memStore) UpsertBill(_ context.Context, b *models.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	now := m.now()
	cp := *b
	if old, ok := m.bills[b.BillID]; ok {
		cp.CreatedAt = old.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.bills[b.BillID] = &cp
	m.writes++
	return nil
}

func (m *memStore) ListBills(_ context.Context, f models.FeedFilter) ([]*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*models.Bill
	for _, b := range m.bills {
		if f.Sector != "" && b.Sector != f.Sector {
			continue
		}
		if f.State != "" && b.State != f.State {
			continue
		}
		if f.Tag != "" && !b.Tags.Contains(f.Tag) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].BillID < out[j].BillID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) SaveSubscriber(_ context.Context, sub *models.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.subs[sub.Endpoint]; ok {
		sub.ID = old.ID
	} else if sub.ID == "" {
		sub.ID = "sub-" + sub.Endpoint
	}
	cp := *sub
	m.subs[sub.Endpoint] = &cp
	return nil
}

func (m *memStore) ListSubscribers(context.Context) ([]*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

func (m *memStore) DeleteSubscriber(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, endpoint)
	return nil
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func rawBill(id string) models.RawBill {
	return models.RawBill{
		ID:    id,
		Title: "An act concerning hospital staffing " + id,
		State: "California",
		Text:  "Requires hospitals to publish nurse staffing ratios.",
		URL:   "https://openstates.org/ca/bills/" + id,
	}
}

func structured(title string) *models.StructuredSummary {
	return &models.StructuredSummary{
		Title:         title,
		ImpactScore:   models.ImpactHigh,
		SummaryPoints: []string{"Hospitals publish ratios.", "Effective next year."},
		ActionItem:    "Check your unit's posted ratio.",
		Tone:          "Urgent",
	}
}

func okSummarizer() *mockSummarizer {
	return &mockSummarizer{
		BriefFunc: func(_ context.Context, text string, _ models.Sector) (string, error) {
			return "Brief: " + text, nil
		},
		StructuredFunc: func(_ context.Context, _ string, _ models.Sector) (*models.StructuredSummary, error) {
			return structured("Staffing Ratios"), nil
		},
	}
}

func fixedFetcher(bills ...models.RawBill) *mockFetcher {
	return &mockFetcher{FetchBillsFunc: func(context.Context, openstates.Query) ([]models.RawBill, error) {
		return bills, nil
	}}
}
