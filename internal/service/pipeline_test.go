package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/internal/openstates"
	"github.com/nitesh/lega/internal/tts"
	"github.com/nitesh/lega/pkg/models"
)

func okNarrator() *Narrator {
	synth := &mockSynth{SynthesizeFunc: func(context.Context, string) ([]byte, error) {
		return []byte("ID3audio"), nil
	}}
	up := &mockUploader{UploadFunc: func(_ context.Context, name string, _ []byte) (string, error) {
		return "https://cdn.example.com/" + name, nil
	}}
	return NewNarrator(synth, up, slog.Default())
}

func newTestPipeline(f BillFetcher, s Summarizer, n *Narrator, st BillStore) *Pipeline {
	return NewPipeline(f, s, n, st, PipelineConfig{Workers: 2}, slog.Default())
}

func TestPipeline_SkipProcessFailScenario(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	_, err := store.InsertBill(context.Background(), &models.Bill{
		BillID: "A", Title: "existing", Summary: models.TextSummary("old"), Sector: models.SectorHealthcare,
	})
	require.NoError(t, err)

	sum := okSummarizer()
	sum.StructuredFunc = func(_ context.Context, text string, _ models.Sector) (*models.StructuredSummary, error) {
		if text == "malformed" {
			return nil, fmt.Errorf("%w: unexpected end of JSON input", domain.ErrSummarizationMalformed)
		}
		return structured("B summary"), nil
	}
	a, b, c := rawBill("A"), rawBill("B"), rawBill("C")
	c.Text = "malformed"

	p := newTestPipeline(fixedFetcher(a, b, c), sum, okNarrator(), store)
	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Processed, 3)

	assert.Equal(t, "A", res.Processed[0].ID)
	assert.Equal(t, StatusSkipped, res.Processed[0].Status)
	require.NotNil(t, res.Processed[0].Summary)
	assert.Equal(t, "old", res.Processed[0].Summary.Text)

	assert.Equal(t, "B", res.Processed[1].ID)
	assert.Equal(t, StatusProcessed, res.Processed[1].Status)
	require.NotNil(t, res.Processed[1].Summary)
	assert.Equal(t, "B summary", res.Processed[1].Summary.Structured.Title)
	assert.NotEmpty(t, res.Processed[1].AudioURL)

	assert.Equal(t, "C", res.Processed[2].ID)
	assert.Equal(t, StatusFailed, res.Processed[2].Status)
	assert.Contains(t, res.Processed[2].Detail, "malformed")

	stored, err := store.GetBill(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, "California", stored.State)
	assert.Equal(t, "https://openstates.org/ca/bills/B", stored.SourceURL)
	assert.Contains(t, []string(stored.Tags), "healthcare")
	assert.NotEmpty(t, stored.AudioURL)

	_, err = store.GetBill(context.Background(), "C")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPipeline_RerunSkipsAndLeavesRecordIdentical(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	p := newTestPipeline(fixedFetcher(rawBill("X")), okSummarizer(), okNarrator(), store)

	_, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	before, err := store.GetBill(context.Background(), "X")
	require.NoError(t, err)

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Processed[0].Status)
	require.NotNil(t, res.Processed[0].Summary)
	assert.Equal(t, before.Summary, *res.Processed[0].Summary)
	assert.Equal(t, before.AudioURL, res.Processed[0].AudioURL)
	assert.NotEmpty(t, res.Processed[0].AudioURL)

	after, err := store.GetBill(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, store.writeCount())
}

func TestPipeline_ForceRefreshUpdatesSummaryKeepsIdentity(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	sum := okSummarizer()
	p := newTestPipeline(fixedFetcher(rawBill("X")), sum, okNarrator(), store)

	_, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	before, err := store.GetBill(context.Background(), "X")
	require.NoError(t, err)

	sum.StructuredFunc = func(context.Context, string, models.Sector) (*models.StructuredSummary, error) {
		return structured("Revised"), nil
	}
	res, err := p.Ingest(context.Background(), IngestRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Processed[0].Status)

	after, err := store.GetBill(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, before.BillID, after.BillID)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, "Revised", after.Summary.Structured.Title)
}

func TestPipeline_NoSpeechCredentialStillProcesses(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	narrator := NewNarrator(tts.Disabled{Reason: "ELEVENLABS_API_KEY not set"}, &mockUploader{
		UploadFunc: func(context.Context, string, []byte) (string, error) {
			t.Error("upload must not be called without audio")
			return "", nil
		},
	}, slog.Default())
	p := newTestPipeline(fixedFetcher(rawBill("1"), rawBill("2")), okSummarizer(), narrator, store)

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	for _, r := range res.Processed {
		assert.Equal(t, StatusProcessed, r.Status)
		assert.Empty(t, r.AudioURL)
	}
	b, err := store.GetBill(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "", b.AudioURL)
}

func TestPipeline_UploadFailureLeavesAudioEmpty(t *testing.T) {
	t.Parallel()

	narrator := NewNarrator(
		&mockSynth{SynthesizeFunc: func(context.Context, string) ([]byte, error) { return []byte("x"), nil }},
		&mockUploader{UploadFunc: func(context.Context, string, []byte) (string, error) {
			return "", errors.New("bucket gone")
		}},
		slog.Default(),
	)
	p := newTestPipeline(fixedFetcher(rawBill("1")), okSummarizer(), narrator, newMemStore())

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Processed[0].Status)
	assert.Empty(t, res.Processed[0].AudioURL)
}

func TestPipeline_FatalFetchErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{"missing provider key", fmt.Errorf("%w: OPEN_STATES_API_KEY", domain.ErrConfigurationMissing)},
		{"upstream down", fmt.Errorf("%w: status 503", domain.ErrUpstreamUnavailable)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newMemStore()
			f := &mockFetcher{FetchBillsFunc: func(context.Context, openstates.Query) ([]models.RawBill, error) {
				return nil, tc.err
			}}
			p := newTestPipeline(f, okSummarizer(), okNarrator(), store)

			res, err := p.Ingest(context.Background(), IngestRequest{})
			require.ErrorIs(t, err, tc.err)
			assert.False(t, res.Success)
			assert.Empty(t, res.Processed)
			assert.NotEmpty(t, res.Error)
			assert.Zero(t, store.writeCount())
		})
	}
}

func TestPipeline_MissingSummarizerCredential(t *testing.T) {
	t.Parallel()

	sum := okSummarizer()
	sum.StructuredFunc = func(context.Context, string, models.Sector) (*models.StructuredSummary, error) {
		return nil, fmt.Errorf("%w: %w", domain.ErrSummarizationUnavailable, domain.ErrNoCredential)
	}
	store := newMemStore()
	p := newTestPipeline(fixedFetcher(rawBill("1")), sum, okNarrator(), store)

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, BillResult{ID: "1", Status: StatusFailed, Detail: domain.SummaryUnavailablePlaceholder}, res.Processed[0])
	assert.Zero(t, store.writeCount())
}

func TestPipeline_PersistenceFailureIsPerBill(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.InsertErr = fmt.Errorf("insert bill: %w", domain.ErrPersistenceUnavailable)
	p := newTestPipeline(fixedFetcher(rawBill("1"), rawBill("2")), okSummarizer(), okNarrator(), store)

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	require.Len(t, res.Processed, 2)
	for _, r := range res.Processed {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Contains(t, r.Detail, "persistence unavailable")
	}
}

func TestPipeline_InvalidSector(t *testing.T) {
	t.Parallel()

	called := false
	f := &mockFetcher{FetchBillsFunc: func(context.Context, openstates.Query) ([]models.RawBill, error) {
		called = true
		return nil, nil
	}}
	p := newTestPipeline(f, okSummarizer(), okNarrator(), newMemStore())

	_, err := p.Ingest(context.Background(), IngestRequest{Sector: "finance"})
	assert.ErrorIs(t, err, domain.ErrInvalidSector)
	assert.False(t, called)
}

func TestPipeline_PassesQueryAndSector(t *testing.T) {
	t.Parallel()

	var gotQuery openstates.Query
	f := &mockFetcher{FetchBillsFunc: func(_ context.Context, q openstates.Query) ([]models.RawBill, error) {
		gotQuery = q
		return []models.RawBill{rawBill("1")}, nil
	}}
	var gotSector models.Sector
	sum := okSummarizer()
	sum.BriefFunc = func(_ context.Context, text string, s models.Sector) (string, error) {
		gotSector = s
		return "short", nil
	}
	store := newMemStore()
	p := NewPipeline(f, sum, okNarrator(), store, PipelineConfig{Mode: ModeBrief}, slog.Default())

	res, err := p.Ingest(context.Background(), IngestRequest{Query: "schools", Sector: models.SectorEducation, Page: 2, PerPage: 3})
	require.NoError(t, err)
	assert.Equal(t, openstates.Query{Q: "schools", Page: 2, PerPage: 3}, gotQuery)
	assert.Equal(t, models.SectorEducation, gotSector)
	assert.Equal(t, "short", res.Processed[0].Summary.Text)

	b, err := store.GetBill(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, models.SectorEducation, b.Sector)
	assert.Contains(t, []string(b.Tags), "education")
}

func TestPipeline_EmptyTextFallsBackToTitle(t *testing.T) {
	t.Parallel()

	var got string
	sum := okSummarizer()
	sum.StructuredFunc = func(_ context.Context, text string, _ models.Sector) (*models.StructuredSummary, error) {
		got = text
		return structured("t"), nil
	}
	raw := rawBill("1")
	raw.Text = ""
	raw.State = ""
	store := newMemStore()
	p := newTestPipeline(fixedFetcher(raw), sum, okNarrator(), store)

	_, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, raw.Title, got)

	b, err := store.GetBill(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultState, b.State)
}

func TestPipeline_WorkerBound(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	sum := okSummarizer()
	sum.StructuredFunc = func(context.Context, string, models.Sector) (*models.StructuredSummary, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return structured("t"), nil
	}
	var bills []models.RawBill
	for i := 0; i < 10; i++ {
		bills = append(bills, rawBill(fmt.Sprint(i)))
	}
	p := NewPipeline(fixedFetcher(bills...), sum, okNarrator(), newMemStore(), PipelineConfig{Workers: 3}, slog.Default())

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Counts()[StatusProcessed])
	assert.LessOrEqual(t, peak.Load(), int32(3))
	for i, r := range res.Processed {
		assert.Equal(t, fmt.Sprint(i), r.ID, "results keep fetch order")
	}
}

func TestPipeline_CancelledContextWritesNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sum := okSummarizer()
	sum.StructuredFunc = func(context.Context, string, models.Sector) (*models.StructuredSummary, error) {
		cancel()
		return structured("t"), nil
	}
	store := newMemStore()
	p := NewPipeline(fixedFetcher(rawBill("1")), sum, okNarrator(), store, PipelineConfig{Workers: 1}, slog.Default())

	res, err := p.Ingest(ctx, IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Processed[0].Status)
	assert.Contains(t, res.Processed[0].Detail, "context canceled")
	assert.Zero(t, store.writeCount())
}

func TestPipeline_InvalidatesCacheAndNotifies(t *testing.T) {
	t.Parallel()

	var invalidations atomic.Int32
	c := &mockCache{InvalidateFunc: func(context.Context) error {
		invalidations.Add(1)
		return nil
	}}
	var notified atomic.Int32
	n := notifierFunc(func(context.Context, *models.Bill) int {
		notified.Add(1)
		return 1
	})
	store := newMemStore()
	p := newTestPipeline(fixedFetcher(rawBill("1"), rawBill("2")), okSummarizer(), okNarrator(), store).
		WithCache(c).
		WithNotifier(n)

	_, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), invalidations.Load())
	assert.Equal(t, int32(2), notified.Load())

	// Nothing new: no invalidation, no notifications.
	_, err = p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), invalidations.Load())
	assert.Equal(t, int32(2), notified.Load())
}

type notifierFunc func(ctx context.Context, b *models.Bill) int

func (f notifierFunc) NotifyBill(ctx context.Context, b *models.Bill) int { return f(ctx, b) }

// racingStore never sees the bill on lookup but loses the insert to a
// concurrent writer.
type racingStore struct {
	*memStore
}

func (r racingStore) GetBill(context.Context, string) (*models.Bill, error) {
	return nil, domain.ErrNotFound
}

func (r racingStore) InsertBill(context.Context, *models.Bill) (bool, error) {
	return false, nil
}

func TestPipeline_LostInsertRaceIsSkipped(t *testing.T) {
	t.Parallel()

	var notified atomic.Int32
	n := notifierFunc(func(context.Context, *models.Bill) int {
		notified.Add(1)
		return 1
	})
	var invalidated atomic.Int32
	c := &mockCache{InvalidateFunc: func(context.Context) error {
		invalidated.Add(1)
		return nil
	}}
	store := racingStore{newMemStore()}
	p := newTestPipeline(fixedFetcher(rawBill("1")), okSummarizer(), okNarrator(), store).
		WithNotifier(n).
		WithCache(c)

	res, err := p.Ingest(context.Background(), IngestRequest{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, BillResult{ID: "1", Status: StatusSkipped, Detail: "already stored"}, res.Processed[0])
	assert.Zero(t, notified.Load())
	assert.Zero(t, invalidated.Load())
	assert.Zero(t, store.writeCount())
}
