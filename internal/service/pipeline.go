package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/internal/logger"
	"github.com/nitesh/lega/internal/openstates"
	"github.com/nitesh/lega/internal/tags"
	"github.com/nitesh/lega/pkg/models"
)

// Status is the per-bill outcome of an ingestion.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// SummaryMode selects the summarizer call used by the pipeline.
type SummaryMode string

const (
	ModeStructured SummaryMode = "structured"
	ModeBrief      SummaryMode = "brief"
)

// BillResult reports what happened to one fetched bill.
type BillResult struct {
	ID       string          `json:"id"`
	Status   Status          `json:"status"`
	Summary  *models.Summary `json:"summary,omitempty"`
	AudioURL string          `json:"audio_url,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

// IngestResult has one entry per fetched bill, in fetch order.
type IngestResult struct {
	Success   bool         `json:"success"`
	Processed []BillResult `json:"processed"`
	Error     string       `json:"error,omitempty"`
}

// Counts tallies results by status.
func (r *IngestResult) Counts() map[Status]int {
	out := map[Status]int{}
	for _, b := range r.Processed {
		out[b.Status]++
	}
	return out
}

// IngestRequest parameterizes one batch. Zero values fall back to the
// pipeline defaults.
type IngestRequest struct {
	Query   string
	Sector  models.Sector
	Page    int
	PerPage int
	// Force regenerates bills that are already stored.
	Force bool
}

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	Workers       int
	BatchTimeout  time.Duration
	Mode          SummaryMode
	DefaultSector models.Sector
}

// Pipeline runs fetch, cache lookup, summarize, narrate and persist for
// every bill of a batch. Bills are independent and run on a bounded pool.
type Pipeline struct {
	fetcher    BillFetcher
	summarizer Summarizer
	narrator   *Narrator
	store      BillStore
	cache      FeedCache
	notifier   BillNotifier
	cfg        PipelineConfig
	log        *slog.Logger
}

func NewPipeline(fetcher BillFetcher, summarizer Summarizer, narrator *Narrator, store BillStore, cfg PipelineConfig, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeStructured
	}
	if cfg.DefaultSector == "" {
		cfg.DefaultSector = models.SectorHealthcare
	}
	return &Pipeline{
		fetcher:    fetcher,
		summarizer: summarizer,
		narrator:   narrator,
		store:      store,
		cfg:        cfg,
		log:        log.With("component", "pipeline"),
	}
}

// WithCache invalidates c after every batch that stored bills.
func (p *Pipeline) WithCache(c FeedCache) *Pipeline {
	p.cache = c
	return p
}

// WithNotifier announces every newly processed bill through n.
func (p *Pipeline) WithNotifier(n BillNotifier) *Pipeline {
	p.notifier = n
	return p
}

// Ingest runs one batch. Only configuration and upstream failures are
// returned as errors; every per-bill failure is reported in the result.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	sector := req.Sector
	if sector == "" {
		sector = p.cfg.DefaultSector
	}
	if !sector.Valid() {
		err := fmt.Errorf("sector %q: %w", sector, domain.ErrInvalidSector)
		return &IngestResult{Processed: []BillResult{}, Error: err.Error()}, err
	}

	if p.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.BatchTimeout)
		defer cancel()
	}
	log := logger.FromContext(ctx, p.log)

	start := time.Now()
	bills, err := p.fetcher.FetchBills(ctx, openstates.Query{Q: req.Query, Page: req.Page, PerPage: req.PerPage})
	if err != nil {
		log.Error("fetch bills failed", "error", err)
		return &IngestResult{Processed: []BillResult{}, Error: err.Error()}, err
	}

	results := make([]BillResult, len(bills))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, raw := range bills {
		i, raw := i, raw
		g.Go(func() error {
			results[i] = p.processBill(ctx, raw, sector, req.Force)
			return nil
		})
	}
	_ = g.Wait()

	res := &IngestResult{Success: true, Processed: results}
	counts := res.Counts()
	if counts[StatusProcessed] > 0 && p.cache != nil {
		if err := p.cache.Invalidate(ctx); err != nil {
			log.Warn("feed cache invalidation failed", "error", err)
		}
	}

	log.Info("ingestion finished",
		"fetched", len(bills),
		"processed", counts[StatusProcessed],
		"skipped", counts[StatusSkipped],
		"failed", counts[StatusFailed],
		"force", req.Force,
		"duration", time.Since(start),
	)
	return res, nil
}

func (p *Pipeline) processBill(ctx context.Context, raw models.RawBill, sector models.Sector, force bool) BillResult {
	log := logger.FromContext(ctx, p.log).With("bill_id", raw.ID)
	failed := func(detail string) BillResult {
		return BillResult{ID: raw.ID, Status: StatusFailed, Detail: detail}
	}

	if err := ctx.Err(); err != nil {
		return failed(err.Error())
	}

	existing, err := p.store.GetBill(ctx, raw.ID)
	switch {
	case err == nil && !force:
		log.Debug("cache hit")
		return BillResult{ID: raw.ID, Status: StatusSkipped, Summary: &existing.Summary, AudioURL: existing.AudioURL}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		log.Error("cache lookup failed", "error", err)
		return failed(err.Error())
	}

	text := raw.Text
	if text == "" {
		text = raw.Title
	}
	summary, err := p.summarize(ctx, text, sector)
	if err != nil {
		log.Warn("summarization failed", "error", err)
		if errors.Is(err, domain.ErrNoCredential) {
			return failed(domain.SummaryUnavailablePlaceholder)
		}
		return failed(err.Error())
	}

	bill := &models.Bill{
		BillID:    raw.ID,
		State:     raw.State,
		Title:     raw.Title,
		Summary:   summary,
		Tags:      tags.ForBill(raw.Title, text, sector),
		Sector:    sector,
		SourceURL: raw.URL,
	}
	if bill.State == "" {
		bill.State = models.DefaultState
	}
	bill.AudioURL = p.narrator.Narrate(ctx, raw.ID, summary)

	if err := ctx.Err(); err != nil {
		return failed(err.Error())
	}
	if existing != nil {
		bill.CreatedAt = existing.CreatedAt
		if err := p.store.UpsertBill(ctx, bill); err != nil {
			log.Error("persist failed", "error", err)
			return failed(err.Error())
		}
	} else {
		inserted, err := p.store.InsertBill(ctx, bill)
		if err != nil {
			log.Error("persist failed", "error", err)
			return failed(err.Error())
		}
		if !inserted {
			log.Info("bill stored concurrently by another ingestion")
			return BillResult{ID: raw.ID, Status: StatusSkipped, Detail: "already stored"}
		}
	}

	if p.notifier != nil {
		p.notifier.NotifyBill(ctx, bill)
	}

	log.Info("bill processed", "has_audio", bill.AudioURL != "", "tags", []string(bill.Tags))
	return BillResult{ID: raw.ID, Status: StatusProcessed, Summary: &bill.Summary, AudioURL: bill.AudioURL}
}

func (p *Pipeline) summarize(ctx context.Context, text string, sector models.Sector) (models.Summary, error) {
	if p.cfg.Mode == ModeBrief {
		s, err := p.summarizer.Brief(ctx, text, sector)
		if err != nil {
			return models.Summary{}, err
		}
		return models.TextSummary(s), nil
	}
	s, err := p.summarizer.Structured(ctx, text, sector)
	if err != nil {
		return models.Summary{}, err
	}
	return models.StructuredOf(s), nil
}
