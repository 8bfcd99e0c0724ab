package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/service"
)

// ErrBusy is returned by Trigger while another run is in progress.
var ErrBusy = errors.New("ingestion already running")

// Ingester runs one ingestion batch.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
}

// Scheduler runs ingestion periodically and on demand. Runs never overlap.
type Scheduler struct {
	ingester   Ingester
	interval   time.Duration
	runOnStart bool
	request    service.IngestRequest
	log        *slog.Logger

	running sync.Mutex
	mu      sync.Mutex
	last    *Run
}

// Run describes the most recent completed batch.
type Run struct {
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Result    *service.IngestResult `json:"result"`
	Error     string                `json:"error,omitempty"`
}

func New(ingester Ingester, cfg config.SchedulerConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		ingester:   ingester,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		log:        log.With("component", "scheduler"),
	}
}

// WithRequest sets the request used for scheduled runs.
func (s *Scheduler) WithRequest(req service.IngestRequest) *Scheduler {
	s.request = req
	return s
}

// Start blocks until ctx is done. It returns immediately when the
// interval is zero and run-on-start is off.
func (s *Scheduler) Start(ctx context.Context) {
	if s.runOnStart {
		s.runScheduled(ctx)
	}
	if s.interval <= 0 {
		s.log.Info("periodic ingestion disabled")
		return
	}
	s.log.Info("periodic ingestion enabled", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if _, err := s.Trigger(ctx, s.request); errors.Is(err, ErrBusy) {
		s.log.Info("skipping scheduled run; previous run still in progress")
	}
}

// Trigger runs one batch now.
func (s *Scheduler) Trigger(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	start := time.Now()
	s.log.Info("ingestion run started", "force", req.Force)
	res, err := s.ingester.Ingest(ctx, req)

	run := &Run{StartedAt: start, Duration: time.Since(start), Result: res}
	if err != nil {
		run.Error = err.Error()
		s.log.Error("ingestion run failed", "error", err)
	}
	s.mu.Lock()
	s.last = run
	s.mu.Unlock()
	return res, err
}

// Last returns the most recent run, or nil.
func (s *Scheduler) Last() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
