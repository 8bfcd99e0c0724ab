package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nitesh/lega/internal/audio"
	"github.com/nitesh/lega/internal/cache"
	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/llm"
	"github.com/nitesh/lega/internal/openstates"
	"github.com/nitesh/lega/internal/push"
	"github.com/nitesh/lega/internal/service"
	"github.com/nitesh/lega/internal/store"
	"github.com/nitesh/lega/internal/store/dynamo"
	"github.com/nitesh/lega/internal/tts"
	"github.com/nitesh/lega/pkg/models"
)

// Store is what the application needs from a bill store.
type Store interface {
	service.Store
	Ping(ctx context.Context) error
}

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config        *config.Config
	Log           *slog.Logger
	Store         Store
	Pipeline      *service.Pipeline
	Feed          *service.Feed
	Subscriptions *service.Subscriptions
	// AudioDir is set when narrated audio is written to local disk.
	AudioDir string

	closers []func() error
}

// Build connects to the configured backends and wires the services.
// Missing provider credentials are not errors here; they surface per
// request.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = st

	uploader, err := audio.New(ctx, cfg.Audio)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: audio: %w", err)
	}
	if local, ok := uploader.(*audio.Local); ok {
		a.AudioDir = local.Dir()
	}

	feedCache := a.openCache(ctx)

	sender := push.NewSender(cfg.Push, log)
	if !sender.Configured() {
		log.Warn("VAPID keys not configured; push notifications disabled")
	}
	a.Subscriptions = service.NewSubscriptions(st, sender, log)

	narrator := service.NewNarrator(tts.New(cfg.TTS, log), uploader, log)
	a.Pipeline = service.NewPipeline(
		openstates.New(cfg.OpenStates, log),
		llm.New(cfg.LLM, log),
		narrator,
		st,
		service.PipelineConfig{
			Workers:       cfg.Pipeline.Workers,
			BatchTimeout:  cfg.Pipeline.BatchTimeout,
			Mode:          service.SummaryMode(cfg.Pipeline.SummaryMode),
			DefaultSector: models.Sector(cfg.Pipeline.DefaultSector),
		},
		log,
	).WithCache(feedCache).WithNotifier(a.Subscriptions)

	a.Feed = service.NewFeed(st, feedCache, log)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	cfg := a.Config
	switch cfg.Database.Driver {
	case "dynamodb":
		client, err := dynamo.NewClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		st := dynamo.New(client, cfg.DynamoDB, a.Log)
		if err := st.EnsureTables(ctx); err != nil {
			return nil, fmt.Errorf("app: dynamodb tables: %w", err)
		}
		a.Log.Info("bill store ready", "driver", "dynamodb", "table", cfg.DynamoDB.BillsTable)
		return st, nil
	default:
		st, err := store.Open(ctx, cfg.Database, a.Log)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		if err := st.Migrate(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: migrations: %w", err)
		}
		a.Log.Info("bill store ready", "driver", cfg.Database.Driver)
		return st, nil
	}
}

// openCache returns a Feed cache, or a no-op one when Redis is not
// configured. An unreachable Redis is logged and still used; failed cache
// calls fall back to the store.
func (a *App) openCache(ctx context.Context) *cache.Feed {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return cache.NewFeed(nil, cfg.FeedTTL)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.Log.Warn("redis ping failed", "addr", cfg.Addr, "error", err)
	}
	a.closers = append(a.closers, rdb.Close)
	return cache.NewFeed(rdb, cfg.FeedTTL)
}

// Close releases every backend connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
