package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"NewsAnalyst/internal/api"
	"NewsAnalyst/internal/config"
	"NewsAnalyst/internal/infrastructure/feed"
	"NewsAnalyst/internal/infrastructure/llm"
	"NewsAnalyst/internal/infrastructure/lock"
	"NewsAnalyst/internal/infrastructure/scheduler"
	"NewsAnalyst/internal/infrastructure/search"
	"NewsAnalyst/internal/infrastructure/storage"
	"NewsAnalyst/internal/infrastructure/telegram"
	"NewsAnalyst/internal/logging"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/selection"
	"NewsAnalyst/internal/session"
	"NewsAnalyst/internal/sources"
	"NewsAnalyst/internal/usecase"
)

// backfillWindow is how many recent articles are indexed when the search
// index is empty at start-up.
const backfillWindow = 2000

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	service   *usecase.Service
	sessions  *session.Manager
	scheduler *usecase.Scheduler
	server    *api.Server
	closers   []func() error
}

// New builds the application. Everything that holds a connection is opened
// here and released by Run on return.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	registry, err := sources.NewRegistry(cfg.SourceProfiles())
	if err != nil {
		return nil, fmt.Errorf("source registry: %w", err)
	}

	base, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, base.Close)

	var store ports.ArticleStore = base
	if cfg.Search.Enabled {
		store, err = a.openSearch(ctx, base)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	completer, err := llm.New(cfg.LLM)
	if err != nil {
		baseLogger.Warn("inference disabled, answers will fail and shortlists fall back to keyword search", "error", err)
	}

	client := &http.Client{Timeout: cfg.Fetch.RequestTimeout}
	extractor := feed.NewExtractor(client, cfg.Fetch.UserAgent)
	var fullText *feed.Extractor
	if cfg.Fetch.ExtractFullText {
		fullText = extractor
	}
	fetcher := feed.NewRSSFetcher(client, cfg.Fetch.UserAgent, fullText, baseLogger.With("component", "feed"))

	engine := selection.NewEngine(store, completer, registry, selection.Config{
		CandidateWindow:  cfg.Selection.CandidateWindow,
		ShortlistSize:    cfg.Selection.ShortlistSize,
		BrowseSize:       cfg.Selection.BrowseSize,
		BrowseWindow:     cfg.Selection.BrowseWindow,
		USShare:          cfg.Selection.USShare,
		MaxArticleChars:  cfg.Selection.MaxArticleChars,
		FallbackLimit:    cfg.Selection.FallbackLimit,
		ShortlistTimeout: cfg.LLM.ShortlistTimeout,
		ComposeTimeout:   cfg.LLM.ComposeTimeout,
	}, baseLogger.With("component", "selection"))

	a.sessions = session.NewManager(cfg.Sessions.TTL, cfg.Sessions.SweepInterval, baseLogger.With("component", "sessions"))

	analyzer := usecase.NewAnalyzer(store, completer, extractor, usecase.AnalyzerConfig{
		BatchSize:     cfg.Analysis.BatchSize,
		MaxInputChars: cfg.Analysis.MaxInputChars,
		Timeout:       cfg.LLM.AnalysisTimeout,
		MaxAttempts:   cfg.Analysis.MaxAttempts,
	}, baseLogger.With("component", "analysis"))

	a.service = usecase.NewService(usecase.ServiceDeps{
		Fetch: usecase.NewFetchOrchestrator(usecase.FetchDeps{
			Registry:    registry,
			Fetcher:     fetcher,
			Store:       store,
			Locker:      locker,
			Concurrency: cfg.Fetch.Concurrency,
			LockKey:     cfg.Fetch.LockKey,
			Logger:      baseLogger.With("component", "fetch"),
		}),
		Engine:            engine,
		Sessions:          a.sessions,
		Store:             store,
		Registry:          registry,
		Analyzer:          analyzer,
		AnalyzeAfterFetch: cfg.Analysis.Enabled,
		Logger:            baseLogger.With("component", "service"),
	})

	if err := a.buildScheduler(); err != nil {
		a.close()
		return nil, err
	}

	a.server = api.NewServer(cfg.HTTP, api.NewStoreHealth(store, baseLogger), baseLogger.With("component", "http")).
		SetupMiddlewares().
		SetupErrorHandler().
		SetupHealthChecks("/health")
	api.NewRouter(a.server.Echo, a.service, registry).Bind()

	return a, nil
}

func (a *Application) openSearch(ctx context.Context, base ports.ArticleStore) (ports.ArticleStore, error) {
	index, err := search.Open(a.cfg.Search.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	a.closers = append(a.closers, index.Close)

	indexed := search.NewIndexedStore(base, index, a.logger.With("component", "search"))
	if count, err := index.Count(); err == nil && count == 0 {
		n, err := indexed.Backfill(ctx, backfillWindow)
		if err != nil {
			a.logger.Warn("search index backfill failed", "error", err)
		} else if n > 0 {
			a.logger.Info("search index backfilled", "articles", n)
		}
	}
	return indexed, nil
}

func (a *Application) openLocker(ctx context.Context) (ports.Locker, error) {
	if a.cfg.Redis.URL == "" {
		return lock.NewLocalLocker(), nil
	}
	locker, err := lock.NewRedisLocker(ctx, a.cfg.Redis.URL, a.cfg.Redis.LockTTL, a.logger.With("component", "lock"))
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, locker.Close)
	return locker, nil
}

func (a *Application) buildScheduler() error {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "cron"))
	if err != nil {
		return err
	}

	var notifier ports.Notifier
	if a.cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(a.cfg.Notifications.Telegram)
	}

	a.scheduler = usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:     driver,
		Service:    a.service,
		Notifier:   notifier,
		Freshness:  a.cfg.Scheduler.Freshness,
		RunOnStart: a.cfg.Scheduler.RunOnStart,
		Logger:     a.logger.With("component", "scheduler"),
	})
	return nil
}

// Run serves until ctx is cancelled, then stops the scheduler and releases
// every resource opened by New.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), api.GracefulShutdownTimeout)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.sessions.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return a.server.Start(gctx)
	})

	err := g.Wait()
	a.sessions.Close()
	return err
}

func (a *Application) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("release resources", "error", err)
	}
	a.closers = nil
}
