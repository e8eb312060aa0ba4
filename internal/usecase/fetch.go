package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/sources"
)

const defaultLockKey = "newsanalyst:fetch-cycle"

// FetchDeps wires the fetch orchestrator.
type FetchDeps struct {
	Registry    *sources.Registry
	Fetcher     ports.FeedFetcher
	Store       ports.ArticleStore
	Locker      ports.Locker
	Concurrency int
	LockKey     string
	Logger      *slog.Logger
}

// FetchOrchestrator runs fetch cycles over every configured source. At
// most one cycle runs at a time; overlapping triggers are coalesced.
type FetchOrchestrator struct {
	registry    *sources.Registry
	fetcher     ports.FeedFetcher
	store       ports.ArticleStore
	locker      ports.Locker
	concurrency int
	lockKey     string
	logger      *slog.Logger
	now         func() time.Time

	mu   sync.Mutex
	info domain.FetchInfo
}

// NewFetchOrchestrator constructs the orchestrator. Locker is required.
func NewFetchOrchestrator(deps FetchDeps) *FetchOrchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := deps.LockKey
	if key == "" {
		key = defaultLockKey
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FetchOrchestrator{
		registry:    deps.Registry,
		fetcher:     deps.Fetcher,
		store:       deps.Store,
		locker:      deps.Locker,
		concurrency: concurrency,
		lockKey:     key,
		logger:      logger,
		now:         time.Now,
	}
}

// RunFetchCycle fetches every source up to its quota and stores new items.
// A source that fails is recorded in the report and the cycle goes on; a
// store failure aborts the cycle and is returned.
func (o *FetchOrchestrator) RunFetchCycle(ctx context.Context, trigger domain.FetchTrigger) (domain.FetchReport, error) {
	report := domain.FetchReport{
		Trigger:   trigger,
		PerSource: map[string]domain.SourceReport{},
		StartedAt: o.now(),
	}

	unlock, acquired, err := o.locker.TryLock(ctx, o.lockKey)
	if err != nil {
		return report, fmt.Errorf("acquire fetch lock: %w", err)
	}
	if !acquired {
		report.AlreadyRunning = true
		report.FinishedAt = o.now()
		o.logger.Info("fetch cycle already running", "trigger", trigger)
		return report, nil
	}
	defer unlock()

	report.RunID = uuid.NewString()
	logger := o.logger.With("run_id", report.RunID, "trigger", trigger)
	logger.Info("fetch cycle started", "sources", o.registry.Len())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, profile := range o.registry.Profiles() {
		if profile.Feed == "" {
			continue
		}
		profile := profile
		g.Go(func() error {
			sr, err := o.fetchSource(gctx, profile, logger)
			mu.Lock()
			report.PerSource[profile.Name] = sr
			mu.Unlock()
			return err
		})
	}

	err = g.Wait()
	for _, sr := range report.PerSource {
		report.TotalInserted += sr.Inserted
	}
	report.FinishedAt = o.now()

	if err != nil {
		logger.Error("fetch cycle aborted", "inserted", report.TotalInserted, "error", err)
		return report, err
	}

	o.record(report)
	logger.Info("fetch cycle finished",
		"inserted", report.TotalInserted,
		"failed_sources", len(report.FailedSources()),
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// fetchSource only returns an error for store failures.
func (o *FetchOrchestrator) fetchSource(ctx context.Context, profile domain.SourceProfile, logger *slog.Logger) (domain.SourceReport, error) {
	var sr domain.SourceReport

	items, err := o.fetcher.Fetch(ctx, profile, profile.Quota)
	if err != nil {
		failure := &apperr.FetchFailure{Source: profile.Name, Err: err}
		sr.Failed = true
		sr.ErrorReason = failure.Error()
		logger.Warn("source fetch failed", "source", profile.Name, "error", err)
		return sr, nil
	}
	if len(items) > profile.Quota {
		items = items[:profile.Quota]
	}
	sr.Fetched = len(items)

	for _, item := range items {
		if item.Source == "" {
			item.Source = profile.Name
		}
		_, created, err := o.store.Insert(ctx, item.ToArticle(o.now()))
		if err != nil {
			var se *apperr.StoreError
			if !errors.As(err, &se) {
				err = apperr.NewStore("insert", err)
			}
			return sr, err
		}
		if created {
			sr.Inserted++
		} else {
			sr.SkippedDuplicate++
		}
	}

	logger.Debug("source fetched",
		"source", profile.Name,
		"fetched", sr.Fetched,
		"inserted", sr.Inserted,
		"skipped", sr.SkippedDuplicate)
	return sr, nil
}

func (o *FetchOrchestrator) record(report domain.FetchReport) {
	o.mu.Lock()
	defer o.mu.Unlock()

	finished := report.FinishedAt
	switch report.Trigger {
	case domain.TriggerManual:
		o.info.LastManual = &finished
	default:
		o.info.LastScheduled = &finished
	}
	o.info.LastReport = &report
}

// Info reports when the last cycles completed.
func (o *FetchOrchestrator) Info() domain.FetchInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.info
}
