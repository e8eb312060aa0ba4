package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
)

// SchedulerDeps wires the recurring fetch.
type SchedulerDeps struct {
	Driver   ports.Scheduler
	Service  *Service
	Notifier ports.Notifier
	// Freshness skips the start-up cycle when the newest stored article is
	// younger. Zero always runs it.
	Freshness  time.Duration
	RunOnStart bool
	Logger     *slog.Logger
}

// Scheduler wires the cron-like driver with the fetch cycle.
type Scheduler struct {
	driver     ports.Scheduler
	service    *Service
	notifier   ports.Notifier
	freshness  time.Duration
	runOnStart bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:     deps.Driver,
		service:    deps.Service,
		notifier:   deps.Notifier,
		freshness:  deps.Freshness,
		runOnStart: deps.RunOnStart,
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the fetch cycle with the driver and, unless the store is
// fresh, runs one cycle right away in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.service == nil {
		return nil
	}

	if s.runOnStart && s.needsStartupRun(ctx) {
		go s.run(ctx, domain.TriggerStartup)
	}

	job := func(time.Time) {
		s.run(ctx, domain.TriggerScheduled)
	}
	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) needsStartupRun(ctx context.Context) bool {
	if s.freshness <= 0 {
		return true
	}
	stats, err := s.service.Stats(ctx)
	if err != nil {
		s.logger.Warn("cannot read store freshness, fetching anyway", "error", err)
		return true
	}
	if stats.Latest == nil {
		return true
	}
	age := s.now().Sub(*stats.Latest)
	if age < s.freshness {
		s.logger.Info("skipping start-up fetch, store is fresh", "age", age.Round(time.Minute))
		return false
	}
	return true
}

func (s *Scheduler) run(ctx context.Context, trigger domain.FetchTrigger) {
	report, err := s.service.RunFetchCycle(ctx, trigger)
	if err != nil {
		s.logger.Error("scheduled fetch failed", "trigger", trigger, "error", err)
		return
	}
	if report.AlreadyRunning || s.notifier == nil {
		return
	}

	if err := s.notifier.PublishDigest(ctx, buildDigestMessage(report)); err != nil {
		s.logger.Warn("publish fetch digest failed", "error", err)
	}
}

// buildDigestMessage renders a fetch report as plain text, one line per
// source in name order.
func buildDigestMessage(report domain.FetchReport) string {
	names := make([]string, 0, len(report.PerSource))
	for name := range report.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "News fetch (%s) finished at %s: %d new articles\n",
		report.Trigger, report.FinishedAt.UTC().Format("15:04 02/01/2006 MST"), report.TotalInserted)
	for _, name := range names {
		sr := report.PerSource[name]
		if sr.Failed {
			fmt.Fprintf(&b, "- %s: failed (%s)\n", name, sr.ErrorReason)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d new, %d already stored\n", name, sr.Inserted, sr.SkippedDuplicate)
	}
	return strings.TrimRight(b.String(), "\n")
}
