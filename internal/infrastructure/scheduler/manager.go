// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wick-sh/wick/internal/shared/config"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// CRLUpdater regenerates the certificate revocation list on disk.
type CRLUpdater interface {
	UpdateFile(ctx context.Context, path string) error
}

// SchedulerManager manages all scheduled jobs using gocron v2 behind a
// single scheduler instance.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// RegisterCRLJobs registers the periodic revocation list regeneration. Each
// run folds newly revoked serials into the CRL, marks them collected, and
// purges serial ledger rows that are revoked, collected and expired.
func (m *SchedulerManager) RegisterCRLJobs(updater CRLUpdater, cfg config.CRLConfig) error {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			m.updateCRL(ctx, updater, cfg.FilePath)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("crl", "revocation"),
		gocron.WithName("crl-updater"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered crl jobs",
		"interval", interval, "file_path", cfg.FilePath)
	return nil
}

func (m *SchedulerManager) updateCRL(ctx context.Context, updater CRLUpdater, path string) {
	m.logger.Debugw("crl update started")

	startTime := time.Now()
	if err := updater.UpdateFile(ctx, path); err != nil {
		m.logger.Errorw("failed to update crl",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	m.logger.Infow("crl updated",
		"path", path,
		"duration", time.Since(startTime),
	)
}

// RegisterPoolRefreshJobs registers the periodic reconciliation of pools
// against the upstream subscription service.
func (m *SchedulerManager) RegisterPoolRefreshJobs(refreshJob BatchJob, interval time.Duration) error {
	if interval <= 0 {
		interval = 4 * time.Hour
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			m.refreshPools(ctx, refreshJob)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("pool", "refresh"),
		gocron.WithName("pool-refresh"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered pool refresh jobs", "interval", interval)
	return nil
}

func (m *SchedulerManager) refreshPools(ctx context.Context, refreshJob BatchJob) {
	m.logger.Debugw("pool refresh started")

	startTime := time.Now()
	count, err := refreshJob.Execute(ctx)
	if err != nil {
		m.logger.Errorw("failed to refresh pools",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if count > 0 {
		m.logger.Infow("pools refreshed",
			"owners", count,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Debugw("no owners to refresh",
			"duration", time.Since(startTime),
		)
	}
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
