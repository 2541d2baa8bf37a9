// Package scheduler runs the periodic maintenance jobs of the service using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/orris-inc/checkout/internal/shared/logger"
)

// Purger removes expired entries and returns how many it removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SchedulerManager owns one gocron scheduler and the jobs registered on it.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log.Named("scheduler"),
	}, nil
}

// RegisterPurgeJob runs purger every interval, starting immediately. It backs
// the expired challenge purge and the idle session sweep. A run is skipped while the previous one is still going.
func (m *SchedulerManager) RegisterPurgeJob(name string, purger Purger, interval time.Duration) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			m.purge(ctx, name, purger)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("purge"),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered purge job", "name", name, "interval", interval.String())
	return nil
}

func (m *SchedulerManager) purge(ctx context.Context, name string, purger Purger) {
	startTime := time.Now()

	purged, err := purger.PurgeExpired(ctx)
	if err != nil {
		m.logger.Errorw("failed to purge expired entries",
			"job", name,
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if purged > 0 {
		m.logger.Infow("expired entries purged",
			"job", name,
			"count", purged,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Debugw("no expired entries to purge", "job", name)
	}
}

// Start begins executing registered jobs. It is a no-op when already started.
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

// Stop waits for running jobs, then releases the scheduler.
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

func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
