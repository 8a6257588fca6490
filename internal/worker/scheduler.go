package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opensource-finance/tally/internal/cache"
	"github.com/opensource-finance/tally/internal/domain"
)

// ScanLeaseKey is the cache key held while an overdue scan runs.
const ScanLeaseKey = "reminder-scan"

// ErrScanInProgress is returned when another scan holds the lease.
var ErrScanInProgress = errors.New("reminder scan already in progress")

// OverdueScanner creates reminders for overdue credit sales.
type OverdueScanner interface {
	ScanOverdueCredits(ctx context.Context) ([]*domain.Reminder, error)
}

// Scheduler runs the overdue-credit scan on a cron schedule.
type Scheduler struct {
	scanner OverdueScanner
	leases  domain.Cache
	holder  string
	bus     domain.EventBus
	cfg     domain.SchedulerConfig
	cron    *cron.Cron
}

// NewScheduler creates a scheduler. The bus may be nil.
func NewScheduler(scanner OverdueScanner, leases domain.Cache, bus domain.EventBus, cfg domain.SchedulerConfig) *Scheduler {
	if cfg.ScanLeaseTTL <= 0 {
		cfg.ScanLeaseTTL = 10 * time.Minute
	}
	host, _ := os.Hostname()
	return &Scheduler{
		scanner: scanner,
		leases:  leases,
		holder:  fmt.Sprintf("%s/%d", host, os.Getpid()),
		bus:     bus,
		cfg:     cfg,
		cron:    cron.New(),
	}
}

// Start registers the scan and starts the cron runner.
// An empty schedule leaves the scheduler idle.
func (s *Scheduler) Start() error {
	if s.cfg.ReminderScanSchedule == "" {
		slog.Info("reminder scan disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.ReminderScanSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanLeaseTTL)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
			slog.Error("reminder scan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder scan schedule %q: %w", s.cfg.ReminderScanSchedule, err)
	}

	s.cron.Start()
	slog.Info("reminder scan scheduled",
		"schedule", s.cfg.ReminderScanSchedule,
	)
	return nil
}

// RunOnce scans for overdue credits while holding the scan lease and
// publishes every created reminder.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*domain.Reminder, error) {
	start := time.Now()

	if s.leases != nil {
		lease, err := cache.Acquire(ctx, s.leases, ScanLeaseKey, s.holder, s.cfg.ScanLeaseTTL)
		if errors.Is(err, cache.ErrLeaseHeld) {
			if info, _ := cache.Holder(ctx, s.leases, ScanLeaseKey); info != nil {
				slog.Debug("reminder scan skipped, lease held",
					"holder", info.Holder,
					"since", info.AcquiredAt,
				)
			}
			return nil, ErrScanInProgress
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release scan lease", "error", err)
			}
		}()
	}

	created, err := s.scanner.ScanOverdueCredits(ctx)
	if err != nil {
		return created, err
	}

	if s.bus != nil {
		for _, r := range created {
			payload, err := json.Marshal(r)
			if err != nil {
				return created, fmt.Errorf("failed to encode reminder: %w", err)
			}
			if err := s.bus.Publish(ctx, domain.TopicReminderCreated, payload); err != nil {
				slog.Error("failed to publish reminder",
					"reminder_id", r.ID,
					"error", err,
				)
			}
		}
	}

	slog.Info("reminder scan completed",
		"created", len(created),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return created, nil
}

// Stop halts the cron runner and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("reminder scheduler stopped")
}
