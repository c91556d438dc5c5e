package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/metrics"
	"github.com/rl1809/pos-inventory/internal/port"
)

const janitorLockKey = "janitor"

type JanitorConfig struct {
	// Stores limits reconciliation; empty means every store with stock rows
	Stores    []string
	Interval  time.Duration
	Retention time.Duration
}

type JanitorReport struct {
	Skipped     bool
	DriftRows   int
	PurgedEvent int64
}

// Janitor periodically reconciles snapshots against the ledger and purges old
// processed event rows. With a locker only one instance runs a given pass.
type Janitor struct {
	ledger  *LedgerService
	store   port.LedgerStore
	locker  port.JobLocker
	cfg     JanitorConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewJanitor(ledger *LedgerService, locker port.JobLocker, cfg JanitorConfig, m *metrics.Metrics, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	return &Janitor{
		ledger:  ledger,
		store:   ledger.store,
		locker:  locker,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (j *Janitor) RunOnce(ctx context.Context) (JanitorReport, error) {
	if j.locker != nil {
		release, ok, err := j.locker.Obtain(ctx, janitorLockKey, j.cfg.Interval)
		if err != nil {
			return JanitorReport{}, err
		}
		if !ok {
			j.logger.Debug("janitor pass held by another instance")
			return JanitorReport{Skipped: true}, nil
		}
		defer release()
	}

	stores := j.cfg.Stores
	if len(stores) == 0 {
		all, err := j.store.ListStores(ctx)
		if err != nil {
			return JanitorReport{}, err
		}
		stores = all
	}

	var report JanitorReport
	for _, store := range stores {
		drift, err := j.ledger.Reconcile(ctx, store)
		if err != nil {
			return report, err
		}
		report.DriftRows += len(drift)
	}
	j.metrics.DriftObserved(report.DriftRows)

	if j.cfg.Retention > 0 {
		n, err := j.store.PurgeProcessedEvents(ctx, j.now().Add(-j.cfg.Retention))
		if err != nil {
			return report, err
		}
		report.PurgedEvent = n
	}

	j.logger.Info("janitor pass complete",
		zap.Int("stores", len(stores)),
		zap.Int("drift_rows", report.DriftRows),
		zap.Int64("purged_events", report.PurgedEvent))
	return report, nil
}

// Run blocks until ctx is done, running a pass every interval.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("janitor pass failed", zap.Error(err))
			}
		}
	}
}
