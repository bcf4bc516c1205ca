package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rankwise/internal/entitlement"
	"rankwise/internal/models"
)

// LedgerPruner deletes durable ledger rows for days before a cutoff.
type LedgerPruner interface {
	PruneQuotaLedger(ctx context.Context, before time.Time) (int64, error)
}

// LedgerJanitor keeps the quota counters bounded: it drops past days from
// the in-process fallback counter and ledger rows past the retention window.
type LedgerJanitor struct {
	ledger    LedgerPruner
	fallback  *entitlement.MemoryCounter
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerJanitor creates a janitor. A nil ledger or a retention of zero
// days leaves the durable ledger alone.
func NewLedgerJanitor(ledger LedgerPruner, fallback *entitlement.MemoryCounter, interval time.Duration, retentionDays int, logger *zap.Logger) *LedgerJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &LedgerJanitor{
		ledger:    ledger,
		fallback:  fallback,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins the background cleanup loop. It returns when ctx is done.
func (j *LedgerJanitor) Start(ctx context.Context) {
	j.logger.Info("ledger janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention),
	)

	// Run immediately on start
	j.RunOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("ledger janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass.
func (j *LedgerJanitor) RunOnce(ctx context.Context) {
	now := j.now()

	if j.fallback != nil {
		if removed := j.fallback.Prune(models.LedgerDay(now)); removed > 0 {
			j.logger.Debug("pruned in-process quota counters", zap.Int("removed", removed))
		}
	}

	if j.ledger == nil || j.retention <= 0 {
		return
	}
	cutoff := now.Add(-j.retention)
	removed, err := j.ledger.PruneQuotaLedger(ctx, cutoff)
	if err != nil {
		j.logger.Warn("quota ledger prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		j.logger.Info("pruned quota ledger",
			zap.Int64("rows", removed),
			zap.String("before", models.LedgerDay(cutoff)),
		)
	}
}
