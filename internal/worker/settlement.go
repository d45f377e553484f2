// Package worker runs periodic background jobs.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Settler settles due zero-amount cycles
type Settler interface {
	SettleDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// SettlementWorker settles free cycles of due subscriptions on a fixed
// interval. Payment outcomes settle them inline too, so a missed tick only
// delays the status shown to the customer.
type SettlementWorker struct {
	settler   Settler
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewSettlementWorker(settler Settler, interval time.Duration, batchSize int, logger *zap.Logger) *SettlementWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SettlementWorker{
		settler:   settler,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled. The first run happens immediately.
func (w *SettlementWorker) Run(ctx context.Context) error {
	w.logger.Info("Settlement worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Settlement worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce drains due subscriptions in batches until a batch comes back short
func (w *SettlementWorker) RunOnce(ctx context.Context) int {
	asOf := w.now().UTC()
	total := 0
	for ctx.Err() == nil {
		advanced, err := w.settler.SettleDue(ctx, asOf, w.batchSize)
		total += advanced
		if err != nil {
			w.logger.Error("Free cycle settlement failed", zap.Error(err))
			break
		}
		if advanced < w.batchSize {
			break
		}
	}
	if total > 0 {
		w.logger.Info("Free cycles settled", zap.Int("subscriptions", total))
	}
	return total
}
