package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LapsedOfferExpirer expires offers whose purchase window has closed.
type LapsedOfferExpirer interface {
	SweepLapsedOffers(ctx context.Context, limit int) (int, error)
}

// OfferSweeper periodically expires lapsed offers that no scheduled task
// reclaimed, for example after tasks were removed by hand.
type OfferSweeper struct {
	expirer   LapsedOfferExpirer
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewOfferSweeper builds a sweeper.
func NewOfferSweeper(expirer LapsedOfferExpirer, interval time.Duration, batchSize int, logger *zap.Logger) *OfferSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OfferSweeper{expirer: expirer, interval: interval, batchSize: batchSize, logger: logger}
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (w *OfferSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("offer sweeper started", zap.Duration("interval", w.interval))
	for {
		w.Sweep(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("offer sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep drains lapsed offers in batches and returns how many were expired.
func (w *OfferSweeper) Sweep(ctx context.Context) int {
	total := 0
	for {
		n, err := w.expirer.SweepLapsedOffers(ctx, w.batchSize)
		total += n
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("sweep lapsed offers", zap.Error(err))
			}
			break
		}
		// A short batch means nothing is left; a batch of only failures must not spin.
		if n < w.batchSize {
			break
		}
	}
	if total > 0 {
		w.logger.Info("expired lapsed offers", zap.Int("count", total))
	}
	return total
}
