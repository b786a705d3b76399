package payment

import (
	"context"
	"time"

	"kiranakart-be/internal/logger"

	"go.uber.org/zap"
)

const sweepBatchSize = 50

// Sweeper resolves payments abandoned mid-checkout. A payer who closes the
// tab never triggers a callback, which would otherwise pin the order's stock
// reservation forever. Past the timeout window each PENDING transaction is
// checked against the gateway and pushed through the normal reconcile path.
type Sweeper struct {
	repo       Repository
	gateway    Gateway
	reconciler *Reconciler
	interval   time.Duration
	timeout    time.Duration
}

func NewSweeper(repo Repository, gateway Gateway, reconciler *Reconciler, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		repo:       repo,
		gateway:    gateway,
		reconciler: reconciler,
		interval:   interval,
		timeout:    timeout,
	}
}

// Run blocks until ctx is canceled. Meant to be started as a goroutine from
// main.
func (s *Sweeper) Run(ctx context.Context) {
	log := logger.L().With(zap.Duration("interval", s.interval))
	log.Info("payment sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("payment sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. Errors on individual transactions are logged and
// skipped; the next pass retries them.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.timeout)

	ids, err := s.repo.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		logger.L().Error("listing stale payments failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	logger.L().Info("sweeping stale payments", zap.Int("count", len(ids)))

	for _, txnID := range ids {
		if ctx.Err() != nil {
			return
		}

		res, err := s.gateway.FetchStatus(ctx, txnID)
		if err != nil {
			logger.L().Warn("gateway status fetch failed",
				zap.String("txnid", txnID),
				zap.Error(err),
			)
			continue
		}

		// still pending at the gateway past the timeout window means the
		// payer abandoned checkout; fail it so the stock comes back
		if res.Status == CallbackPending {
			res.Status = CallbackFailure
			if res.ErrorMessage == "" {
				res.ErrorMessage = "payment timed out"
			}
		}

		if err := s.reconciler.Process(ctx, res); err != nil {
			logger.L().Error("sweep reconciliation failed",
				zap.String("txnid", txnID),
				zap.Error(err),
			)
		}
	}
}
