package skeleton

import (
	"context"
	"log/slog"
	"time"
)

// Worker runs periodic reconciliation sweeps until its context is cancelled.
type Worker struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewWorker constructs a reconciliation worker.
func NewWorker(manager *Manager, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{manager: manager, interval: interval, logger: logger}
}

// Run sweeps on a fixed interval. A failed sweep is logged and retried on the
// next tick; only context cancellation stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := w.manager.Reconcile(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("skeleton reconciliation sweep failed", "error", err)
				continue
			}
			if stats.Scanned > 0 {
				w.logger.Info("skeleton reconciliation sweep",
					"scanned", stats.Scanned,
					"promoted", stats.Promoted,
					"remaining", stats.Remaining,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
