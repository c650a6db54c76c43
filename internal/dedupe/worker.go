package dedupe

import (
	"context"
	"log/slog"
	"time"

	id "trapper/pkg/domain"
)

// Worker runs periodic detection scans until its context is cancelled.
type Worker struct {
	detector *Detector
	kinds    []id.EntityKind
	interval time.Duration
	logger   *slog.Logger
}

// NewWorker constructs a detection worker scanning the given entity kinds.
func NewWorker(detector *Detector, kinds []id.EntityKind, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{detector: detector, kinds: kinds, interval: interval, logger: logger}
}

// Run scans on a fixed interval. A failed scan is logged and retried on the
// next tick; only context cancellation stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, kind := range w.kinds {
				if _, err := w.detector.Run(ctx, kind); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					w.logger.Error("duplicate detection scan failed",
						"kind", kind.String(), "error", err)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
