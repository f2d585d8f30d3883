// Package review periodically asks finished clients for a review.
package review

import (
	"context"
	"log/slog"
	"time"
)

// Requester marks due appointments and enqueues the review request events.
type Requester interface {
	RequestDueReviews(ctx context.Context, limit int) (int, error)
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

type Worker struct {
	requester Requester
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewWorker(requester Requester, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		requester: requester,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("review batch failed", "err", err)
			}
		}
	}
}

// RunOnce drains every due appointment, one batch at a time.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.requester.RequestDueReviews(ctx, w.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < w.batchSize || ctx.Err() != nil {
			if total > 0 {
				w.logger.Info("review requests enqueued", "count", total)
			}
			return total, nil
		}
	}
}
