package workers

import (
	"context"
	"fmt"
	"os"

	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/logging"
)

type WorkersContainer struct {
	Backfill    *CoordinateBackfill
	QueueWorker *BackfillQueueWorker
}

// InitWorkers starts the scheduled sweep and the queue consumer. Both stop with ctx.
func InitWorkers(
	ctx context.Context,
	cfg config.BackfillOptions,
	backfill *CoordinateBackfill,
	queue common.BackfillQueue,
) *WorkersContainer {
	// consumer names must be unique per process within the stream group
	host, _ := os.Hostname()
	workerID := fmt.Sprintf("backfill-%s-%d", host, os.Getpid())
	qWorker := NewBackfillQueueWorker(workerID, queue, backfill, cfg.BatchSize)

	go backfill.RunScheduled(ctx, cfg.Interval, cfg.BatchSize)
	go func() {
		if err := qWorker.Start(ctx, 1); err != nil {
			logging.Error("[Workers] Backfill queue worker failed to start", "error", err.Error())
		}
	}()

	logging.Info("[Workers] Background workers started",
		"interval", cfg.Interval.String(),
		"batch_size", cfg.BatchSize,
	)
	return &WorkersContainer{
		Backfill:    backfill,
		QueueWorker: qWorker,
	}
}
