package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/logging"
)

// staleClaimer is implemented by queues whose consumers can die holding messages.
type staleClaimer interface {
	CreateConsumerGroup(ctx context.Context) error
	ClaimStale(ctx context.Context, consumer string, minIdle time.Duration) ([]*common.BackfillRequest, []string, error)
}

// BackfillQueueWorker drains the backfill backlog whenever an importer reports
// a committed batch.
type BackfillQueueWorker struct {
	workerID  string
	queue     common.BackfillQueue
	backfill  *CoordinateBackfill
	batchSize int

	block      time.Duration
	claimEvery time.Duration
	minIdle    time.Duration
}

func NewBackfillQueueWorker(workerID string, queue common.BackfillQueue, backfill *CoordinateBackfill, batchSize int) *BackfillQueueWorker {
	return &BackfillQueueWorker{
		workerID:   workerID,
		queue:      queue,
		backfill:   backfill,
		batchSize:  batchSize,
		block:      5 * time.Second,
		claimEvery: 2 * time.Minute,
		minIdle:    5 * time.Minute,
	}
}

// Start runs numWorkers consumers until ctx is cancelled.
func (w *BackfillQueueWorker) Start(ctx context.Context, numWorkers int) error {
	logging.Info("[BackfillQueueWorker] Starting", "workers", numWorkers, "id", w.workerID)

	claimer, canClaim := w.queue.(staleClaimer)
	if canClaim {
		if err := claimer.CreateConsumerGroup(ctx); err != nil {
			return fmt.Errorf("failed to create consumer group: %w", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		consumer := fmt.Sprintf("%s-%d", w.workerID, i)
		go func() {
			defer wg.Done()
			w.consume(ctx, consumer)
		}()
	}

	if canClaim {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.claimStale(ctx, claimer)
		}()
	}

	wg.Wait()
	logging.Info("[BackfillQueueWorker] All workers stopped")
	return nil
}

func (w *BackfillQueueWorker) consume(ctx context.Context, consumer string) {
	processed, failed := 0, 0
	for {
		if ctx.Err() != nil {
			logging.Info("[BackfillQueueWorker] Shutting down",
				"consumer", consumer,
				"processed", processed,
				"errors", failed,
			)
			return
		}

		req, messageID, err := w.queue.Dequeue(ctx, consumer, w.block)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logging.Warn("[BackfillQueueWorker] Dequeue failed", "consumer", consumer, "error", err.Error())
			if messageID != "" {
				_ = w.queue.Ack(ctx, messageID)
			}
			sleep(ctx, time.Second)
			continue
		}
		if req == nil {
			continue
		}

		if err := w.Handle(ctx, req); err != nil {
			failed++
		} else {
			processed++
		}

		// acked even on failure; the scheduled sweep retries the records
		if messageID != "" {
			if err := w.queue.Ack(ctx, messageID); err != nil {
				logging.Warn("[BackfillQueueWorker] Ack failed", "message_id", messageID, "error", err.Error())
			}
		}
	}
}

// Handle drains the backlog for one request.
func (w *BackfillQueueWorker) Handle(ctx context.Context, req *common.BackfillRequest) error {
	res, err := w.backfill.RunUntilDrained(ctx, w.batchSize)
	if err != nil {
		logging.Error("[BackfillQueueWorker] Backfill failed",
			"checkpoint_id", req.CheckpointID,
			"error", err.Error(),
		)
		return err
	}
	logging.Debug("[BackfillQueueWorker] Backfill done",
		"checkpoint_id", req.CheckpointID,
		"requested_records", req.Records,
		"success", res.Success,
		"errors", res.Errors,
		"queued_for", time.Since(req.RequestedAt).String(),
	)
	return nil
}

func (w *BackfillQueueWorker) claimStale(ctx context.Context, claimer staleClaimer) {
	ticker := time.NewTicker(w.claimEvery)
	defer ticker.Stop()

	consumer := w.workerID + "-claimer"
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reqs, ids, err := claimer.ClaimStale(ctx, consumer, w.minIdle)
			if err != nil {
				logging.Warn("[BackfillQueueWorker] Claiming stale messages failed", "error", err.Error())
				continue
			}
			if len(reqs) == 0 {
				continue
			}
			logging.Info("[BackfillQueueWorker] Claimed stale messages", "count", len(reqs))
			// one drain covers every claimed request
			_ = w.Handle(ctx, reqs[0])
			for _, id := range ids {
				if err := w.queue.Ack(ctx, id); err != nil {
					logging.Warn("[BackfillQueueWorker] Ack failed", "message_id", id, "error", err.Error())
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
