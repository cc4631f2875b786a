package workers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"rubicon/flightlog/internal/geo"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/metrics"
	models "rubicon/flightlog/internal/models/gorm"
)

// UnresolvedRecords is the slice of the flight record table the backfill reads and writes.
type UnresolvedRecords interface {
	FindUnresolved(ctx context.Context, limit int) ([]models.FlightRecord, error)
	BulkUpdateCoordinates(ctx context.Context, records []models.FlightRecord) error
}

// SweepResult tallies one sweep. Errors are records cached with the sentinel.
type SweepResult struct {
	Selected int `json:"selected"`
	Success  int `json:"success"`
	Errors   int `json:"errors"`
}

func (r *SweepResult) add(o SweepResult) {
	r.Selected += o.Selected
	r.Success += o.Success
	r.Errors += o.Errors
}

// CoordinateBackfill resolves coordinates of records written before their
// conversion could run.
type CoordinateBackfill struct {
	records  UnresolvedRecords
	resolver *geo.Resolver
	metrics  *metrics.Registry
	limiter  *rate.Limiter
}

// NewCoordinateBackfill builds the worker. sweepsPerSecond <= 0 disables pacing.
func NewCoordinateBackfill(records UnresolvedRecords, resolver *geo.Resolver, m *metrics.Registry, sweepsPerSecond float64) *CoordinateBackfill {
	limit := rate.Inf
	if sweepsPerSecond > 0 {
		limit = rate.Limit(sweepsPerSecond)
	}
	return &CoordinateBackfill{
		records:  records,
		resolver: resolver,
		metrics:  m,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// RunSweep resolves up to batchSize unresolved records and persists them with a
// single bulk update. A record that fails to convert is cached as the sentinel
// and leaves the selection for good.
func (w *CoordinateBackfill) RunSweep(ctx context.Context, batchSize int) (SweepResult, error) {
	started := time.Now()

	records, err := w.records.FindUnresolved(ctx, batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to select unresolved records: %w", err)
	}
	res := SweepResult{Selected: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	for i := range records {
		rec := &records[i]
		raw := ""
		if rec.RawCoordinates != nil {
			raw = *rec.RawCoordinates
		}
		coords, err := w.resolver.Compute(raw)
		if err != nil {
			logging.Debug("[CoordinateBackfill] Caching sentinel",
				"record_id", rec.ID,
				"raw", raw,
				"error", err.Error(),
			)
			res.Errors++
		} else {
			res.Success++
		}
		geo.Apply(rec, coords)
	}

	if err := w.records.BulkUpdateCoordinates(ctx, records); err != nil {
		return SweepResult{Selected: res.Selected}, fmt.Errorf("failed to persist coordinates: %w", err)
	}

	w.metrics.ObserveBackfill(started, res.Success, res.Errors)
	logging.Info("[CoordinateBackfill] Sweep completed",
		"selected", res.Selected,
		"success", res.Success,
		"errors", res.Errors,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return res, nil
}

// RunUntilDrained repeats sweeps until one selects nothing. Sweeps are paced by
// the worker's rate limiter.
func (w *CoordinateBackfill) RunUntilDrained(ctx context.Context, batchSize int) (SweepResult, error) {
	var total SweepResult
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return total, err
		}
		res, err := w.RunSweep(ctx, batchSize)
		if err != nil {
			return total, err
		}
		total.add(res)
		if res.Selected < batchSize || res.Selected == 0 {
			return total, nil
		}
	}
}

// RunScheduled drains the backlog every interval until ctx is cancelled.
func (w *CoordinateBackfill) RunScheduled(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info("[CoordinateBackfill] Scheduler started", "interval", interval.String(), "batch_size", batchSize)
	for {
		select {
		case <-ctx.Done():
			logging.Info("[CoordinateBackfill] Scheduler stopped")
			return
		case <-ticker.C:
			if _, err := w.RunUntilDrained(ctx, batchSize); err != nil && ctx.Err() == nil {
				logging.Error("[CoordinateBackfill] Scheduled drain failed", "error", err.Error())
			}
		}
	}
}
