package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Aggregator rolls raw health checks into per-window metric snapshots.
type Aggregator struct {
	db *gorm.DB
	// timeout bounds a single integration's aggregation inside a batch run.
	timeout time.Duration
	// now is injectable so window-closed decisions are testable.
	now func() time.Time
}

// NewAggregator creates an aggregator with the given per-integration time
// budget for batch runs.
func NewAggregator(db *gorm.DB, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Aggregator{db: db, timeout: timeout, now: time.Now}
}

// Aggregate computes and upserts the snapshot for one integration and
// window. Re-running while the window is open recomputes idempotently;
// re-running after the window closed never alters the stored snapshot. A
// window containing no checks produces no snapshot at all, so "no data" is
// distinguishable from 0% uptime.
func (a *Aggregator) Aggregate(ctx context.Context, integrationID uint, windowStart time.Time, granularity database.WindowGranularity) (*database.MetricSnapshot, error) {
	if !granularity.Valid() {
		return nil, NewValidationError("granularity", "must be one of minute, hour, day")
	}
	if !granularity.Aligned(windowStart) {
		return nil, NewValidationError("window_start", "must align to the granularity boundary")
	}

	db := a.db.WithContext(ctx)
	windowEnd := windowStart.Add(granularity.Duration())

	// Closed windows are history: if the snapshot exists, return it
	// untouched. A missing snapshot for a closed window is backfilled once.
	windowClosed := !a.now().Before(windowEnd)
	if windowClosed {
		existing, err := database.SnapshotByWindow(db, integrationID, windowStart, granularity)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storeErr(err)
		}
	}

	checks, err := database.ChecksInWindow(db, integrationID, windowStart, windowEnd)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(checks) == 0 {
		return nil, nil
	}

	snapshot := buildSnapshot(integrationID, windowStart, granularity, checks)
	if err := database.UpsertSnapshot(db, snapshot); err != nil {
		return nil, storeErr(err)
	}
	return snapshot, nil
}

// AggregationRun summarizes one batch aggregation pass.
type AggregationRun struct {
	WindowStart time.Time
	Granularity database.WindowGranularity
	Aggregated  int
	Empty       int
	Failures    map[uint]error
}

// AggregateAll runs Aggregate for every active, monitored integration. A
// failure on one integration never aborts the rest: each one gets its own
// time budget and errors are collected into a PartialAggregationFailure.
func (a *Aggregator) AggregateAll(ctx context.Context, windowStart time.Time, granularity database.WindowGranularity) (*AggregationRun, error) {
	var integrations []database.Integration
	err := a.db.WithContext(ctx).
		Where("is_active = ? AND monitoring_enabled = ?", true, true).
		Find(&integrations).Error
	if err != nil {
		return nil, storeErr(err)
	}

	run := &AggregationRun{
		WindowStart: windowStart,
		Granularity: granularity,
		Failures:    make(map[uint]error),
	}

	for _, integration := range integrations {
		integrationCtx, cancel := context.WithTimeout(ctx, a.timeout)
		snapshot, err := a.Aggregate(integrationCtx, integration.ID, windowStart, granularity)
		cancel()

		switch {
		case err != nil:
			run.Failures[integration.ID] = err
			log.Warn().Err(err).Uint("integration_id", integration.ID).
				Time("window_start", windowStart).
				Msg("aggregation failed for integration")
		case snapshot == nil:
			run.Empty++
		default:
			run.Aggregated++
		}
	}

	if len(run.Failures) > 0 {
		return run, &PartialAggregationFailure{Failures: run.Failures}
	}
	return run, nil
}

// buildSnapshot computes window metrics from the checks. Checks without a
// recorded response time count toward uptime but are excluded from the
// timing statistics.
func buildSnapshot(integrationID uint, windowStart time.Time, granularity database.WindowGranularity, checks []database.HealthCheck) *database.MetricSnapshot {
	total := len(checks)
	successful := 0
	times := make([]int, 0, total)
	for _, c := range checks {
		if c.Success {
			successful++
		}
		if c.ResponseTimeMs != nil {
			times = append(times, *c.ResponseTimeMs)
		}
	}
	failed := total - successful

	uptime := float64(successful) / float64(total) * 100
	errorRate := float64(failed) / float64(total)

	snapshot := &database.MetricSnapshot{
		IntegrationID:     integrationID,
		WindowStart:       windowStart,
		WindowGranularity: granularity,
		TotalChecks:       total,
		SuccessfulChecks:  successful,
		FailedChecks:      failed,
		UptimePercentage:  &uptime,
		ErrorRate:         &errorRate,
	}

	if len(times) > 0 {
		sort.Ints(times)
		avg := meanInts(times)
		snapshot.AvgResponseTimeMs = &avg
		snapshot.MinResponseTimeMs = intPtr(times[0])
		snapshot.MaxResponseTimeMs = intPtr(times[len(times)-1])
		snapshot.P50ResponseTimeMs = intPtr(percentile(times, 0.50))
		snapshot.P95ResponseTimeMs = intPtr(percentile(times, 0.95))
		snapshot.P99ResponseTimeMs = intPtr(percentile(times, 0.99))
	}

	return snapshot
}

// percentile returns the order statistic at quantile q from a sorted slice.
func percentile(sorted []int, q float64) int {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func meanInts(values []int) float64 {
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func intPtr(v int) *int {
	return &v
}
