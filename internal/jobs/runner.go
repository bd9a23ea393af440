// Package jobs schedules the periodic maintenance work: rolling raw health
// checks into hourly snapshots and sweeping alert rules over every monitored
// integration.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/services"
)

// Runner owns the background scheduler. The evaluation sweep starts half an
// interval after aggregation so it sees freshly closed snapshots.
type Runner struct {
	db         *gorm.DB
	aggregator *services.Aggregator
	incidents  *services.IncidentManager
	queries    *services.QueryService
	interval   time.Duration
	scheduler  gocron.Scheduler
	now        func() time.Time
}

// NewRunner creates a runner. queries may be nil when no cache needs
// invalidating after batch runs.
func NewRunner(db *gorm.DB, aggregator *services.Aggregator, incidents *services.IncidentManager, queries *services.QueryService, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Runner{
		db:         db,
		aggregator: aggregator,
		incidents:  incidents,
		queries:    queries,
		interval:   interval,
		now:        time.Now,
	}
}

// Start registers both jobs and starts the scheduler.
func (r *Runner) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.runAggregation),
		gocron.WithName("metrics-aggregation"),
	)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.runEvaluationSweep),
		gocron.WithName("incident-evaluation"),
		gocron.WithStartAt(gocron.WithStartDateTime(r.now().Add(r.interval/2))),
	)
	if err != nil {
		return err
	}

	r.scheduler = scheduler
	scheduler.Start()
	log.Info().Dur("interval", r.interval).Msg("background jobs started")
	return nil
}

// Shutdown stops the scheduler and waits for running jobs to finish.
func (r *Runner) Shutdown() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}

func (r *Runner) runAggregation() {
	ctx := context.Background()
	if _, err := r.AggregateCurrentWindow(ctx); err != nil {
		var partial *services.PartialAggregationFailure
		if errors.As(err, &partial) {
			log.Warn().Int("failed", len(partial.Failures)).Msg("aggregation run completed with failures")
			return
		}
		log.Error().Err(err).Msg("aggregation run failed")
	}
}

func (r *Runner) runEvaluationSweep() {
	ctx := context.Background()
	evaluated, err := r.EvaluateAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("incident evaluation sweep failed")
		return
	}
	log.Debug().Int("evaluated", evaluated).Msg("incident evaluation sweep completed")
}

// AggregateCurrentWindow aggregates the in-progress hour for every active,
// monitored integration. Re-running inside the same hour recomputes the open
// window; once the hour closes the final run becomes the immutable snapshot.
func (r *Runner) AggregateCurrentWindow(ctx context.Context) (*services.AggregationRun, error) {
	windowStart := r.now().UTC().Truncate(time.Hour)

	run, err := r.aggregator.AggregateAll(ctx, windowStart, database.GranularityHour)
	if run != nil && run.Aggregated > 0 && r.queries != nil {
		r.queries.InvalidateListings()
	}
	if err != nil {
		return run, err
	}

	log.Info().
		Time("window_start", windowStart).
		Int("aggregated", run.Aggregated).
		Int("empty", run.Empty).
		Msg("aggregation run completed")
	return run, nil
}

// EvaluateAll runs every monitored integration's rules against its newest
// hourly snapshot and live counters, then refreshes the derived health
// status. One integration's failure never aborts the sweep.
func (r *Runner) EvaluateAll(ctx context.Context) (int, error) {
	db := r.db.WithContext(ctx)

	var integrations []database.Integration
	err := db.Where("is_active = ? AND monitoring_enabled = ?", true, true).
		Find(&integrations).Error
	if err != nil {
		return 0, err
	}

	evaluated := 0
	for i := range integrations {
		integration := &integrations[i]
		if err := r.evaluateOne(ctx, integration); err != nil {
			log.Warn().Err(err).Uint("integration_id", integration.ID).
				Msg("evaluation failed for integration")
			continue
		}
		evaluated++
	}

	if r.queries != nil {
		r.queries.InvalidateListings()
	}
	return evaluated, nil
}

func (r *Runner) evaluateOne(ctx context.Context, integration *database.Integration) error {
	db := r.db.WithContext(ctx)

	rules, err := database.RulesForIntegration(db, integration.ID)
	if err != nil {
		return err
	}

	if len(rules) > 0 {
		snapshots, err := database.LatestSnapshots(db, []uint{integration.ID}, database.GranularityHour)
		if err != nil {
			return err
		}
		if err := r.incidents.Evaluate(ctx, integration, snapshots[integration.ID], rules); err != nil {
			return err
		}
	}

	return r.incidents.RefreshHealthStatus(ctx, integration)
}
