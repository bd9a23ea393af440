package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// CheckEvent is one probe outcome crossing the collector boundary. The
// target integration is identified by id or, failing that, by name.
type CheckEvent struct {
	IntegrationID   uint
	IntegrationName string
	Success         bool
	ResponseTimeMs  *int
	StatusCode      *int
	ErrorDetail     string
	CheckType       string
	CheckedAt       *time.Time
}

// Ingestor records incoming health checks and reacts to them: bookkeeping
// counters, rule evaluation against live state, and cache invalidation.
type Ingestor struct {
	db        *gorm.DB
	incidents *IncidentManager
	queries   *QueryService
	now       func() time.Time
}

// NewIngestor creates the collector-boundary ingest service. queries may be
// nil when no cache invalidation is needed.
func NewIngestor(db *gorm.DB, incidents *IncidentManager, queries *QueryService) *Ingestor {
	return &Ingestor{db: db, incidents: incidents, queries: queries, now: time.Now}
}

// Record persists one health check and immediately evaluates alert rules
// against the integration's refreshed live state. Monitoring-disabled
// integrations still store the check but skip evaluation.
func (ing *Ingestor) Record(ctx context.Context, event CheckEvent) (*database.HealthCheck, error) {
	db := ing.db.WithContext(ctx)

	integration, err := ing.resolveIntegration(db, event)
	if err != nil {
		return nil, err
	}

	checkType := event.CheckType
	if checkType == "" {
		checkType = "automated"
	}
	checkedAt := ing.now().UTC()
	if event.CheckedAt != nil {
		checkedAt = event.CheckedAt.UTC()
	}

	check := &database.HealthCheck{
		IntegrationID:  integration.ID,
		CheckedAt:      checkedAt,
		Success:        event.Success,
		ResponseTimeMs: event.ResponseTimeMs,
		StatusCode:     event.StatusCode,
		ErrorDetail:    event.ErrorDetail,
		CheckType:      checkType,
	}
	if err := database.RecordHealthCheck(db, check); err != nil {
		return nil, storeErr(err)
	}

	// Reload so rule evaluation sees the updated failure streak.
	if err := db.First(integration, integration.ID).Error; err != nil {
		return nil, storeErr(err)
	}

	if integration.MonitoringEnabled {
		if err := ing.evaluate(ctx, integration); err != nil {
			return nil, err
		}
	}

	if ing.queries != nil {
		ing.queries.InvalidateListings()
	}
	return check, nil
}

// evaluate runs the integration's applicable rules against its newest
// snapshot plus live counters.
func (ing *Ingestor) evaluate(ctx context.Context, integration *database.Integration) error {
	db := ing.db.WithContext(ctx)

	rules, err := database.RulesForIntegration(db, integration.ID)
	if err != nil {
		return storeErr(err)
	}
	if len(rules) == 0 {
		return nil
	}

	snapshots, err := database.LatestSnapshots(db, []uint{integration.ID}, database.GranularityHour)
	if err != nil {
		return storeErr(err)
	}
	return ing.incidents.Evaluate(ctx, integration, snapshots[integration.ID], rules)
}

func (ing *Ingestor) resolveIntegration(db *gorm.DB, event CheckEvent) (*database.Integration, error) {
	var integration database.Integration
	var err error

	switch {
	case event.IntegrationID != 0:
		err = db.First(&integration, event.IntegrationID).Error
	case event.IntegrationName != "":
		err = db.Where("name = ?", event.IntegrationName).First(&integration).Error
	default:
		return nil, NewValidationError("integration", "an integration id or name is required")
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("integration %q: %w", integrationRef(event), ErrNotFound)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &integration, nil
}

func integrationRef(event CheckEvent) string {
	if event.IntegrationID != 0 {
		return fmt.Sprintf("%d", event.IntegrationID)
	}
	return event.IntegrationName
}
