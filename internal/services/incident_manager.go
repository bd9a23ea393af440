package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Notifier receives incident lifecycle events. Channel formats are outside
// the engine; implementations decide how to deliver.
type Notifier interface {
	IncidentOpened(integration *database.Integration, incident *database.AlertIncident)
	IncidentResolved(integration *database.Integration, incident *database.AlertIncident)
}

// IncidentManager owns the alert-incident state machine:
// open -> acknowledged -> resolved, with open -> resolved allowed for
// auto-recovery.
type IncidentManager struct {
	db         *gorm.DB
	notifier   Notifier // may be nil
	mttrWindow int
	now        func() time.Time
}

// NewIncidentManager creates an incident manager. mttrWindow bounds how many
// recently resolved incidents feed the MTTR average.
func NewIncidentManager(db *gorm.DB, notifier Notifier, mttrWindow int) *IncidentManager {
	if mttrWindow <= 0 {
		mttrWindow = 10
	}
	return &IncidentManager{db: db, notifier: notifier, mttrWindow: mttrWindow, now: time.Now}
}

// Evaluate checks every applicable rule against the latest snapshot and the
// integration's live counters, opening incidents on new breaches and
// auto-resolving cleared ones. Returns the first evaluation error so the
// caller's next scheduled pass retries; a breach is never marked handled on
// error.
func (m *IncidentManager) Evaluate(ctx context.Context, integration *database.Integration, snapshot *database.MetricSnapshot, rules []database.AlertRule) error {
	db := m.db.WithContext(ctx)

	var firstErr error
	for i := range rules {
		rule := &rules[i]
		value, ok := metricValue(rule.Metric, integration, snapshot)
		if !ok {
			continue // no data for this metric yet
		}

		var err error
		if rule.Breaches(value) {
			err = m.handleBreach(db, integration, rule, value)
		} else if rule.AutoResolve {
			err = m.resolveActive(db, integration, rule, "auto-resolved: condition no longer met")
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := m.RefreshHealthStatus(ctx, integration); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// handleBreach opens an incident for the rule unless one is already active
// or the rule is cooling down. The conditional insert makes concurrent
// evaluations of the same breach converge on a single incident.
func (m *IncidentManager) handleBreach(db *gorm.DB, integration *database.Integration, rule *database.AlertRule, value float64) error {
	now := m.now().UTC()

	incident := &database.AlertIncident{
		UUID:           uuid.NewString(),
		IntegrationID:  integration.ID,
		RuleID:         rule.ID,
		Severity:       rule.Severity,
		Status:         database.IncidentStatusOpen,
		AlertMessage:   breachMessage(integration, rule, value),
		TriggerValue:   value,
		ThresholdValue: rule.Threshold,
		TriggeredAt:    now,
	}

	if rule.InCooldown(now) {
		// A still-active incident keeps tracking the breach; a fresh breach
		// inside the cooldown window stays unreported until cooldown ends.
		if err := m.updateActiveTriggerValue(db, integration.ID, rule.ID, value); err != nil {
			return err
		}
		return nil
	}

	created, err := database.CreateIncidentIfAbsent(db, incident)
	if err != nil {
		return storeErr(err)
	}
	if !created {
		return m.updateActiveTriggerValue(db, integration.ID, rule.ID, value)
	}

	err = db.Model(rule).Updates(map[string]interface{}{
		"last_triggered": now,
		"trigger_count":  gorm.Expr("trigger_count + 1"),
	}).Error
	if err != nil {
		return storeErr(err)
	}

	log.Info().Str("incident", incident.UUID).Uint("integration_id", integration.ID).
		Str("rule", rule.RuleName).Float64("value", value).
		Msg("incident opened")
	if m.notifier != nil {
		m.notifier.IncidentOpened(integration, incident)
	}
	return nil
}

// updateActiveTriggerValue records the latest observed value on an already
// active incident without creating a duplicate.
func (m *IncidentManager) updateActiveTriggerValue(db *gorm.DB, integrationID, ruleID uint, value float64) error {
	err := db.Model(&database.AlertIncident{}).
		Where("integration_id = ? AND rule_id = ? AND status <> ?",
			integrationID, ruleID, database.IncidentStatusResolved).
		Update("trigger_value", value).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// resolveActive resolves the active incident for a rule, if any.
func (m *IncidentManager) resolveActive(db *gorm.DB, integration *database.Integration, rule *database.AlertRule, note string) error {
	incident, err := database.ActiveIncidentForRule(db, integration.ID, rule.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(err)
	}

	if err := m.resolveIncident(db, incident, "", note); err != nil {
		return err
	}

	log.Info().Str("incident", incident.UUID).Uint("integration_id", integration.ID).
		Str("rule", rule.RuleName).Msg("incident auto-resolved")
	if m.notifier != nil {
		m.notifier.IncidentResolved(integration, incident)
	}
	return nil
}

// Acknowledge moves an open incident to acknowledged. Any other starting
// state is an InvalidStateTransitionError.
func (m *IncidentManager) Acknowledge(ctx context.Context, incidentID uint, actor string) (*database.AlertIncident, error) {
	db := m.db.WithContext(ctx)

	incident, err := m.getIncident(db, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.Status != database.IncidentStatusOpen {
		return nil, &InvalidStateTransitionError{
			IncidentID: incidentID,
			From:       incident.Status,
			To:         database.IncidentStatusAcknowledged,
		}
	}

	now := m.now().UTC()
	err = db.Model(incident).Updates(map[string]interface{}{
		"status":          database.IncidentStatusAcknowledged,
		"acknowledged_at": now,
		"acknowledged_by": actor,
	}).Error
	if err != nil {
		return nil, storeErr(err)
	}

	incident.Status = database.IncidentStatusAcknowledged
	incident.AcknowledgedAt = &now
	incident.AcknowledgedBy = actor
	return incident, nil
}

// Resolve moves an open or acknowledged incident to resolved, setting
// resolved_at and duration_minutes. Resolving a resolved incident is an
// InvalidStateTransitionError.
func (m *IncidentManager) Resolve(ctx context.Context, incidentID uint, resolvedBy, note string) (*database.AlertIncident, error) {
	db := m.db.WithContext(ctx)

	incident, err := m.getIncident(db, incidentID)
	if err != nil {
		return nil, err
	}
	if !incident.Status.Active() {
		return nil, &InvalidStateTransitionError{
			IncidentID: incidentID,
			From:       incident.Status,
			To:         database.IncidentStatusResolved,
		}
	}

	if err := m.resolveIncident(db, incident, resolvedBy, note); err != nil {
		return nil, err
	}
	return incident, nil
}

// resolveIncident performs the shared resolution write and mutates incident
// to match.
func (m *IncidentManager) resolveIncident(db *gorm.DB, incident *database.AlertIncident, resolvedBy, note string) error {
	now := m.now().UTC()
	duration := int(now.Sub(incident.TriggeredAt).Minutes())
	if duration < 0 {
		duration = 0
	}

	err := db.Model(incident).Updates(map[string]interface{}{
		"status":           database.IncidentStatusResolved,
		"resolved_at":      now,
		"resolved_by":      resolvedBy,
		"resolution_note":  note,
		"duration_minutes": duration,
	}).Error
	if err != nil {
		return storeErr(err)
	}

	incident.Status = database.IncidentStatusResolved
	incident.ResolvedAt = &now
	incident.ResolvedBy = resolvedBy
	incident.ResolutionNote = note
	incident.DurationMinutes = &duration
	return nil
}

// MeanTimeToRecovery averages duration_minutes over the most recently
// resolved incidents, bounded by the configured window. Returns 0 when
// nothing has been resolved yet.
func (m *IncidentManager) MeanTimeToRecovery(ctx context.Context, integrationID uint, limit int) (float64, error) {
	if limit <= 0 {
		limit = m.mttrWindow
	}

	incidents, err := database.RecentResolvedIncidents(m.db.WithContext(ctx), integrationID, limit)
	if err != nil {
		return 0, storeErr(err)
	}
	if len(incidents) == 0 {
		return 0, nil
	}

	var total int
	for _, incident := range incidents {
		if incident.DurationMinutes != nil {
			total += *incident.DurationMinutes
		}
	}
	return float64(total) / float64(len(incidents)), nil
}

// RefreshHealthStatus recomputes the integration's derived health status
// from the latest closed snapshot plus active incident severities, and
// persists it when it changed.
func (m *IncidentManager) RefreshHealthStatus(ctx context.Context, integration *database.Integration) error {
	db := m.db.WithContext(ctx)

	status, err := m.deriveHealthStatus(db, integration)
	if err != nil {
		return err
	}
	if status == integration.CurrentHealthStatus {
		return nil
	}

	err = db.Model(&database.Integration{}).Where("id = ?", integration.ID).
		Update("current_health_status", status).Error
	if err != nil {
		return storeErr(err)
	}

	log.Info().Uint("integration_id", integration.ID).
		Str("from", string(integration.CurrentHealthStatus)).
		Str("to", string(status)).
		Msg("health status changed")
	integration.CurrentHealthStatus = status
	return nil
}

func (m *IncidentManager) deriveHealthStatus(db *gorm.DB, integration *database.Integration) (database.HealthStatus, error) {
	if !integration.IsActive {
		return database.HealthStatusMaintenance, nil
	}

	incidents, err := database.ActiveIncidents(db, integration.ID)
	if err != nil {
		return database.HealthStatusUnknown, storeErr(err)
	}

	worst := database.Severity("")
	for _, incident := range incidents {
		if incident.Severity.Rank() > worst.Rank() {
			worst = incident.Severity
		}
	}
	switch worst {
	case database.SeverityUrgent, database.SeverityCritical:
		return database.HealthStatusCritical, nil
	case database.SeverityWarning, database.SeverityInfo:
		return database.HealthStatusWarning, nil
	}

	_, err = database.LatestClosedSnapshot(db, integration.ID, database.GranularityHour, m.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.HealthStatusUnknown, nil
	}
	if err != nil {
		return database.HealthStatusUnknown, storeErr(err)
	}
	return database.HealthStatusHealthy, nil
}

func (m *IncidentManager) getIncident(db *gorm.DB, incidentID uint) (*database.AlertIncident, error) {
	var incident database.AlertIncident
	err := db.First(&incident, incidentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("incident %d: %w", incidentID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &incident, nil
}

// metricValue extracts the rule's metric from the snapshot or the
// integration's live counters. The second return is false when the metric
// has no recorded value yet.
func metricValue(metric database.AlertMetric, integration *database.Integration, snapshot *database.MetricSnapshot) (float64, bool) {
	switch metric {
	case database.MetricConsecutiveFailures:
		return float64(integration.ConsecutiveFailures), true
	case database.MetricUptimePercentage:
		if snapshot == nil || snapshot.UptimePercentage == nil {
			return 0, false
		}
		return *snapshot.UptimePercentage, true
	case database.MetricAvgResponseTime:
		if snapshot == nil || snapshot.AvgResponseTimeMs == nil {
			return 0, false
		}
		return *snapshot.AvgResponseTimeMs, true
	case database.MetricErrorRate:
		if snapshot == nil || snapshot.ErrorRate == nil {
			return 0, false
		}
		return *snapshot.ErrorRate, true
	default:
		return 0, false
	}
}

func breachMessage(integration *database.Integration, rule *database.AlertRule, value float64) string {
	return fmt.Sprintf("%s: %s - %s %s %g (current: %g)",
		integration.Name, rule.RuleName, rule.Metric, rule.Comparator, rule.Threshold, value)
}
