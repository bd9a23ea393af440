package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateIncidentIfAbsent inserts an incident unless a non-resolved incident
// already exists for the same (integration, rule) pair. The conflict target
// is the partial unique index idx_active_incident, so concurrent evaluators
// racing on the same breach converge on a single open incident. Returns true
// when this call created the row.
func CreateIncidentIfAbsent(db *gorm.DB, incident *AlertIncident) (bool, error) {
	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "integration_id"},
			{Name: "rule_id"},
		},
		// The predicate must match idx_active_incident verbatim so SQLite can
		// resolve the conflict target against the partial index.
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "status <> 'resolved'"},
		}},
		DoNothing: true,
	}).Create(incident)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ActiveIncidentForRule returns the open or acknowledged incident for a
// (integration, rule) pair, or gorm.ErrRecordNotFound.
func ActiveIncidentForRule(db *gorm.DB, integrationID, ruleID uint) (*AlertIncident, error) {
	var incident AlertIncident
	err := db.Where("integration_id = ? AND rule_id = ? AND status <> ?",
		integrationID, ruleID, IncidentStatusResolved).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// ActiveIncidents returns all open or acknowledged incidents for an
// integration, newest first.
func ActiveIncidents(db *gorm.DB, integrationID uint) ([]AlertIncident, error) {
	var incidents []AlertIncident
	err := db.Where("integration_id = ? AND status <> ?", integrationID, IncidentStatusResolved).
		Order("triggered_at DESC").
		Find(&incidents).Error
	return incidents, err
}

// ActiveIncidentCounts batch-counts open/acknowledged incidents per
// integration across the given set in one grouped query.
func ActiveIncidentCounts(db *gorm.DB, integrationIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(integrationIDs))
	if len(integrationIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		IntegrationID uint
		Count         int
	}
	err := db.Model(&AlertIncident{}).
		Select("integration_id, COUNT(*) AS count").
		Where("integration_id IN ? AND status <> ?", integrationIDs, IncidentStatusResolved).
		Group("integration_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.IntegrationID] = row.Count
	}
	return counts, nil
}

// RecentResolvedIncidents returns the most recently resolved incidents with a
// recorded duration, newest first, capped at limit. MTTR is computed over
// this bounded window rather than all-time history.
func RecentResolvedIncidents(db *gorm.DB, integrationID uint, limit int) ([]AlertIncident, error) {
	var incidents []AlertIncident
	err := db.Where("integration_id = ? AND status = ? AND duration_minutes IS NOT NULL",
		integrationID, IncidentStatusResolved).
		Order("resolved_at DESC").
		Limit(limit).
		Find(&incidents).Error
	return incidents, err
}

// IncidentsTriggeredSince counts an integration's incidents triggered at or
// after the given time, regardless of state.
func IncidentsTriggeredSince(db *gorm.DB, integrationID uint, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&AlertIncident{}).
		Where("integration_id = ? AND triggered_at >= ?", integrationID, since).
		Count(&count).Error
	return count, err
}

// LastIncident returns the most recently triggered incident for an
// integration, or gorm.ErrRecordNotFound when it has none.
func LastIncident(db *gorm.DB, integrationID uint) (*AlertIncident, error) {
	var incident AlertIncident
	err := db.Where("integration_id = ?", integrationID).
		Order("triggered_at DESC").
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// RulesForIntegration returns the active rules that apply to an integration:
// its own rules plus global defaults for metrics it has no rule of its own
// for.
func RulesForIntegration(db *gorm.DB, integrationID uint) ([]AlertRule, error) {
	var rules []AlertRule
	err := db.Where("is_active = ? AND (integration_id = ? OR integration_id IS NULL)",
		true, integrationID).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[AlertMetric]bool, len(rules))
	filtered := make([]AlertRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IntegrationID != nil {
			seen[rule.Metric] = true
			filtered = append(filtered, rule)
		}
	}
	for _, rule := range rules {
		if rule.IntegrationID == nil && !seen[rule.Metric] {
			filtered = append(filtered, rule)
		}
	}
	return filtered, nil
}
