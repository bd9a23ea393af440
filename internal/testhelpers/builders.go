// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ========================================
// Integration Builder
// ========================================

// IntegrationBuilder builds Integration instances for testing
type IntegrationBuilder struct {
	integration database.Integration
}

// NewIntegrationBuilder creates a new integration builder with defaults
func NewIntegrationBuilder() *IntegrationBuilder {
	return &IntegrationBuilder{
		integration: database.Integration{
			Name:                "test_integration",
			DisplayName:         "Test Integration",
			Category:            "payments",
			Environment:         "production",
			IsActive:            true,
			MonitoringEnabled:   true,
			CurrentHealthStatus: database.HealthStatusUnknown,
		},
	}
}

// WithName sets the integration name
func (b *IntegrationBuilder) WithName(name string) *IntegrationBuilder {
	b.integration.Name = name
	return b
}

// WithCategory sets the category
func (b *IntegrationBuilder) WithCategory(category string) *IntegrationBuilder {
	b.integration.Category = category
	return b
}

// WithStatus sets the current health status
func (b *IntegrationBuilder) WithStatus(status database.HealthStatus) *IntegrationBuilder {
	b.integration.CurrentHealthStatus = status
	return b
}

// Inactive marks the integration inactive
func (b *IntegrationBuilder) Inactive() *IntegrationBuilder {
	b.integration.IsActive = false
	return b
}

// MonitoringDisabled turns monitoring off
func (b *IntegrationBuilder) MonitoringDisabled() *IntegrationBuilder {
	b.integration.MonitoringEnabled = false
	return b
}

// Build returns the constructed integration
func (b *IntegrationBuilder) Build() database.Integration {
	return b.integration
}

// ========================================
// Alert Rule Builder
// ========================================

// AlertRuleBuilder builds AlertRule instances for testing
type AlertRuleBuilder struct {
	rule database.AlertRule
}

// NewAlertRuleBuilder creates a rule builder with defaults: a global
// low-uptime warning rule that auto-resolves.
func NewAlertRuleBuilder() *AlertRuleBuilder {
	return &AlertRuleBuilder{
		rule: database.AlertRule{
			RuleName:    "low_uptime",
			Metric:      database.MetricUptimePercentage,
			Comparator:  database.ComparatorLT,
			Threshold:   95,
			Severity:    database.SeverityWarning,
			AutoResolve: true,
			IsActive:    true,
		},
	}
}

// ForIntegration scopes the rule to one integration
func (b *AlertRuleBuilder) ForIntegration(id uint) *AlertRuleBuilder {
	b.rule.IntegrationID = &id
	return b
}

// WithRule sets metric, comparator and threshold in one call
func (b *AlertRuleBuilder) WithRule(metric database.AlertMetric, comparator database.Comparator, threshold float64) *AlertRuleBuilder {
	b.rule.Metric = metric
	b.rule.Comparator = comparator
	b.rule.Threshold = threshold
	return b
}

// WithSeverity sets the severity
func (b *AlertRuleBuilder) WithSeverity(severity database.Severity) *AlertRuleBuilder {
	b.rule.Severity = severity
	return b
}

// WithCooldown sets the cooldown in minutes
func (b *AlertRuleBuilder) WithCooldown(minutes int) *AlertRuleBuilder {
	b.rule.CooldownMinutes = minutes
	return b
}

// ManualResolve disables auto-resolution
func (b *AlertRuleBuilder) ManualResolve() *AlertRuleBuilder {
	b.rule.AutoResolve = false
	return b
}

// Build returns the constructed rule
func (b *AlertRuleBuilder) Build() database.AlertRule {
	return b.rule
}

// ========================================
// Health Check Builder
// ========================================

// CheckBuilder builds HealthCheck instances for testing
type CheckBuilder struct {
	check database.HealthCheck
}

// NewCheckBuilder creates a check builder defaulting to a successful
// automated probe.
func NewCheckBuilder(integrationID uint) *CheckBuilder {
	return &CheckBuilder{
		check: database.HealthCheck{
			IntegrationID: integrationID,
			CheckedAt:     time.Now().UTC(),
			Success:       true,
			CheckType:     "automated",
		},
	}
}

// At sets the check timestamp
func (b *CheckBuilder) At(at time.Time) *CheckBuilder {
	b.check.CheckedAt = at
	return b
}

// Failed marks the check unsuccessful with an error detail
func (b *CheckBuilder) Failed(detail string) *CheckBuilder {
	b.check.Success = false
	b.check.ErrorDetail = detail
	return b
}

// WithResponseTime sets the response time in milliseconds
func (b *CheckBuilder) WithResponseTime(ms int) *CheckBuilder {
	b.check.ResponseTimeMs = &ms
	return b
}

// Build returns the constructed check
func (b *CheckBuilder) Build() database.HealthCheck {
	return b.check
}

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds AlertIncident instances for testing
type IncidentBuilder struct {
	incident database.AlertIncident
}

var incidentSequence int

// NewIncidentBuilder creates an incident builder defaulting to an open
// warning incident.
func NewIncidentBuilder(integrationID, ruleID uint) *IncidentBuilder {
	incidentSequence++
	return &IncidentBuilder{
		incident: database.AlertIncident{
			UUID:          fmt.Sprintf("test-incident-%d", incidentSequence),
			IntegrationID: integrationID,
			RuleID:        ruleID,
			Severity:      database.SeverityWarning,
			Status:        database.IncidentStatusOpen,
			TriggeredAt:   time.Now().UTC(),
		},
	}
}

// WithSeverity sets the severity
func (b *IncidentBuilder) WithSeverity(severity database.Severity) *IncidentBuilder {
	b.incident.Severity = severity
	return b
}

// TriggeredAt sets the trigger time
func (b *IncidentBuilder) TriggeredAt(at time.Time) *IncidentBuilder {
	b.incident.TriggeredAt = at
	return b
}

// Resolved marks the incident resolved with the given duration
func (b *IncidentBuilder) Resolved(durationMinutes int) *IncidentBuilder {
	resolvedAt := b.incident.TriggeredAt.Add(time.Duration(durationMinutes) * time.Minute)
	b.incident.Status = database.IncidentStatusResolved
	b.incident.ResolvedAt = &resolvedAt
	b.incident.DurationMinutes = &durationMinutes
	return b
}

// Acknowledged marks the incident acknowledged by actor
func (b *IncidentBuilder) Acknowledged(actor string) *IncidentBuilder {
	now := time.Now().UTC()
	b.incident.Status = database.IncidentStatusAcknowledged
	b.incident.AcknowledgedAt = &now
	b.incident.AcknowledgedBy = actor
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.AlertIncident {
	return b.incident
}
