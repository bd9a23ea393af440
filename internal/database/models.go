package database

import (
	"time"

	"gorm.io/gorm"
)

// HealthStatus is the derived health state of an integration.
// It is recomputed from the latest closed snapshot plus open incident
// severities — never written ad hoc by callers.
type HealthStatus string

const (
	HealthStatusHealthy     HealthStatus = "healthy"
	HealthStatusWarning     HealthStatus = "warning"
	HealthStatusCritical    HealthStatus = "critical"
	HealthStatusUnknown     HealthStatus = "unknown"
	HealthStatusMaintenance HealthStatus = "maintenance"
)

// ValidHealthStatuses returns all valid health status values.
func ValidHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusHealthy,
		HealthStatusWarning,
		HealthStatusCritical,
		HealthStatusUnknown,
		HealthStatusMaintenance,
	}
}

// Integration represents one monitored external dependency.
type Integration struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	Name                string       `gorm:"uniqueIndex;size:128;not null" json:"name"` // snake_case identifier (e.g. "payment_gateway")
	DisplayName         string       `gorm:"size:255" json:"display_name"`
	Description         string       `gorm:"type:text" json:"description"`
	Category            string       `gorm:"size:64;index" json:"category"` // e.g. "payments", "communication"
	Environment         string       `gorm:"size:32;default:'production'" json:"environment"`
	// No column defaults on the bool pair: a default swallows an explicit
	// false on create, and every write path sets them anyway.
	IsActive            bool         `gorm:"index" json:"is_active"`
	MonitoringEnabled   bool         `json:"monitoring_enabled"`
	CurrentHealthStatus HealthStatus `gorm:"type:varchar(20);default:'unknown';index" json:"current_health_status"`
	ConsecutiveFailures int          `gorm:"default:0" json:"consecutive_failures"`
	LastHealthCheck     *time.Time   `json:"last_health_check,omitempty"`
	LastSuccessfulCheck *time.Time   `json:"last_successful_check,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// HealthCheck is one recorded probe outcome. Rows are written by the external
// probe collector and are immutable afterwards.
type HealthCheck struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	IntegrationID  uint      `gorm:"not null;index:idx_checks_integration_time,priority:1" json:"integration_id"`
	CheckedAt      time.Time `gorm:"not null;index:idx_checks_integration_time,priority:2" json:"checked_at"`
	Success        bool      `gorm:"not null" json:"success"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"` // nil when the probe never got a response
	StatusCode     *int      `json:"status_code,omitempty"`
	ErrorDetail    string    `gorm:"type:text" json:"error_detail,omitempty"`
	CheckType      string    `gorm:"size:20;default:'automated'" json:"check_type"` // automated or manual
	CreatedAt      time.Time `json:"created_at"`

	Integration Integration `gorm:"foreignKey:IntegrationID" json:"-"`
}

// WindowGranularity is the size of an aggregation bucket.
type WindowGranularity string

const (
	GranularityMinute WindowGranularity = "minute"
	GranularityHour   WindowGranularity = "hour"
	GranularityDay    WindowGranularity = "day"
)

// Duration returns the window length for the granularity, or 0 if unknown.
func (g WindowGranularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether g is a known granularity.
func (g WindowGranularity) Valid() bool {
	return g.Duration() > 0
}

// Aligned reports whether t falls exactly on a window boundary for g.
func (g WindowGranularity) Aligned(t time.Time) bool {
	return g.Valid() && t.Truncate(g.Duration()).Equal(t)
}

// MetricSnapshot is the immutable aggregate of one integration's checks over
// one window. Nullable metric fields use pointers so "no data" is
// distinguishable from zero.
type MetricSnapshot struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	IntegrationID     uint              `gorm:"not null;uniqueIndex:idx_snapshot_window,priority:1" json:"integration_id"`
	WindowStart       time.Time         `gorm:"not null;uniqueIndex:idx_snapshot_window,priority:2" json:"window_start"`
	WindowGranularity WindowGranularity `gorm:"type:varchar(10);not null;uniqueIndex:idx_snapshot_window,priority:3" json:"window_granularity"`
	TotalChecks       int               `gorm:"not null" json:"total_checks"`
	SuccessfulChecks  int               `gorm:"not null" json:"successful_checks"`
	FailedChecks      int               `gorm:"not null" json:"failed_checks"`
	UptimePercentage  *float64          `json:"uptime_percentage,omitempty"`
	ErrorRate         *float64          `json:"error_rate,omitempty"`
	AvgResponseTimeMs *float64          `json:"avg_response_time_ms,omitempty"`
	MinResponseTimeMs *int              `json:"min_response_time_ms,omitempty"`
	MaxResponseTimeMs *int              `json:"max_response_time_ms,omitempty"`
	P50ResponseTimeMs *int              `json:"p50_response_time_ms,omitempty"`
	P95ResponseTimeMs *int              `json:"p95_response_time_ms,omitempty"`
	P99ResponseTimeMs *int              `json:"p99_response_time_ms,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	Integration Integration `gorm:"foreignKey:IntegrationID" json:"-"`
}

// WindowEnd returns the exclusive end of the snapshot's window.
func (s *MetricSnapshot) WindowEnd() time.Time {
	return s.WindowStart.Add(s.WindowGranularity.Duration())
}

// WindowClosed reports whether the snapshot's window has ended as of now.
func (s *MetricSnapshot) WindowClosed(now time.Time) bool {
	return !now.Before(s.WindowEnd())
}

// AlertMetric identifies which value an alert rule compares.
type AlertMetric string

const (
	MetricUptimePercentage    AlertMetric = "uptime_percentage"
	MetricAvgResponseTime     AlertMetric = "avg_response_time_ms"
	MetricErrorRate           AlertMetric = "error_rate"
	MetricConsecutiveFailures AlertMetric = "consecutive_failures"
)

// Comparator is a threshold comparison operator.
type Comparator string

const (
	ComparatorGT  Comparator = ">"
	ComparatorGTE Comparator = ">="
	ComparatorLT  Comparator = "<"
	ComparatorLTE Comparator = "<="
	ComparatorEQ  Comparator = "=="
	ComparatorNEQ Comparator = "!="
)

// Compare applies the comparator to value and threshold.
// Unknown comparators never match.
func (c Comparator) Compare(value, threshold float64) bool {
	switch c {
	case ComparatorGT:
		return value > threshold
	case ComparatorGTE:
		return value >= threshold
	case ComparatorLT:
		return value < threshold
	case ComparatorLTE:
		return value <= threshold
	case ComparatorEQ:
		return value == threshold
	case ComparatorNEQ:
		return value != threshold
	default:
		return false
	}
}

// Severity is the severity attached to rules and the incidents they open.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityUrgent   Severity = "urgent"
)

// Rank returns an ordering weight for severity comparison.
func (s Severity) Rank() int {
	switch s {
	case SeverityUrgent:
		return 4
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AlertRule defines when a metric breach should open an incident.
// A nil IntegrationID makes the rule a global default applied to every
// integration without a rule for the same metric.
type AlertRule struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	IntegrationID   *uint       `gorm:"index" json:"integration_id,omitempty"`
	RuleName        string      `gorm:"size:128;not null" json:"rule_name"`
	Metric          AlertMetric `gorm:"type:varchar(40);not null" json:"metric"`
	Comparator      Comparator  `gorm:"type:varchar(4);not null" json:"comparator"`
	Threshold       float64     `gorm:"not null" json:"threshold"`
	Severity        Severity    `gorm:"type:varchar(20);not null;default:'warning'" json:"severity"`
	// No column default: a zero-value create must store false, and every
	// write path sets this explicitly.
	AutoResolve     bool        `json:"auto_resolve"`
	CooldownMinutes int         `gorm:"default:0" json:"cooldown_minutes"`
	IsActive        bool        `gorm:"index" json:"is_active"`
	LastTriggered   *time.Time  `json:"last_triggered,omitempty"`
	TriggerCount    int         `gorm:"default:0" json:"trigger_count"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Breaches reports whether the given metric value violates the rule.
func (r *AlertRule) Breaches(value float64) bool {
	return r.Comparator.Compare(value, r.Threshold)
}

// InCooldown reports whether the rule fired within its cooldown window.
func (r *AlertRule) InCooldown(now time.Time) bool {
	if r.CooldownMinutes <= 0 || r.LastTriggered == nil {
		return false
	}
	return now.Before(r.LastTriggered.Add(time.Duration(r.CooldownMinutes) * time.Minute))
}

// IncidentStatus is the lifecycle state of an alert incident.
// Transitions are monotonic: open -> acknowledged -> resolved, with
// open -> resolved permitted for auto-recovery.
type IncidentStatus string

const (
	IncidentStatusOpen         IncidentStatus = "open"
	IncidentStatusAcknowledged IncidentStatus = "acknowledged"
	IncidentStatusResolved     IncidentStatus = "resolved"
)

// Active reports whether the incident still counts against its rule.
func (s IncidentStatus) Active() bool {
	return s == IncidentStatusOpen || s == IncidentStatusAcknowledged
}

// AlertIncident is a tracked period during which an integration breached an
// alert rule. The partial unique index guarantees at most one non-resolved
// incident per (integration, rule) even under concurrent evaluation.
type AlertIncident struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            string         `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	IntegrationID   uint           `gorm:"not null;index;uniqueIndex:idx_active_incident,priority:1,where:status <> 'resolved'" json:"integration_id"`
	RuleID          uint           `gorm:"not null;uniqueIndex:idx_active_incident,priority:2,where:status <> 'resolved'" json:"rule_id"`
	Severity        Severity       `gorm:"type:varchar(20);not null" json:"severity"`
	Status          IncidentStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	AlertMessage    string         `gorm:"type:text" json:"alert_message"`
	TriggerValue    float64        `json:"trigger_value"`
	ThresholdValue  float64        `json:"threshold_value"`
	TriggeredAt     time.Time      `gorm:"not null;index" json:"triggered_at"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string         `gorm:"size:128" json:"acknowledged_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy      string         `gorm:"size:128" json:"resolved_by,omitempty"`
	ResolutionNote  string         `gorm:"type:text" json:"resolution_note,omitempty"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"` // set iff status == resolved
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Integration Integration `gorm:"foreignKey:IntegrationID" json:"-"`
	Rule        AlertRule   `gorm:"foreignKey:RuleID" json:"-"`
}

// BeforeCreate sets TriggeredAt when the caller left it zero.
func (i *AlertIncident) BeforeCreate(tx *gorm.DB) error {
	if i.TriggeredAt.IsZero() {
		i.TriggeredAt = time.Now().UTC()
	}
	return nil
}

func (Integration) TableName() string {
	return "integrations"
}

func (HealthCheck) TableName() string {
	return "health_checks"
}

func (MetricSnapshot) TableName() string {
	return "metric_snapshots"
}

func (AlertRule) TableName() string {
	return "alert_rules"
}

func (AlertIncident) TableName() string {
	return "alert_incidents"
}
