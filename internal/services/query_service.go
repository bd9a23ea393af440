package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/database"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	listCachePrefix = "integrations:list:"
)

// IntegrationFilters is the validated filter set for listing integrations.
// Unknown or malformed values are rejected here, before any query runs.
type IntegrationFilters struct {
	Status    string `json:"status,omitempty"`
	Category  string `json:"category,omitempty"`
	Search    string `json:"search,omitempty"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

var listSortFields = map[string]bool{
	"name":                  true,
	"display_name":          true,
	"category":              true,
	"current_health_status": true,
	"created_at":            true,
	"updated_at":            true,
}

// Normalize applies defaults and canonicalizes free-text fields so that
// equivalent filter sets produce the same cache key.
func (f *IntegrationFilters) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.SortBy == "" {
		f.SortBy = "name"
	}
	if f.SortOrder == "" {
		f.SortOrder = "asc"
	}
	f.SortOrder = strings.ToLower(f.SortOrder)
	f.Search = strings.TrimSpace(strings.ToLower(f.Search))
	f.Category = strings.TrimSpace(strings.ToLower(f.Category))
	f.Status = strings.TrimSpace(strings.ToLower(f.Status))
}

// Validate rejects out-of-range or unknown filter values.
func (f *IntegrationFilters) Validate() error {
	if f.Limit > maxListLimit {
		return NewValidationError("limit", fmt.Sprintf("must be at most %d", maxListLimit))
	}
	if f.Status != "" {
		valid := false
		for _, s := range database.ValidHealthStatuses() {
			if string(s) == f.Status {
				valid = true
				break
			}
		}
		if !valid {
			return NewValidationError("status", "is not a known health status")
		}
	}
	if !listSortFields[f.SortBy] {
		return NewValidationError("sort_by", "is not a sortable field")
	}
	if f.SortOrder != "asc" && f.SortOrder != "desc" {
		return NewValidationError("sort_order", "must be asc or desc")
	}
	return nil
}

// CacheKey is a deterministic function of the normalized filter set.
func (f *IntegrationFilters) CacheKey() string {
	return fmt.Sprintf("%sstatus=%s&category=%s&search=%s&page=%d&limit=%d&sort=%s.%s",
		listCachePrefix, f.Status, f.Category, f.Search, f.Page, f.Limit, f.SortBy, f.SortOrder)
}

// IntegrationOverview is one integration enriched with its latest snapshot
// and the number of open or acknowledged incidents.
type IntegrationOverview struct {
	database.Integration
	LatestSnapshot *database.MetricSnapshot `json:"latest_snapshot,omitempty"`
	OpenIncidents  int                      `json:"open_incidents"`
}

// ListMeta carries pagination metadata for a list response.
type ListMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// IntegrationList is the composed, paginated listing payload.
type IntegrationList struct {
	Data []IntegrationOverview `json:"data"`
	Meta ListMeta              `json:"meta"`
}

// Timeframe is a supported metrics lookback window.
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe6h  Timeframe = "6h"
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
)

// timeframeLookbacks maps a timeframe to its lookback duration. The snapshot
// series is not filtered by granularity: every snapshot whose window starts
// inside the lookback is served, whatever bucket size produced it.
var timeframeLookbacks = map[Timeframe]time.Duration{
	Timeframe1h:  time.Hour,
	Timeframe6h:  6 * time.Hour,
	Timeframe24h: 24 * time.Hour,
	Timeframe7d:  7 * 24 * time.Hour,
	Timeframe30d: 30 * 24 * time.Hour,
}

// MetricsSummary condenses an integration's recent behavior for dashboards.
type MetricsSummary struct {
	CurrentStatus     database.HealthStatus `json:"current_status"`
	OverallUptime     float64               `json:"overall_uptime"`
	AvgResponseTimeMs float64               `json:"avg_response_time_ms"`
	TotalIncidents24h int64                 `json:"total_incidents_24h"`
	MTTRMinutes       float64               `json:"mttr_minutes"`
	LastIncidentAt    *time.Time            `json:"last_incident_at,omitempty"`
	Trend             TrendAnalysis         `json:"trend"`
}

// MetricsReport is the full metrics payload for one integration.
type MetricsReport struct {
	IntegrationID   uint                      `json:"integration_id"`
	IntegrationName string                    `json:"integration_name"`
	Timeframe       Timeframe                 `json:"timeframe"`
	Summary         MetricsSummary            `json:"summary"`
	Snapshots       []database.MetricSnapshot `json:"snapshots"`
	RecentChecks    []database.HealthCheck    `json:"recent_health_checks"`
}

// QueryService composes integrations, snapshots and incidents into read
// views. Cached responses are bounded by the cache TTL and are never used
// for alerting decisions — incident evaluation always reads live state.
type QueryService struct {
	db        *gorm.DB
	cache     *cache.Cache // optional; nil disables caching
	trend     *TrendAnalyzer
	incidents *IncidentManager
	now       func() time.Time
}

// NewQueryService creates the read-side service. A nil cache degrades to
// direct store reads.
func NewQueryService(db *gorm.DB, c *cache.Cache, trend *TrendAnalyzer, incidents *IncidentManager) *QueryService {
	return &QueryService{db: db, cache: c, trend: trend, incidents: incidents, now: time.Now}
}

// ListIntegrations serves the filtered, paginated, enriched integration
// listing. The page of integrations plus two batch queries (latest snapshot
// per integration, active incident count per integration) are merged by id
// in memory — never one query per row.
func (q *QueryService) ListIntegrations(ctx context.Context, filters IntegrationFilters) (*IntegrationList, error) {
	filters.Normalize()
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	key := filters.CacheKey()
	if q.cache != nil {
		if cached, ok := q.cache.Get(key); ok {
			if list, ok := cached.(*IntegrationList); ok {
				return list, nil
			}
		}
	}

	list, err := q.listFromStore(ctx, filters)
	if err != nil {
		return nil, err
	}

	if q.cache != nil {
		q.cache.Set(key, list)
	}
	return list, nil
}

func (q *QueryService) listFromStore(ctx context.Context, filters IntegrationFilters) (*IntegrationList, error) {
	db := q.db.WithContext(ctx)

	base := db.Model(&database.Integration{})
	if filters.Status != "" {
		base = base.Where("current_health_status = ?", filters.Status)
	}
	if filters.Category != "" {
		base = base.Where("LOWER(category) = ?", filters.Category)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		base = base.Where(
			"LOWER(name) LIKE ? OR LOWER(display_name) LIKE ? OR LOWER(description) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, storeErr(err)
	}

	var integrations []database.Integration
	offset := (filters.Page - 1) * filters.Limit
	err := base.Session(&gorm.Session{}).
		Order(filters.SortBy + " " + filters.SortOrder).
		Offset(offset).
		Limit(filters.Limit).
		Find(&integrations).Error
	if err != nil {
		return nil, storeErr(err)
	}

	ids := make([]uint, len(integrations))
	for i, integration := range integrations {
		ids[i] = integration.ID
	}

	snapshots, err := database.LatestSnapshots(db, ids, database.GranularityHour)
	if err != nil {
		return nil, storeErr(err)
	}
	incidentCounts, err := database.ActiveIncidentCounts(db, ids)
	if err != nil {
		return nil, storeErr(err)
	}

	data := make([]IntegrationOverview, len(integrations))
	for i, integration := range integrations {
		data[i] = IntegrationOverview{
			Integration:    integration,
			LatestSnapshot: snapshots[integration.ID],
			OpenIncidents:  incidentCounts[integration.ID],
		}
	}

	return &IntegrationList{
		Data: data,
		Meta: ListMeta{Total: total, Page: filters.Page, Limit: filters.Limit},
	}, nil
}

// InvalidateListings flushes all cached listing pages. Writers call this
// after mutating integrations so dashboards converge faster than the TTL.
func (q *QueryService) InvalidateListings() {
	if q.cache != nil {
		q.cache.InvalidatePrefix(listCachePrefix)
	}
}

// GetMetrics assembles the snapshot series, recent checks, and summary
// statistics for one integration over a timeframe. Reads are live, not
// cached: the payload feeds drill-down views where staleness is visible.
func (q *QueryService) GetMetrics(ctx context.Context, integrationID uint, timeframe Timeframe) (*MetricsReport, error) {
	lookback, ok := timeframeLookbacks[timeframe]
	if !ok {
		return nil, NewValidationError("timeframe", "must be one of 1h, 6h, 24h, 7d, 30d")
	}

	db := q.db.WithContext(ctx)

	var integration database.Integration
	err := db.First(&integration, integrationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("integration %d: %w", integrationID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	now := q.now()
	since := now.Add(-lookback)

	snapshots, err := database.SnapshotsSince(db, integrationID, "", since)
	if err != nil {
		return nil, storeErr(err)
	}
	checks, err := database.RecentChecks(db, integrationID, since, 100)
	if err != nil {
		return nil, storeErr(err)
	}

	summary, err := q.buildSummary(ctx, &integration, snapshots, checks, now)
	if err != nil {
		return nil, err
	}

	name := integration.DisplayName
	if name == "" {
		name = integration.Name
	}
	return &MetricsReport{
		IntegrationID:   integrationID,
		IntegrationName: name,
		Timeframe:       timeframe,
		Summary:         summary,
		Snapshots:       snapshots,
		RecentChecks:    checks,
	}, nil
}

func (q *QueryService) buildSummary(ctx context.Context, integration *database.Integration, snapshots []database.MetricSnapshot, checks []database.HealthCheck, now time.Time) (MetricsSummary, error) {
	db := q.db.WithContext(ctx)

	var successful int
	times := make([]float64, 0, len(checks))
	for _, c := range checks {
		if c.Success {
			successful++
		}
		if c.ResponseTimeMs != nil {
			times = append(times, float64(*c.ResponseTimeMs))
		}
	}

	var overallUptime float64
	if len(checks) > 0 {
		overallUptime = float64(successful) / float64(len(checks)) * 100
	}

	// Incident totals use a fixed 24h window regardless of the requested
	// timeframe, so the headline number is comparable across views.
	totalIncidents, err := database.IncidentsTriggeredSince(db, integration.ID, now.Add(-24*time.Hour))
	if err != nil {
		return MetricsSummary{}, storeErr(err)
	}

	mttr, err := q.incidents.MeanTimeToRecovery(ctx, integration.ID, 0)
	if err != nil {
		return MetricsSummary{}, err
	}

	var lastIncidentAt *time.Time
	last, err := database.LastIncident(db, integration.ID)
	if err == nil {
		lastIncidentAt = &last.TriggeredAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return MetricsSummary{}, storeErr(err)
	}

	return MetricsSummary{
		CurrentStatus:     integration.CurrentHealthStatus,
		OverallUptime:     round2(overallUptime),
		AvgResponseTimeMs: round2(mean(times)),
		TotalIncidents24h: totalIncidents,
		MTTRMinutes:       round2(mttr),
		LastIncidentAt:    lastIncidentAt,
		Trend:             q.trend.Analyze(snapshots, checks),
	}, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
