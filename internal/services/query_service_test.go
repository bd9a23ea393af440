package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/database"
)

func newQueryService(db *gorm.DB, c *cache.Cache) *QueryService {
	trend := NewTrendAnalyzer(0, 0, 0)
	incidents := NewIncidentManager(db, nil, 0)
	return NewQueryService(db, c, trend, incidents)
}

func TestIntegrationFilters_Validation(t *testing.T) {
	cases := []struct {
		name    string
		filters IntegrationFilters
		field   string
	}{
		{"limit too large", IntegrationFilters{Limit: 101}, "limit"},
		{"unknown status", IntegrationFilters{Status: "flaky"}, "status"},
		{"unknown sort field", IntegrationFilters{SortBy: "uptime; DROP TABLE"}, "sort_by"},
		{"bad sort order", IntegrationFilters{SortOrder: "sideways"}, "sort_order"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.filters.Normalize()
			err := tc.filters.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tc.field {
				t.Errorf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}

	ok := IntegrationFilters{Status: "HEALTHY", Limit: 100}
	ok.Normalize()
	if err := ok.Validate(); err != nil {
		t.Errorf("expected normalized filters to validate, got %v", err)
	}
}

func TestIntegrationFilters_CacheKeyIsCanonical(t *testing.T) {
	a := IntegrationFilters{Search: "  Stripe  ", Status: "Healthy"}
	b := IntegrationFilters{Search: "stripe", Status: "healthy", Page: 1, Limit: 20, SortBy: "name", SortOrder: "ASC"}
	a.Normalize()
	b.Normalize()
	if a.CacheKey() != b.CacheKey() {
		t.Errorf("equivalent filters produced different keys:\n%s\n%s", a.CacheKey(), b.CacheKey())
	}

	c := IntegrationFilters{Search: "stripe", Page: 2}
	c.Normalize()
	if a.CacheKey() == c.CacheKey() {
		t.Error("different pages share a cache key")
	}
}

func TestQueryService_ListIntegrations_FiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	qs := newQueryService(db, nil)

	for _, spec := range []struct {
		name     string
		category string
		status   database.HealthStatus
	}{
		{"stripe", "payments", database.HealthStatusHealthy},
		{"adyen", "payments", database.HealthStatusCritical},
		{"twilio", "communication", database.HealthStatusHealthy},
		{"sendgrid", "communication", database.HealthStatusWarning},
	} {
		integration := createIntegration(t, db, spec.name)
		db.Model(integration).Updates(map[string]interface{}{
			"category":              spec.category,
			"current_health_status": spec.status,
		})
	}

	list, err := qs.ListIntegrations(context.Background(), IntegrationFilters{Category: "payments"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Meta.Total != 2 || len(list.Data) != 2 {
		t.Fatalf("expected 2 payment integrations, got total=%d rows=%d", list.Meta.Total, len(list.Data))
	}
	// Default sort is name ascending.
	if list.Data[0].Name != "adyen" || list.Data[1].Name != "stripe" {
		t.Errorf("unexpected order: %s, %s", list.Data[0].Name, list.Data[1].Name)
	}

	list, err = qs.ListIntegrations(context.Background(), IntegrationFilters{Status: "healthy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Meta.Total != 2 {
		t.Errorf("expected 2 healthy integrations, got %d", list.Meta.Total)
	}

	list, err = qs.ListIntegrations(context.Background(), IntegrationFilters{Search: "TWIL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Meta.Total != 1 || list.Data[0].Name != "twilio" {
		t.Errorf("search failed: %+v", list.Meta)
	}

	list, err = qs.ListIntegrations(context.Background(), IntegrationFilters{Page: 2, Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Meta.Total != 4 || len(list.Data) != 1 {
		t.Errorf("expected page 2 of 4 with limit 3 to hold 1 row, got total=%d rows=%d",
			list.Meta.Total, len(list.Data))
	}
	if list.Meta.Page != 2 || list.Meta.Limit != 3 {
		t.Errorf("meta not echoed: %+v", list.Meta)
	}
}

func TestQueryService_ListIntegrations_EnrichesRows(t *testing.T) {
	db := setupTestDB(t)
	qs := newQueryService(db, nil)

	integration := createIntegration(t, db, "stripe")
	quiet := createIntegration(t, db, "twilio")
	rule := createRule(t, db, database.AlertRule{Threshold: 95})

	uptime := 97.5
	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, ws := range []time.Time{older, newer} {
		db.Create(&database.MetricSnapshot{
			IntegrationID:     integration.ID,
			WindowStart:       ws,
			WindowGranularity: database.GranularityHour,
			TotalChecks:       10,
			UptimePercentage:  &uptime,
		})
	}
	db.Create(&database.AlertIncident{
		UUID:          "open-1",
		IntegrationID: integration.ID,
		RuleID:        rule.ID,
		Severity:      database.SeverityWarning,
		Status:        database.IncidentStatusOpen,
		TriggeredAt:   newer,
	})

	list, err := qs.ListIntegrations(context.Background(), IntegrationFilters{SortBy: "name"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list.Data))
	}

	enriched := list.Data[0] // stripe sorts before twilio
	if enriched.Name != "stripe" {
		t.Fatalf("unexpected first row: %s", enriched.Name)
	}
	if enriched.LatestSnapshot == nil || !enriched.LatestSnapshot.WindowStart.Equal(newer) {
		t.Errorf("expected latest snapshot at %v, got %+v", newer, enriched.LatestSnapshot)
	}
	if enriched.OpenIncidents != 1 {
		t.Errorf("expected 1 open incident, got %d", enriched.OpenIncidents)
	}

	bare := list.Data[1]
	if bare.ID != quiet.ID {
		t.Fatalf("expected %s second, got %s", quiet.Name, bare.Name)
	}
	if bare.LatestSnapshot != nil || bare.OpenIncidents != 0 {
		t.Errorf("expected empty enrichment for %s, got %+v", bare.Name, bare)
	}
}

func TestQueryService_ListIntegrations_ServesFromCache(t *testing.T) {
	db := setupTestDB(t)
	c := cache.New(time.Minute, time.Minute)
	defer c.Stop()
	qs := newQueryService(db, c)

	createIntegration(t, db, "stripe")

	first, err := qs.ListIntegrations(context.Background(), IntegrationFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Meta.Total != 1 {
		t.Fatalf("expected 1 integration, got %d", first.Meta.Total)
	}

	// A write the cache has not seen stays invisible until invalidation.
	createIntegration(t, db, "twilio")
	cached, err := qs.ListIntegrations(context.Background(), IntegrationFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached.Meta.Total != 1 {
		t.Errorf("expected cached total 1, got %d", cached.Meta.Total)
	}

	qs.InvalidateListings()
	fresh, err := qs.ListIntegrations(context.Background(), IntegrationFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Meta.Total != 2 {
		t.Errorf("expected fresh total 2 after invalidation, got %d", fresh.Meta.Total)
	}
}

func TestQueryService_GetMetrics_ValidatesInput(t *testing.T) {
	db := setupTestDB(t)
	qs := newQueryService(db, nil)
	integration := createIntegration(t, db, "stripe")

	_, err := qs.GetMetrics(context.Background(), integration.ID, "2h")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "timeframe" {
		t.Errorf("expected timeframe validation error, got %v", err)
	}

	_, err = qs.GetMetrics(context.Background(), 9999, Timeframe24h)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryService_GetMetrics_BuildsSummary(t *testing.T) {
	db := setupTestDB(t)
	qs := newQueryService(db, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	qs.now = fixedNow(now)

	integration := createIntegration(t, db, "stripe")
	db.Model(integration).Update("current_health_status", database.HealthStatusWarning)
	rule := createRule(t, db, database.AlertRule{Threshold: 95})

	// 10 checks in the last hour: 8 succeed at 100ms, 2 fail.
	ms := 100
	for i := 0; i < 8; i++ {
		addCheck(t, db, integration.ID, now.Add(-time.Duration(i+1)*time.Minute), true, &ms)
	}
	addCheck(t, db, integration.ID, now.Add(-20*time.Minute), false, nil)
	addCheck(t, db, integration.ID, now.Add(-21*time.Minute), false, nil)

	uptime := 90.0
	for i := 0; i < 4; i++ {
		db.Create(&database.MetricSnapshot{
			IntegrationID:     integration.ID,
			WindowStart:       now.Truncate(time.Hour).Add(-time.Duration(i+1) * time.Hour),
			WindowGranularity: database.GranularityHour,
			TotalChecks:       10,
			UptimePercentage:  &uptime,
		})
	}

	d := 30
	resolvedAt := now.Add(-2 * time.Hour)
	db.Create(&database.AlertIncident{
		UUID:            "res-1",
		IntegrationID:   integration.ID,
		RuleID:          rule.ID,
		Severity:        database.SeverityWarning,
		Status:          database.IncidentStatusResolved,
		TriggeredAt:     resolvedAt.Add(-30 * time.Minute),
		ResolvedAt:      &resolvedAt,
		DurationMinutes: &d,
	})

	report, err := qs.GetMetrics(context.Background(), integration.ID, Timeframe24h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.IntegrationID != integration.ID || report.Timeframe != Timeframe24h {
		t.Errorf("unexpected report envelope: %+v", report)
	}
	if len(report.Snapshots) != 4 {
		t.Errorf("expected 4 snapshots, got %d", len(report.Snapshots))
	}
	if len(report.RecentChecks) != 10 {
		t.Errorf("expected 10 recent checks, got %d", len(report.RecentChecks))
	}

	s := report.Summary
	if s.CurrentStatus != database.HealthStatusWarning {
		t.Errorf("expected warning status, got %s", s.CurrentStatus)
	}
	if s.OverallUptime != 80 {
		t.Errorf("expected 80%% uptime from checks, got %v", s.OverallUptime)
	}
	if s.AvgResponseTimeMs != 100 {
		t.Errorf("expected avg 100ms, got %v", s.AvgResponseTimeMs)
	}
	if s.TotalIncidents24h != 1 {
		t.Errorf("expected 1 incident in 24h, got %d", s.TotalIncidents24h)
	}
	if s.MTTRMinutes != 30 {
		t.Errorf("expected MTTR 30, got %v", s.MTTRMinutes)
	}
	if s.LastIncidentAt == nil {
		t.Error("expected last incident timestamp")
	}
	// 4 snapshots of flat 90% uptime read stable.
	if s.Trend.UptimeTrend != TrendStable {
		t.Errorf("expected stable uptime trend, got %s", s.Trend.UptimeTrend)
	}
}

func TestQueryService_GetMetrics_ShortTimeframesServeHourlySnapshots(t *testing.T) {
	db := setupTestDB(t)
	qs := newQueryService(db, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	qs.now = fixedNow(now)

	integration := createIntegration(t, db, "stripe")

	// Six hourly snapshots covering the last six hours. The short timeframes
	// must serve these even though no finer-grained buckets exist.
	uptime := 99.0
	for i := 0; i < 6; i++ {
		db.Create(&database.MetricSnapshot{
			IntegrationID:     integration.ID,
			WindowStart:       now.Add(-time.Duration(i+1) * time.Hour),
			WindowGranularity: database.GranularityHour,
			TotalChecks:       10,
			UptimePercentage:  &uptime,
		})
	}

	report, err := qs.GetMetrics(context.Background(), integration.ID, Timeframe6h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Snapshots) != 6 {
		t.Fatalf("expected all 6 hourly snapshots in the 6h view, got %d", len(report.Snapshots))
	}

	report, err = qs.GetMetrics(context.Background(), integration.ID, Timeframe1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Snapshots) != 1 {
		t.Errorf("expected the newest hourly snapshot in the 1h view, got %d", len(report.Snapshots))
	}
}

func TestQueryService_GetMetrics_RecentChecksCapped(t *testing.T) {
	db := setupTestDB(t)
	qs := newQueryService(db, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	qs.now = fixedNow(now)

	integration := createIntegration(t, db, "stripe")
	ms := 50
	for i := 0; i < 150; i++ {
		addCheck(t, db, integration.ID, now.Add(-time.Duration(i)*time.Minute), true, &ms)
	}

	report, err := qs.GetMetrics(context.Background(), integration.ID, Timeframe24h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.RecentChecks) != 100 {
		t.Errorf("expected checks capped at 100, got %d", len(report.RecentChecks))
	}
}
