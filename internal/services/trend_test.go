package services

import (
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

func floatPtr(v float64) *float64 { return &v }

// snapshotSeries builds an oldest-first snapshot slice with the given uptime
// percentages.
func snapshotSeries(uptimes ...float64) []database.MetricSnapshot {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snapshots := make([]database.MetricSnapshot, len(uptimes))
	for i, u := range uptimes {
		snapshots[i] = database.MetricSnapshot{
			IntegrationID:     1,
			WindowStart:       base.Add(time.Duration(i) * time.Hour),
			WindowGranularity: database.GranularityHour,
			UptimePercentage:  floatPtr(u),
		}
	}
	return snapshots
}

// checkSeries builds a newest-first check slice with the given response times.
func checkSeries(times ...int) []database.HealthCheck {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	checks := make([]database.HealthCheck, len(times))
	for i, ms := range times {
		v := ms
		checks[i] = database.HealthCheck{
			IntegrationID:  1,
			CheckedAt:      base.Add(-time.Duration(i) * time.Minute),
			Success:        true,
			ResponseTimeMs: &v,
		}
	}
	return checks
}

func TestTrendAnalyzer_TooFewSnapshotsIsStable(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0)

	for _, snapshots := range [][]database.MetricSnapshot{
		nil,
		snapshotSeries(10),
		snapshotSeries(10, 90),
	} {
		got := analyzer.Analyze(snapshots, nil)
		if got.UptimeTrend != TrendStable || got.PerformanceTrend != TrendStable {
			t.Errorf("expected stable trends for %d snapshots, got %+v", len(snapshots), got)
		}
		if got.Confidence != 0 {
			t.Errorf("expected confidence 0 for %d snapshots, got %d", len(snapshots), got.Confidence)
		}
	}
}

func TestTrendAnalyzer_UptimeTrendClassification(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0) // defaults: 5 pts, 100 ms, 24 windows

	cases := []struct {
		name      string
		snapshots []database.MetricSnapshot
		want      Trend
	}{
		{"improving", snapshotSeries(80, 80, 80, 95, 95, 95), TrendImproving},
		{"degrading", snapshotSeries(95, 95, 95, 80, 80, 80), TrendDegrading},
		{"within threshold", snapshotSeries(90, 90, 90, 93, 93, 93), TrendStable},
		{"exactly at threshold", snapshotSeries(90, 90, 90, 95, 95, 95), TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := analyzer.Analyze(tc.snapshots, nil)
			if got.UptimeTrend != tc.want {
				t.Errorf("uptime trend = %s, want %s", got.UptimeTrend, tc.want)
			}
		})
	}
}

func TestTrendAnalyzer_MissingUptimeCountsAsZero(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0)

	snapshots := snapshotSeries(0, 0, 0, 90, 90, 90)
	snapshots[0].UptimePercentage = nil
	snapshots[1].UptimePercentage = nil
	snapshots[2].UptimePercentage = nil

	got := analyzer.Analyze(snapshots, nil)
	if got.UptimeTrend != TrendImproving {
		t.Errorf("expected improving when early uptime is absent, got %s", got.UptimeTrend)
	}
}

func TestTrendAnalyzer_PerformanceTrendClassification(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0)
	snapshots := snapshotSeries(90, 90, 90) // enough history for analysis

	fast := make([]int, 10)
	slow := make([]int, 10)
	for i := range fast {
		fast[i] = 100
		slow[i] = 400
	}

	// Newest-first: faster recent checks mean improving.
	improving := checkSeries(append(append([]int{}, fast...), slow...)...)
	got := analyzer.Analyze(snapshots, improving)
	if got.PerformanceTrend != TrendImproving {
		t.Errorf("expected improving performance, got %s", got.PerformanceTrend)
	}

	degrading := checkSeries(append(append([]int{}, slow...), fast...)...)
	got = analyzer.Analyze(snapshots, degrading)
	if got.PerformanceTrend != TrendDegrading {
		t.Errorf("expected degrading performance, got %s", got.PerformanceTrend)
	}

	flat := checkSeries(200, 200, 200, 200, 200, 200, 200, 200, 200, 200,
		210, 210, 210, 210, 210, 210, 210, 210, 210, 210)
	got = analyzer.Analyze(snapshots, flat)
	if got.PerformanceTrend != TrendStable {
		t.Errorf("expected stable performance, got %s", got.PerformanceTrend)
	}
}

func TestTrendAnalyzer_PerformanceTrendNeedsEnoughSamples(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0)
	snapshots := snapshotSeries(90, 90, 90)

	// Only two checks carry a response time on each side.
	checks := checkSeries(100, 100, 500, 500)
	got := analyzer.Analyze(snapshots, checks)
	if got.PerformanceTrend != TrendStable {
		t.Errorf("expected stable with too few timed checks, got %s", got.PerformanceTrend)
	}
}

func TestTrendAnalyzer_ConfidenceScaling(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0)

	cases := []struct {
		snapshots int
		want      int
	}{
		{3, 13},  // round(3/24*100)
		{12, 50},
		{24, 100},
		{48, 100}, // capped
	}
	for _, tc := range cases {
		uptimes := make([]float64, tc.snapshots)
		for i := range uptimes {
			uptimes[i] = 99
		}
		got := analyzer.Analyze(snapshotSeries(uptimes...), nil)
		if got.Confidence != tc.want {
			t.Errorf("confidence with %d snapshots = %d, want %d", tc.snapshots, got.Confidence, tc.want)
		}
	}
}

func TestTrendAnalyzer_IsDeterministic(t *testing.T) {
	analyzer := NewTrendAnalyzer(0, 0, 0)
	snapshots := snapshotSeries(80, 85, 90, 95, 96, 97)
	checks := checkSeries(100, 150, 200, 250, 300, 350, 400, 450, 500, 550,
		600, 650, 700, 750, 800, 850, 900, 950, 1000, 1050)

	first := analyzer.Analyze(snapshots, checks)
	for i := 0; i < 5; i++ {
		if got := analyzer.Analyze(snapshots, checks); got != first {
			t.Fatalf("analysis not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestTrendAnalyzer_CustomThresholds(t *testing.T) {
	analyzer := NewTrendAnalyzer(10, 300, 12)

	// A 7-point swing is stable under a 10-point threshold.
	got := analyzer.Analyze(snapshotSeries(85, 85, 85, 92, 92, 92), nil)
	if got.UptimeTrend != TrendStable {
		t.Errorf("expected stable under raised threshold, got %s", got.UptimeTrend)
	}
	if got.Confidence != 50 {
		t.Errorf("expected confidence 50 with 6/12 windows, got %d", got.Confidence)
	}
}
