package services

import (
	"math"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Trend classifies the trajectory of a metric series.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// TrendAnalysis is the result of analyzing an integration's recent history.
type TrendAnalysis struct {
	UptimeTrend      Trend `json:"uptime_trend"`
	PerformanceTrend Trend `json:"performance_trend"`
	Confidence       int   `json:"confidence"`
}

func stableAnalysis() TrendAnalysis {
	return TrendAnalysis{
		UptimeTrend:      TrendStable,
		PerformanceTrend: TrendStable,
		Confidence:       0,
	}
}

// TrendAnalyzer classifies uptime and response-time trends. Analyze is a
// pure function of its inputs: identical sequences always produce identical
// results.
type TrendAnalyzer struct {
	// UptimeDeltaPts is the uptime-percentage-point change beyond which the
	// uptime trend leaves "stable".
	UptimeDeltaPts float64
	// ResponseDeltaMs is the mean response-time change (ms) beyond which the
	// performance trend leaves "stable".
	ResponseDeltaMs float64
	// ConfidenceWindows is the snapshot count at which confidence reaches 100.
	ConfidenceWindows int
}

// NewTrendAnalyzer builds an analyzer, substituting defaults for
// non-positive thresholds.
func NewTrendAnalyzer(uptimeDeltaPts, responseDeltaMs float64, confidenceWindows int) *TrendAnalyzer {
	a := &TrendAnalyzer{
		UptimeDeltaPts:    uptimeDeltaPts,
		ResponseDeltaMs:   responseDeltaMs,
		ConfidenceWindows: confidenceWindows,
	}
	if a.UptimeDeltaPts <= 0 {
		a.UptimeDeltaPts = 5
	}
	if a.ResponseDeltaMs <= 0 {
		a.ResponseDeltaMs = 100
	}
	if a.ConfidenceWindows <= 0 {
		a.ConfidenceWindows = 24
	}
	return a
}

// Analyze classifies trends from a snapshot sequence (oldest first) and raw
// checks (newest first). Fewer than 3 snapshots means insufficient data, not
// an error: everything reads stable with zero confidence.
func (a *TrendAnalyzer) Analyze(snapshots []database.MetricSnapshot, checks []database.HealthCheck) TrendAnalysis {
	if len(snapshots) < 3 {
		return stableAnalysis()
	}

	return TrendAnalysis{
		UptimeTrend:      a.uptimeTrend(snapshots),
		PerformanceTrend: a.performanceTrend(checks),
		Confidence:       a.confidence(len(snapshots)),
	}
}

// uptimeTrend compares the mean uptime of the newest 3 snapshots against the
// oldest 3. Snapshots without an uptime value count as 0.
func (a *TrendAnalyzer) uptimeTrend(snapshots []database.MetricSnapshot) Trend {
	recent := meanUptime(snapshots[len(snapshots)-3:])
	earlier := meanUptime(snapshots[:3])

	delta := recent - earlier
	switch {
	case delta > a.UptimeDeltaPts:
		return TrendImproving
	case delta < -a.UptimeDeltaPts:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// performanceTrend compares mean response time of the 10 newest checks
// against the 10 oldest in the supplied set. Each side needs at least 3
// recorded response times; otherwise the trend stays stable.
func (a *TrendAnalyzer) performanceTrend(checks []database.HealthCheck) Trend {
	recent := responseTimes(headChecks(checks, 10))
	earlier := responseTimes(tailChecks(checks, 10))
	if len(recent) < 3 || len(earlier) < 3 {
		return TrendStable
	}

	// A positive delta means responses got faster.
	delta := mean(earlier) - mean(recent)
	switch {
	case delta > a.ResponseDeltaMs:
		return TrendImproving
	case delta < -a.ResponseDeltaMs:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// confidence grows with the amount of history and caps at 100.
func (a *TrendAnalyzer) confidence(snapshotCount int) int {
	c := float64(snapshotCount) / float64(a.ConfidenceWindows) * 100
	return int(math.Round(math.Min(100, c)))
}

func meanUptime(snapshots []database.MetricSnapshot) float64 {
	var sum float64
	for _, s := range snapshots {
		if s.UptimePercentage != nil {
			sum += *s.UptimePercentage
		}
	}
	return sum / float64(len(snapshots))
}

func headChecks(checks []database.HealthCheck, n int) []database.HealthCheck {
	if len(checks) < n {
		n = len(checks)
	}
	return checks[:n]
}

func tailChecks(checks []database.HealthCheck, n int) []database.HealthCheck {
	if len(checks) < n {
		n = len(checks)
	}
	return checks[len(checks)-n:]
}

func responseTimes(checks []database.HealthCheck) []float64 {
	times := make([]float64, 0, len(checks))
	for _, c := range checks {
		if c.ResponseTimeMs != nil {
			times = append(times, float64(*c.ResponseTimeMs))
		}
	}
	return times
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
