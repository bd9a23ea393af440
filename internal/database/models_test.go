package database

import (
	"testing"
	"time"
)

func TestWindowGranularity_Duration(t *testing.T) {
	cases := []struct {
		granularity WindowGranularity
		want        time.Duration
	}{
		{GranularityMinute, time.Minute},
		{GranularityHour, time.Hour},
		{GranularityDay, 24 * time.Hour},
		{"week", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := tc.granularity.Duration(); got != tc.want {
			t.Errorf("Duration(%q) = %v, want %v", tc.granularity, got, tc.want)
		}
	}
}

func TestWindowGranularity_Aligned(t *testing.T) {
	aligned := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !GranularityHour.Aligned(aligned) {
		t.Errorf("expected %v to align to the hour", aligned)
	}
	if GranularityHour.Aligned(aligned.Add(30 * time.Minute)) {
		t.Error("half past the hour must not align")
	}
	if GranularityMinute.Aligned(aligned.Add(30 * time.Second)) {
		t.Error("half past the minute must not align")
	}
	if WindowGranularity("week").Aligned(aligned) {
		t.Error("unknown granularity never aligns")
	}
}

func TestComparator_Compare(t *testing.T) {
	cases := []struct {
		comparator Comparator
		value      float64
		threshold  float64
		want       bool
	}{
		{ComparatorGT, 10, 5, true},
		{ComparatorGT, 5, 5, false},
		{ComparatorGTE, 5, 5, true},
		{ComparatorLT, 4, 5, true},
		{ComparatorLT, 5, 5, false},
		{ComparatorLTE, 5, 5, true},
		{ComparatorEQ, 5, 5, true},
		{ComparatorEQ, 5.1, 5, false},
		{ComparatorNEQ, 5.1, 5, true},
		{Comparator("~"), 5, 5, false},
	}
	for _, tc := range cases {
		if got := tc.comparator.Compare(tc.value, tc.threshold); got != tc.want {
			t.Errorf("%v %s %v = %v, want %v", tc.value, tc.comparator, tc.threshold, got, tc.want)
		}
	}
}

func TestSeverity_Rank(t *testing.T) {
	order := []Severity{SeverityInfo, SeverityWarning, SeverityCritical, SeverityUrgent}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("expected %s to outrank %s", order[i], order[i-1])
		}
	}
	if Severity("").Rank() != 0 {
		t.Error("unknown severity must rank lowest")
	}
}

func TestAlertRule_InCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	old := now.Add(-30 * time.Minute)

	rule := AlertRule{CooldownMinutes: 15, LastTriggered: &recent}
	if !rule.InCooldown(now) {
		t.Error("expected cooldown 5 minutes after trigger")
	}

	rule.LastTriggered = &old
	if rule.InCooldown(now) {
		t.Error("expected cooldown to have elapsed")
	}

	rule = AlertRule{CooldownMinutes: 0, LastTriggered: &recent}
	if rule.InCooldown(now) {
		t.Error("zero cooldown never suppresses")
	}

	rule = AlertRule{CooldownMinutes: 15}
	if rule.InCooldown(now) {
		t.Error("a rule that never fired is not cooling down")
	}
}

func TestIncidentStatus_Active(t *testing.T) {
	if !IncidentStatusOpen.Active() || !IncidentStatusAcknowledged.Active() {
		t.Error("open and acknowledged incidents are active")
	}
	if IncidentStatusResolved.Active() {
		t.Error("resolved incidents are not active")
	}
}

func TestMetricSnapshot_WindowClosed(t *testing.T) {
	snapshot := MetricSnapshot{
		WindowStart:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		WindowGranularity: GranularityHour,
	}
	if !snapshot.WindowEnd().Equal(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window end %v", snapshot.WindowEnd())
	}
	if snapshot.WindowClosed(snapshot.WindowStart.Add(59 * time.Minute)) {
		t.Error("window must stay open until its end")
	}
	if !snapshot.WindowClosed(snapshot.WindowEnd()) {
		t.Error("window closes exactly at its end")
	}
}
