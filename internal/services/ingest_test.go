package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

func TestIngestor_Record_StoresCheckAndCounters(t *testing.T) {
	db := setupTestDB(t)
	integration := createIntegration(t, db, "stripe")
	ing := NewIngestor(db, NewIncidentManager(db, nil, 0), nil)

	ms := 140
	check, err := ing.Record(context.Background(), CheckEvent{
		IntegrationID:  integration.ID,
		Success:        true,
		ResponseTimeMs: &ms,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.ID == 0 || check.CheckType != "automated" {
		t.Errorf("unexpected stored check: %+v", check)
	}

	var stored database.Integration
	db.First(&stored, integration.ID)
	if stored.LastSuccessfulCheck == nil || stored.ConsecutiveFailures != 0 {
		t.Errorf("integration counters not updated: %+v", stored)
	}
}

func TestIngestor_Record_ResolvesByName(t *testing.T) {
	db := setupTestDB(t)
	createIntegration(t, db, "stripe")
	ing := NewIngestor(db, NewIncidentManager(db, nil, 0), nil)

	check, err := ing.Record(context.Background(), CheckEvent{
		IntegrationName: "stripe",
		Success:         false,
		ErrorDetail:     "connection refused",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.ErrorDetail != "connection refused" {
		t.Errorf("unexpected check: %+v", check)
	}

	_, err = ing.Record(context.Background(), CheckEvent{IntegrationName: "nope", Success: true})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown name, got %v", err)
	}

	_, err = ing.Record(context.Background(), CheckEvent{Success: true})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expected validation error without a target, got %v", err)
	}
}

func TestIngestor_Record_EvaluatesLiveRules(t *testing.T) {
	db := setupTestDB(t)
	integration := createIntegration(t, db, "stripe")
	createRule(t, db, database.AlertRule{
		RuleName:   "consecutive_failures",
		Metric:     database.MetricConsecutiveFailures,
		Comparator: database.ComparatorGTE,
		Threshold:  3,
		Severity:   database.SeverityCritical,
	})
	ing := NewIngestor(db, NewIncidentManager(db, nil, 0), nil)

	for i := 0; i < 3; i++ {
		if _, err := ing.Record(context.Background(), CheckEvent{
			IntegrationID: integration.ID,
			Success:       false,
		}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	var count int64
	db.Model(&database.AlertIncident{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one incident after the streak, got %d", count)
	}

	var stored database.Integration
	db.First(&stored, integration.ID)
	if stored.CurrentHealthStatus != database.HealthStatusCritical {
		t.Errorf("expected critical health status, got %s", stored.CurrentHealthStatus)
	}
}

func TestIngestor_Record_SkipsEvaluationWhenMonitoringDisabled(t *testing.T) {
	db := setupTestDB(t)
	integration := createIntegration(t, db, "stripe")
	db.Model(integration).Update("monitoring_enabled", false)
	createRule(t, db, database.AlertRule{
		RuleName:   "consecutive_failures",
		Metric:     database.MetricConsecutiveFailures,
		Comparator: database.ComparatorGTE,
		Threshold:  1,
		Severity:   database.SeverityCritical,
	})
	ing := NewIngestor(db, NewIncidentManager(db, nil, 0), nil)

	if _, err := ing.Record(context.Background(), CheckEvent{
		IntegrationID: integration.ID,
		Success:       false,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var checks int64
	db.Model(&database.HealthCheck{}).Count(&checks)
	if checks != 1 {
		t.Errorf("expected the check to be stored, got %d", checks)
	}

	var incidents int64
	db.Model(&database.AlertIncident{}).Count(&incidents)
	if incidents != 0 {
		t.Errorf("expected no evaluation while monitoring disabled, got %d incidents", incidents)
	}
}

func TestIngestor_Record_HonorsProvidedTimestamp(t *testing.T) {
	db := setupTestDB(t)
	integration := createIntegration(t, db, "stripe")
	ing := NewIngestor(db, NewIncidentManager(db, nil, 0), nil)

	at := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	check, err := ing.Record(context.Background(), CheckEvent{
		IntegrationID: integration.ID,
		Success:       true,
		CheckedAt:     &at,
		CheckType:     "manual",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !check.CheckedAt.Equal(at) || check.CheckType != "manual" {
		t.Errorf("unexpected check: %+v", check)
	}
}
