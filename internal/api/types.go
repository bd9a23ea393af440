package api

import (
	"time"
)

// ========== Integration Types ==========

// CreateIntegrationRequest is the request body for POST /api/integrations.
type CreateIntegrationRequest struct {
	Name              string `json:"name" validate:"required,min=1,max=128"`
	DisplayName       string `json:"display_name" validate:"omitempty,max=255"`
	Description       string `json:"description" validate:"omitempty,max=1024"`
	Category          string `json:"category" validate:"omitempty,max=64"`
	Environment       string `json:"environment" validate:"omitempty,oneof=production staging development"`
	MonitoringEnabled *bool  `json:"monitoring_enabled"`
}

// UpdateIntegrationRequest is the request body for PUT /api/integrations/:id.
// Pointer fields distinguish "leave unchanged" from an explicit zero value.
type UpdateIntegrationRequest struct {
	DisplayName       *string `json:"display_name" validate:"omitempty,max=255"`
	Description       *string `json:"description" validate:"omitempty,max=1024"`
	Category          *string `json:"category" validate:"omitempty,max=64"`
	IsActive          *bool   `json:"is_active"`
	MonitoringEnabled *bool   `json:"monitoring_enabled"`
}

// ========== Health Check Ingest Types ==========

// HealthCheckEvent is one probe result delivered to POST /webhook/checks.
// Either integration_id or integration name must identify the target.
type HealthCheckEvent struct {
	IntegrationID  uint       `json:"integration_id"`
	Integration    string     `json:"integration" validate:"omitempty,max=128"`
	Success        *bool      `json:"success" validate:"required"`
	ResponseTimeMs *int       `json:"response_time_ms" validate:"omitempty,min=0"`
	StatusCode     *int       `json:"status_code" validate:"omitempty,min=100,max=599"`
	ErrorDetail    string     `json:"error_detail" validate:"omitempty,max=2048"`
	CheckType      string     `json:"check_type" validate:"omitempty,oneof=automated manual"`
	CheckedAt      *time.Time `json:"checked_at"`
}

// WebhookChecksRequest is the request body for POST /webhook/checks.
type WebhookChecksRequest struct {
	Checks []HealthCheckEvent `json:"checks" validate:"required,min=1,max=500,dive"`
}

// WebhookChecksResponse reports how many events the ingest accepted.
type WebhookChecksResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// ========== Incident Types ==========

// AcknowledgeIncidentRequest is the request body for
// POST /api/incidents/:id/acknowledge.
type AcknowledgeIncidentRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"required,min=1,max=128"`
}

// ResolveIncidentRequest is the request body for
// POST /api/incidents/:id/resolve.
type ResolveIncidentRequest struct {
	ResolvedBy     string `json:"resolved_by" validate:"required,min=1,max=128"`
	ResolutionNote string `json:"resolution_note" validate:"omitempty,max=2048"`
}
