// Package handlers wires the HTTP surface to the service layer.
package handlers

import (
	"net/http"

	"github.com/pulsewatch/pulsewatch/internal/services"
)

// APIHandler handles the dashboard API and the probe collector webhook.
type APIHandler struct {
	queries   *services.QueryService
	incidents *services.IncidentManager
	ingestor  *services.Ingestor
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(queries *services.QueryService, incidents *services.IncidentManager, ingestor *services.Ingestor) *APIHandler {
	return &APIHandler{
		queries:   queries,
		incidents: incidents,
		ingestor:  ingestor,
	}
}

// SetupRoutes sets up all API routes.
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Integrations
	mux.HandleFunc("GET /api/integrations", h.handleListIntegrations)
	mux.HandleFunc("POST /api/integrations", h.handleCreateIntegration)
	mux.HandleFunc("PUT /api/integrations/{id}", h.handleUpdateIntegration)
	mux.HandleFunc("GET /api/integrations/{id}/metrics", h.handleIntegrationMetrics)
	mux.HandleFunc("POST /api/integrations/{id}/test", h.handleTestIntegration)

	// Incidents
	mux.HandleFunc("GET /api/incidents", h.handleListIncidents)
	mux.HandleFunc("POST /api/incidents/{id}/acknowledge", h.handleAcknowledgeIncident)
	mux.HandleFunc("POST /api/incidents/{id}/resolve", h.handleResolveIncident)

	// Probe collector boundary
	mux.HandleFunc("POST /webhook/checks", h.handleWebhookChecks)

	// Liveness
	mux.HandleFunc("GET /health", h.handleHealth)
}
