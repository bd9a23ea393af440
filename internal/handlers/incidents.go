package handlers

import (
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/database"
)

// incidentListResponse is the paginated payload for GET /api/incidents.
type incidentListResponse struct {
	Data []database.AlertIncident `json:"data"`
	Meta struct {
		Total int64 `json:"total"`
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
	} `json:"meta"`
}

// handleListIncidents handles GET /api/incidents with optional
// integration_id and status filters, newest first.
func (h *APIHandler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()
	params := api.ParsePagination(r)
	q := r.URL.Query()

	query := db.Model(&database.AlertIncident{})

	if raw := q.Get("integration_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			api.RespondValidationError(w, map[string]string{"integration_id": "must be a positive integer"})
			return
		}
		query = query.Where("integration_id = ?", uint(id))
	}

	if status := q.Get("status"); status != "" {
		switch database.IncidentStatus(status) {
		case database.IncidentStatusOpen, database.IncidentStatusAcknowledged, database.IncidentStatusResolved:
			query = query.Where("status = ?", status)
		default:
			api.RespondValidationError(w, map[string]string{"status": "must be one of: open acknowledged resolved"})
			return
		}
	}

	var resp incidentListResponse
	if err := query.Session(&gorm.Session{}).Count(&resp.Meta.Total).Error; err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to count incidents")
		return
	}

	err := query.Session(&gorm.Session{}).Order("triggered_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&resp.Data).Error
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}

	resp.Meta.Page = params.Page
	resp.Meta.Limit = params.Limit
	api.RespondJSON(w, http.StatusOK, resp)
}

// handleAcknowledgeIncident handles POST /api/incidents/{id}/acknowledge.
func (h *APIHandler) handleAcknowledgeIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req api.AcknowledgeIncidentRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	incident, err := h.incidents.Acknowledge(r.Context(), id, req.AcknowledgedBy)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, incident)
}

// handleResolveIncident handles POST /api/incidents/{id}/resolve.
func (h *APIHandler) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req api.ResolveIncidentRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	incident, err := h.incidents.Resolve(r.Context(), id, req.ResolvedBy, req.ResolutionNote)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, incident)
}
