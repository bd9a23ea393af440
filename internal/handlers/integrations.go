package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/services"
)

// handleListIntegrations handles GET /api/integrations.
func (h *APIHandler) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	q := r.URL.Query()

	filters := services.IntegrationFilters{
		Status:    q.Get("status"),
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		Page:      params.Page,
		Limit:     params.Limit,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	list, err := h.queries.ListIntegrations(r.Context(), filters)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, list)
}

// handleCreateIntegration handles POST /api/integrations.
func (h *APIHandler) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var req api.CreateIntegrationRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	db := database.GetDB()

	integration := database.Integration{
		Name:                req.Name,
		DisplayName:         req.DisplayName,
		Description:         req.Description,
		Category:            req.Category,
		Environment:         req.Environment,
		IsActive:            true,
		MonitoringEnabled:   req.MonitoringEnabled == nil || *req.MonitoringEnabled,
		CurrentHealthStatus: database.HealthStatusUnknown,
	}
	if integration.Environment == "" {
		integration.Environment = "production"
	}

	if err := db.Create(&integration).Error; err != nil {
		if isUniqueViolation(err) {
			api.RespondErrorWithCode(w, http.StatusConflict, "duplicate_name",
				"an integration with this name already exists")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "failed to create integration")
		return
	}

	h.queries.InvalidateListings()
	api.RespondJSON(w, http.StatusCreated, integration)
}

// handleUpdateIntegration handles PUT /api/integrations/{id}.
func (h *APIHandler) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req api.UpdateIntegrationRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	db := database.GetDB()
	var integration database.Integration
	if err := db.First(&integration, id).Error; err != nil {
		api.RespondErrorWithCode(w, http.StatusNotFound, "not_found", "integration not found")
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.MonitoringEnabled != nil {
		updates["monitoring_enabled"] = *req.MonitoringEnabled
	}

	if len(updates) > 0 {
		if err := db.Model(&integration).Updates(updates).Error; err != nil {
			api.RespondError(w, http.StatusInternalServerError, "failed to update integration")
			return
		}
		// Map updates bypass the struct; reload so the response is current.
		if err := db.First(&integration, id).Error; err != nil {
			api.RespondError(w, http.StatusInternalServerError, "failed to reload integration")
			return
		}
		h.queries.InvalidateListings()
	}

	api.RespondJSON(w, http.StatusOK, integration)
}

// handleIntegrationMetrics handles GET /api/integrations/{id}/metrics.
func (h *APIHandler) handleIntegrationMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	timeframe := services.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = services.Timeframe24h
	}

	report, err := h.queries.GetMetrics(r.Context(), id, timeframe)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, report)
}

// handleTestIntegration handles POST /api/integrations/{id}/test: an
// operator-submitted probe result recorded through the same path as the
// collector webhook, marked as a manual check.
func (h *APIHandler) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req api.HealthCheckEvent
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	check, err := h.ingestor.Record(r.Context(), services.CheckEvent{
		IntegrationID:  id,
		Success:        req.Success != nil && *req.Success,
		ResponseTimeMs: req.ResponseTimeMs,
		StatusCode:     req.StatusCode,
		ErrorDetail:    req.ErrorDetail,
		CheckType:      "manual",
		CheckedAt:      req.CheckedAt,
	})
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusCreated, check)
}

// isUniqueViolation detects duplicate-key errors from both postgres and the
// sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// pathID parses the {id} path segment, responding 422 when malformed.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		api.RespondValidationError(w, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}
