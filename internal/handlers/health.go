package handlers

import (
	"net/http"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/database"
)

// handleHealth handles GET /health. Reports degraded (still 200) when the
// store is unreachable so the process is not restarted for a database blip.
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"

	if sqlDB, err := database.GetDB().DB(); err != nil {
		status, dbStatus = "degraded", "unavailable"
	} else if err := sqlDB.PingContext(r.Context()); err != nil {
		status, dbStatus = "degraded", "unavailable"
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
	})
}
