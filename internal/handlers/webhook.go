package handlers

import (
	"fmt"
	"net/http"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/services"
)

// handleWebhookChecks handles POST /webhook/checks: a batch of probe results
// from the external collector. Events are processed independently; a bad
// event is reported in the response without failing the rest of the batch.
func (h *APIHandler) handleWebhookChecks(w http.ResponseWriter, r *http.Request) {
	var req api.WebhookChecksRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	resp := api.WebhookChecksResponse{}
	for i, event := range req.Checks {
		_, err := h.ingestor.Record(r.Context(), services.CheckEvent{
			IntegrationID:   event.IntegrationID,
			IntegrationName: event.Integration,
			Success:         event.Success != nil && *event.Success,
			ResponseTimeMs:  event.ResponseTimeMs,
			StatusCode:      event.StatusCode,
			ErrorDetail:     event.ErrorDetail,
			CheckType:       event.CheckType,
			CheckedAt:       event.CheckedAt,
		})
		if err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, fmt.Sprintf("checks[%d]: %v", i, err))
			continue
		}
		resp.Accepted++
	}

	status := http.StatusOK
	if resp.Accepted == 0 && resp.Rejected > 0 {
		status = http.StatusBadRequest
	}
	api.RespondJSON(w, status, resp)
}
