package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pulsewatch/pulsewatch/internal/services"
)

// RespondServiceError translates the service error taxonomy into HTTP
// responses: validation errors are the caller's fault, state machine
// violations are conflicts, and store failures surface as 503 so load
// balancers retry elsewhere.
func RespondServiceError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	var transitionErr *services.InvalidStateTransitionError

	switch {
	case errors.As(err, &validationErr):
		RespondValidationError(w, map[string]string{validationErr.Field: validationErr.Message})
	case errors.Is(err, services.ErrNotFound):
		RespondErrorWithCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &transitionErr):
		RespondErrorWithCode(w, http.StatusConflict, "invalid_transition", transitionErr.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		log.Error().Err(err).Msg("store unavailable")
		RespondErrorWithCode(w, http.StatusServiceUnavailable, "store_unavailable", "storage backend unavailable")
	default:
		log.Error().Err(err).Msg("unhandled service error")
		RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
