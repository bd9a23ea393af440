package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Sentinel errors shared across services. Handlers map these onto HTTP
// status codes; nothing in this package retries or swallows them.
var (
	// ErrNotFound indicates an unknown integration or incident id.
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable indicates the persistence layer is unreachable.
	// The retry policy belongs to the caller, not to the engine.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError rejects malformed input before it reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// NewValidationError builds a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateTransitionError reports an illegal incident lifecycle move.
type InvalidStateTransitionError struct {
	IncidentID uint
	From       database.IncidentStatus
	To         database.IncidentStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("incident %d: invalid transition %s -> %s", e.IncidentID, e.From, e.To)
}

// PartialAggregationFailure reports which integrations failed during a batch
// aggregation run. The run completed for every other integration.
type PartialAggregationFailure struct {
	Failures map[uint]error // integration id -> cause
}

func (e *PartialAggregationFailure) Error() string {
	ids := make([]int, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("integration %d: %v", id, e.Failures[uint(id)]))
	}
	return fmt.Sprintf("aggregation failed for %d integration(s): %s", len(ids), strings.Join(parts, "; "))
}

// storeErr wraps driver-level failures as ErrStoreUnavailable while keeping
// the cause in the chain.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
