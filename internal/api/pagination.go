package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page  int
	Limit int
}

// ParsePagination extracts pagination parameters from the request.
// Defaults: page=1, limit=20. Values above the maximum limit of 100 are
// clamped rather than rejected.
func ParsePagination(r *http.Request) PaginationParams {
	p := PaginationParams{
		Page:  defaultPage,
		Limit: defaultLimit,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
			if p.Limit > maxLimit {
				p.Limit = maxLimit
			}
		}
	}

	return p
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages calculates the total number of pages for a given total count.
func (p PaginationParams) TotalPages(total int64) int {
	if p.Limit <= 0 {
		return 0
	}
	pages := int(total) / p.Limit
	if int(total)%p.Limit > 0 {
		pages++
	}
	return pages
}
