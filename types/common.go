package types

import (
	"net/url"
	"strconv"
)

// Pagination defaults mirror the platform-wide conventions.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Envelope is the uniform JSON wrapper every endpoint returns.
// Data is a pointer so that "absent" and "zero value" stay distinguishable.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PaginationRequest selects a page of a collection. Page is 1-based.
type PaginationRequest struct {
	Page     *int `json:"page,omitempty"`
	PageSize *int `json:"page_size,omitempty"`
}

// Values encodes the present fields as URL query parameters.
func (r *PaginationRequest) Values() url.Values {
	v := url.Values{}
	if r == nil {
		return v
	}
	if r.Page != nil {
		v.Set("page", strconv.Itoa(*r.Page))
	}
	if r.PageSize != nil {
		v.Set("page_size", strconv.Itoa(*r.PageSize))
	}
	return v
}

// PaginatedResponse is a single page of a collection. TotalPages is
// authoritative from the server; the client never clamps page numbers.
type PaginatedResponse[T any] struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	Data       []T   `json:"data"`
}

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}

// DashboardStats summarizes an agent's portfolio for the dashboard view.
type DashboardStats struct {
	TotalProperties     int   `json:"totalProperties"`
	AvailableProperties int   `json:"availableProperties"`
	SoldProperties      int   `json:"soldProperties"`
	TotalViews          int64 `json:"totalViews"`
	TotalInquiries      int64 `json:"totalInquiries"`
}
