package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/galactavista/galactavista-go/types"
)

// GetProperties lists or searches listings. Every present filter field is
// serialized as a query parameter; absent fields are omitted entirely.
func (c *Client) GetProperties(ctx context.Context, filter *types.PropertySearchRequest) (types.PaginatedResponse[types.Property], error) {
	endpoint := "/properties"
	if query := filter.Values().Encode(); query != "" {
		endpoint += "?" + query
	}
	return do[types.PaginatedResponse[types.Property]](ctx, c, http.MethodGet, endpoint, nil)
}

// GetProperty fetches a single listing by id.
func (c *Client) GetProperty(ctx context.Context, id int64) (types.Property, error) {
	return do[types.Property](ctx, c, http.MethodGet, fmt.Sprintf("/properties/%d", id), nil)
}

// CreateProperty creates a listing; the server assigns its id.
func (c *Client) CreateProperty(ctx context.Context, data types.PropertyCreateRequest) (types.Property, error) {
	return do[types.Property](ctx, c, http.MethodPost, "/properties", data)
}

// UpdateProperty applies a partial update to a listing.
func (c *Client) UpdateProperty(ctx context.Context, id int64, data types.PropertyUpdateRequest) (types.Property, error) {
	return do[types.Property](ctx, c, http.MethodPut, fmt.Sprintf("/properties/%d", id), data)
}

// DeleteProperty removes a listing.
func (c *Client) DeleteProperty(ctx context.Context, id int64) error {
	return doVoid(ctx, c, http.MethodDelete, fmt.Sprintf("/properties/%d", id), nil)
}

// GetPropertiesByAgent lists the authenticated agent's own listings.
func (c *Client) GetPropertiesByAgent(ctx context.Context, page *types.PaginationRequest) (types.PaginatedResponse[types.Property], error) {
	endpoint := "/properties/agent"
	if query := page.Values().Encode(); query != "" {
		endpoint += "?" + query
	}
	return do[types.PaginatedResponse[types.Property]](ctx, c, http.MethodGet, endpoint, nil)
}
