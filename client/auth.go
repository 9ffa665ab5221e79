package client

import (
	"context"
	"net/http"

	"github.com/galactavista/galactavista-go/types"
)

// Login authenticates with email and password. On success the returned
// token is installed on the client as a side effect, so the next call is
// already authenticated.
func (c *Client) Login(ctx context.Context, credentials types.UserLoginRequest) (types.LoginResponse, error) {
	resp, err := do[types.LoginResponse](ctx, c, http.MethodPost, "/auth/login", credentials)
	if err != nil {
		return types.LoginResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Register creates a new account. No token is issued; callers log in
// explicitly afterwards.
func (c *Client) Register(ctx context.Context, userData types.UserRegisterRequest) (types.User, error) {
	return do[types.User](ctx, c, http.MethodPost, "/auth/register", userData)
}

// GetProfile returns the authenticated user's record.
func (c *Client) GetProfile(ctx context.Context) (types.User, error) {
	return do[types.User](ctx, c, http.MethodGet, "/auth/profile", nil)
}

// UpdateProfile applies a partial update to the authenticated user's record.
func (c *Client) UpdateProfile(ctx context.Context, update types.UserUpdateRequest) (types.User, error) {
	return do[types.User](ctx, c, http.MethodPut, "/auth/profile", update)
}

// HealthCheck probes the backend.
func (c *Client) HealthCheck(ctx context.Context) (types.HealthStatus, error) {
	return do[types.HealthStatus](ctx, c, http.MethodGet, "/health", nil)
}
