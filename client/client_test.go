package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galactavista/galactavista-go/types"
)

// recordingHandler captures the last request so header and URL assertions
// can run after the call completes.
type recordingHandler struct {
	lastAuth   string
	lastPath   string
	lastQuery  string
	lastMethod string
	status     int
	body       string
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.lastAuth = r.Header.Get("Authorization")
	h.lastPath = r.URL.Path
	h.lastQuery = r.URL.RawQuery
	h.lastMethod = r.Method
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	w.Write([]byte(h.body))
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return New(WithBaseURL(server.URL)), server
}

func TestTokenHeader(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `{"success":true,"data":{"status":"ok"}}`}
	c, _ := newTestClient(t, handler)
	ctx := context.Background()

	t.Run("NoTokenNoHeader", func(t *testing.T) {
		_, err := c.HealthCheck(ctx)
		require.NoError(t, err)
		assert.Empty(t, handler.lastAuth)
	})

	t.Run("TokenAttached", func(t *testing.T) {
		c.SetToken("T1")
		_, err := c.HealthCheck(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Bearer T1", handler.lastAuth)
	})

	t.Run("ClearedTokenNotAttached", func(t *testing.T) {
		c.ClearToken()
		_, err := c.HealthCheck(ctx)
		require.NoError(t, err)
		assert.Empty(t, handler.lastAuth)
	})
}

func TestLoginInstallsToken(t *testing.T) {
	login := types.LoginResponse{Token: "T1", User: types.User{ID: 1, Email: "a@b.com"}}
	payload, err := json.Marshal(map[string]any{"success": true, "data": login})
	require.NoError(t, err)

	handler := &recordingHandler{status: http.StatusOK, body: string(payload)}
	c, _ := newTestClient(t, handler)

	resp, err := c.Login(context.Background(), types.UserLoginRequest{Email: "a@b.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "T1", resp.Token)
	assert.Equal(t, "T1", c.Token())

	// The next call carries the token without any extra step.
	handler.body = `{"success":true,"data":{"id":1,"email":"a@b.com","first_name":"","last_name":"","role":"buyer","is_active":true,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}}`
	_, err = c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer T1", handler.lastAuth)
}

func TestUnauthorizedClearsToken(t *testing.T) {
	handler := &recordingHandler{status: http.StatusUnauthorized, body: `{"success":false,"error":"token expired"}`}
	c, _ := newTestClient(t, handler)
	c.SetToken("stale")

	_, err := c.GetProfile(context.Background())
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "token expired", authErr.Message)
	assert.Empty(t, c.Token(), "401 must clear the stored token")
}

func TestHTTPError(t *testing.T) {
	handler := &recordingHandler{status: http.StatusInternalServerError, body: `{"success":false,"error":"boom"}`}
	c, _ := newTestClient(t, handler)

	_, err := c.GetProperty(context.Background(), 7)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Contains(t, httpErr.Error(), "boom")
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing is listening anymore

	c := New(WithBaseURL(server.URL))
	_, err := c.HealthCheck(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestProtocolErrorOnMissingData(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `{"success":true,"message":"done"}`}
	c, _ := newTestClient(t, handler)

	_, err := c.GetProperty(context.Background(), 1)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Contains(t, protoErr.Error(), "missing data")
}

func TestProtocolErrorOnInvalidJSON(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `<html>not json</html>`}
	c, _ := newTestClient(t, handler)

	_, err := c.HealthCheck(context.Background())
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestDeleteToleratesMissingData(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `{"success":true,"message":"property deleted"}`}
	c, _ := newTestClient(t, handler)

	err := c.DeleteProperty(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, handler.lastMethod)
	assert.Equal(t, "/properties/3", handler.lastPath)
}

func TestSearchQuerySerialization(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `{"success":true,"data":{"page":1,"page_size":10,"total":3,"total_pages":1,"data":[{},{},{}]}}`}
	c, _ := newTestClient(t, handler)

	query := "lake"
	minPrice := 300000.0
	page, err := c.GetProperties(context.Background(), &types.PropertySearchRequest{
		Query:    &query,
		MinPrice: &minPrice,
	})
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)

	assert.Equal(t, "/properties", handler.lastPath)
	assert.Equal(t, "min_price=300000&query=lake", handler.lastQuery,
		"absent fields must not be serialized at all")
}

func TestNilFilterSendsNoQuery(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `{"success":true,"data":{"page":1,"page_size":10,"total":0,"total_pages":1,"data":[]}}`}
	c, _ := newTestClient(t, handler)

	_, err := c.GetProperties(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, handler.lastQuery)
}

func TestIndependentClientsIndependentTokens(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, body: `{"success":true,"data":{"status":"ok"}}`}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a := New(WithBaseURL(server.URL))
	b := New(WithBaseURL(server.URL))
	a.SetToken("token-a")

	_, err := b.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Empty(t, handler.lastAuth, "second client must not share the first client's token")
}
