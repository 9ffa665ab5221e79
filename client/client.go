// Package client implements the Galactavista HTTP API client: a single
// point of access that builds requests, attaches the session bearer token,
// decodes the uniform response envelope and normalizes failures into typed
// errors. It carries no business logic.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL targets a local development backend.
	DefaultBaseURL = "http://localhost:8080/api/v1"

	// DefaultTimeout bounds every request unless a custom http.Client is
	// supplied.
	DefaultTimeout = 10 * time.Second

	tracerName = "github.com/galactavista/galactavista-go/client"
)

// Client talks to the Galactavista REST API. The zero value is not usable;
// construct with New. A Client is safe for concurrent use; the bearer token
// is the only mutable state and is guarded by a RWMutex so multiple logical
// sessions can coexist in one process, each with its own Client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the target host, e.g. "https://api.example.com/api/v1".
// A trailing slash is stripped.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the underlying transport wholesale. Timeout
// handling becomes the caller's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger enables structured request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables request instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a Client against DefaultBaseURL unless overridden.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = newLoggingTransport(c.httpClient.Transport, c.logger)
	return c
}

// BaseURL returns the configured target host.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken installs the bearer token used by all subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Token returns the currently installed bearer token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// send executes one HTTP call and returns the raw body and status. All
// error normalization except envelope decoding happens here: transport
// failures become *NetworkError and a 401 clears the token and becomes
// *AuthenticationError.
func (c *Client) send(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, int, error) {
	url := c.baseURL + endpoint

	ctx, span := c.tracer.Start(ctx, "galactavista.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordRequest(ctx, method, endpoint, 0, time.Since(start))
		span.RecordError(err)
		return nil, 0, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordRequest(ctx, method, endpoint, resp.StatusCode, time.Since(start))
		span.RecordError(err)
		return nil, resp.StatusCode, &NetworkError{URL: url, Err: err}
	}

	c.recordRequest(ctx, method, endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		// The session is gone as far as this client is concerned; the
		// session manager reacts to the error by clearing its own state.
		c.ClearToken()
		return nil, resp.StatusCode, &AuthenticationError{Message: envelopeError(payload)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &HTTPError{Status: resp.StatusCode, Message: envelopeError(payload)}
	}
	return payload, resp.StatusCode, nil
}

// envelopeError pulls the server-provided error message out of a response
// body, tolerating bodies that are not an envelope at all.
func envelopeError(payload []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return ""
	}
	if env.Error != "" {
		return env.Error
	}
	return env.Message
}

// do issues a JSON request and returns the envelope's data payload. A 2xx
// response without data is a contract violation and surfaces as
// *ProtocolError rather than a zero value.
func do[T any](ctx context.Context, c *Client, method, endpoint string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	payload, _, err := c.send(ctx, method, endpoint, reader, "application/json")
	if err != nil {
		return zero, err
	}
	return decodeEnvelope[T](endpoint, payload)
}

// decodeEnvelope unwraps the uniform response envelope and enforces the
// presence of the data payload.
func decodeEnvelope[T any](endpoint string, payload []byte) (T, error) {
	var zero T
	var env envelope[T]
	if err := json.Unmarshal(payload, &env); err != nil {
		return zero, &ProtocolError{Endpoint: endpoint, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if env.Data == nil {
		return zero, &ProtocolError{Endpoint: endpoint, Reason: "success response missing data"}
	}
	return *env.Data, nil
}

// doVoid is do for operations whose envelope legitimately carries no data,
// such as DELETE.
func doVoid(ctx context.Context, c *Client, method, endpoint string, body any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	_, _, err := c.send(ctx, method, endpoint, reader, "application/json")
	return err
}

// envelope mirrors types.Envelope but stays local so decoding does not
// depend on the wire package's omitempty choices.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
	Error   string `json:"error"`
}

func (c *Client) recordRequest(ctx context.Context, method, endpoint string, status int, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	// Keep the endpoint label free of query strings.
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	c.metrics.record(ctx, method, endpoint, status, elapsed)
}
