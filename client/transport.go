package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// loggingTransport wraps a RoundTripper, tags every outgoing request with a
// request ID and logs completion with latency and status.
type loggingTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func newLoggingTransport(base http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, logger: logger}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	requestLogger := t.logger.With(
		slog.String("req_id", reqID),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)
	requestLogger.DebugContext(req.Context(), "Request started")

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		requestLogger.WarnContext(req.Context(), "Request failed",
			slog.Duration("latency", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, err
	}

	requestLogger.DebugContext(req.Context(), "Request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)
	return resp, nil
}
