// Package http wraps the outbound HTTP client used for calls to external services.
package http

import (
	"net/http"
	"time"

	"shopping-assistant/internal/common/logger"
)

// Client is an *http.Client with a per-call timeout that logs every exchange at debug level.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient returns a client whose calls give up after timeout. Zero means no limit beyond the
// request context.
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

// Do sends req. The request context still bounds the call.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)

	fields := map[string]interface{}{
		"method":    req.Method,
		"host":      req.URL.Host,
		"path":      req.URL.Path,
		"elapsedMs": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.logger.Debug("Outbound request failed", fields)
		return nil, err
	}
	fields["status"] = resp.StatusCode
	c.logger.Debug("Outbound request", fields)
	return resp, nil
}
