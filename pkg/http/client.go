package http

import (
	"Muninn/internal/config"
	"Muninn/pkg/circuitbreaker"
	"fmt"
	"net/http"
	"time"
)

const defaultClientTimeout = 30 * time.Second

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a new Client with a circuit breaker configured.
// With the breaker disabled it falls back to the default http.Client.
func NewClient(cfg config.CircuitBreakerConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{httpClient: http.DefaultClient, breaker: nil}, nil
	}

	breaker, err := createCircuitBreaker(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultClientTimeout},
		breaker:    breaker,
	}, nil
}

// Do executes an HTTP request with circuit breaker protection.
// It considers status codes >= 500 as failures.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response

	// Execute returns either ErrCircuitOpen or the error from the call itself.
	_, breakerErr := c.breaker.Execute(func() (interface{}, error) {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		// Server errors count against the breaker. The response is consumed
		// here, callers only ever see the error.
		if resp.StatusCode >= http.StatusInternalServerError {
			status := resp.StatusCode
			resp.Body.Close()
			resp = nil
			return nil, fmt.Errorf("server error: received status code %d", status)
		}

		return resp, nil
	})

	if breakerErr != nil {
		return nil, breakerErr
	}

	return resp, nil
}
