// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client wraps http.Client with a fixed request timeout. Callers attach
// their context to the request itself.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
