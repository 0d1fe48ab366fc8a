package clients

import (
	"net/http"
	"time"
)

type HTTP struct{ c *http.Client }

func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{c: &http.Client{Timeout: timeout}}
}

// WithClient wraps an existing client, e.g. one from httptest.
func WithClient(c *http.Client) *HTTP { return &HTTP{c: c} }
