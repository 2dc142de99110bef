package gateway

import (
	"net/http"
	"time"

	"github.com/tovren/raidledger/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds a single upstream request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency bounds the category fetch fan-out.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithDefaultRaidleaderPct sets the raidleader cut used when the upstream
// endpoint is unavailable.
func WithDefaultRaidleaderPct(pct int) Option {
	return func(c *Client) {
		if pct >= 0 && pct <= 10 {
			c.defaultRL = pct
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
