package api

import "time"

type options struct {
	heartbeat time.Duration
}

// Option customizes API server construction.
type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{heartbeat: 25 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStreamHeartbeat sets the keep-alive interval for SSE streams.
func WithStreamHeartbeat(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.heartbeat = d
		}
	}
}
