package gateway

import "errors"

// Sentinel kinds for upstream fetch errors. Both degrade the affected
// dataset rather than failing the computation.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
)
