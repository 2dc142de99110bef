// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tovren/raidledger/internal/domain/types"
	"github.com/tovren/raidledger/pkg/metrics"
)

// Identity headers set by the fronting auth layer. The engine trusts them;
// authenticating the caller is the edge's job.
const (
	headerUserID   = "X-User-Id"
	headerUserName = "X-User-Name"
	headerManager  = "X-Raid-Manager"
)

// actorFrom extracts the acting user's identity from request headers.
func actorFrom(r *http.Request) types.Actor {
	return types.Actor{
		UserID:   r.Header.Get(headerUserID),
		UserName: r.Header.Get(headerUserName),
		Manager:  r.Header.Get(headerManager) == "true",
	}
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, time.Since(start).Seconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
