// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// HTTPMiddleware records the method and status code of every request to the
// metrics and health router.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		RecordHTTPRequest(r.Method, strconv.Itoa(wrapper.statusCode))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ConnectionTracker marks a validator connection as active for its
// lifetime.
type ConnectionTracker struct {
	validator string
	started   time.Time
}

// NewConnectionTracker increments the active connection gauge for
// validator.
//
//	tracker := metrics.NewConnectionTracker(addr)
//	defer tracker.Close()
func NewConnectionTracker(validator string) *ConnectionTracker {
	if IsEnabled() {
		ActiveConnections.WithLabelValues(validator).Inc()
	}
	return &ConnectionTracker{validator: validator, started: time.Now()}
}

// Close decrements the active connection gauge.
func (ct *ConnectionTracker) Close() {
	if IsEnabled() {
		ActiveConnections.WithLabelValues(ct.validator).Dec()
	}
}

// Duration returns the time elapsed since the connection was established.
func (ct *ConnectionTracker) Duration() time.Duration {
	return time.Since(ct.started)
}
