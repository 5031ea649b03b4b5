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

// Package metrics defines the Prometheus metrics exported by the KMS.
//
// All metrics live in the "kms" namespace and are registered with the
// default registry on import. Recording can be switched off at runtime with
// Disable, which the supervisor does when the metrics endpoint is not
// configured.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all KMS metrics
	Namespace = "kms"

	// Label names
	LabelType       = "type"
	LabelChain      = "chain_id"
	LabelKind       = "kind"
	LabelValidator  = "validator"
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// RequestsTotal counts decoded validator requests by message type and
	// outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total number of validator requests by message type and status",
		},
		[]string{LabelType, LabelStatus},
	)

	// RequestDuration tracks the time from decoding a request to writing its
	// response.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of validator requests in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelType},
	)

	// SignaturesTotal counts signatures produced per chain and message type.
	SignaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "signatures_total",
			Help:      "Total number of consensus signatures by chain and message type",
		},
		[]string{LabelChain, LabelType},
	)

	// ErrorsTotal counts errors by kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by kind",
		},
		[]string{LabelKind},
	)

	// DoubleSignTotal counts refused double sign attempts per chain.
	DoubleSignTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "double_sign_attempts_total",
			Help:      "Total number of refused double sign attempts by chain",
		},
		[]string{LabelChain},
	)

	// LastSignedHeight is the height of the last signed message per chain.
	LastSignedHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_signed_height",
			Help:      "Height of the last signed consensus message by chain",
		},
		[]string{LabelChain},
	)

	// ActiveConnections is 1 while a validator connection is open.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of open connections by validator",
		},
		[]string{LabelValidator},
	)

	// ReconnectsTotal counts reconnection attempts per validator.
	ReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnection attempts by validator",
		},
		[]string{LabelValidator},
	)

	// HTTPRequestsTotal tracks requests to the metrics and health endpoints.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// Goroutines tracks the current number of goroutines.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks currently allocated heap bytes.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ServerUptime tracks the time since the supervisor started.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordRequest records one handled request of the given message type.
func RecordRequest(msgType, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	RequestsTotal.WithLabelValues(msgType, status).Inc()
	RequestDuration.WithLabelValues(msgType).Observe(duration)
}

// RecordSignature records a produced signature and the signed height.
func RecordSignature(chainID, msgType string, height int64) {
	if !enabled.Load() {
		return
	}
	SignaturesTotal.WithLabelValues(chainID, msgType).Inc()
	LastSignedHeight.WithLabelValues(chainID).Set(float64(height))
}

// RecordError records an error of the given kind label.
func RecordError(kind string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordDoubleSign records a refused double sign attempt.
func RecordDoubleSign(chainID string) {
	if !enabled.Load() {
		return
	}
	DoubleSignTotal.WithLabelValues(chainID).Inc()
}

// RecordReconnect records a reconnection attempt to a validator.
func RecordReconnect(validator string) {
	if !enabled.Load() {
		return
	}
	ReconnectsTotal.WithLabelValues(validator).Inc()
}

// RecordHTTPRequest records a request to the HTTP endpoint.
func RecordHTTPRequest(method, statusCode string) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
}

// Enable turns recording on.
func Enable() {
	enabled.Store(true)
}

// Disable turns recording off.
func Disable() {
	enabled.Store(false)
}

// IsEnabled reports whether recording is on.
func IsEnabled() bool {
	return enabled.Load()
}
