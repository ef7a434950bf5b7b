// Package metrics exposes Prometheus counters for the booking core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "booking"

var (
	// LoginAttemptsTotal counts login attempts by outcome
	// (success, invalid_credentials, locked, inactive, rate_limited, error).
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// BookingOperationsTotal counts booking mutations by action and result code.
	BookingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Total number of booking operations by action and result.",
		},
		[]string{"action", "result"},
	)

	// AuditRecordsTotal counts audit records written by action.
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Total number of audit records written by action.",
		},
		[]string{"action"},
	)

	// AuditWriteFailuresTotal is the alerting signal for lost audit records.
	AuditWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Total number of audit records that could not be persisted or published.",
		},
		[]string{"sink"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)
)
