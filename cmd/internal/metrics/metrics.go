// Package metrics exposes Prometheus counters for the auth subsystem.
// Counters are registered on the default registry and served by the app's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels used by the auth counters.
const (
	ResultOK            = "ok"
	ResultInvalid       = "invalid"
	ResultReuseDetected = "reuse_detected"
	ResultCASConflict   = "cas_conflict"
	ResultError         = "error"
)

// Revocation scope labels.
const (
	ScopeAll    = "all"
	ScopeDevice = "device"
	ScopeToken  = "token"
)

var (
	// Logins counts login attempts by result.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	// Rotations counts refresh rotations by result.
	Rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: "auth",
		Name:      "refresh_rotations_total",
		Help:      "Refresh credential rotations by result.",
	}, []string{"result"})

	// Revocations counts session revocations by scope.
	Revocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecom",
		Subsystem: "auth",
		Name:      "session_revocations_total",
		Help:      "Session revocations by scope.",
	}, []string{"scope"})
)
