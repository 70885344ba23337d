// Package metrics provides Prometheus metrics for identity-gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardDecisions counts route admission outcomes.
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identitygate",
			Name:      "guard_decisions_total",
			Help:      "Route admission decisions by outcome",
		},
		[]string{"decision"},
	)

	// ProfileFetches counts profile lookups issued by identity resolvers.
	ProfileFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identitygate",
			Name:      "profile_fetch_total",
			Help:      "Profile fetches by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveResolvers tracks identity resolvers held by the hub.
	ActiveResolvers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "identitygate",
			Name:      "resolvers_active",
			Help:      "Number of live per-session identity resolvers",
		},
	)
)

// Profile fetch outcomes.
const (
	FetchFound   = "found"
	FetchMissing = "missing"
	FetchError   = "error"
	FetchTimeout = "timeout"
	FetchStale   = "stale"
)
