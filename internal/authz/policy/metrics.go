// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for ABAC policy evaluation.
var (
	// evaluateDuration tracks the latency of Evaluate() calls.
	evaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "authcore_abac_evaluate_duration_seconds",
		Help:    "Histogram of ABAC policy evaluation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// policyEvaluations counts evaluations by outcome.
	policyEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_abac_evaluations_total",
		Help: "Total number of ABAC policy evaluations",
	}, []string{"outcome"})

	// unknownSelectorSkips counts policies skipped at evaluation time
	// because a selector no longer resolves against the registry.
	unknownSelectorSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_abac_unknown_selector_skips_total",
		Help: "Total number of policies skipped over unregistered selectors",
	}, []string{"org"})

	// cacheLoads counts tenant policy-set loads by result.
	cacheLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_abac_policy_cache_loads_total",
		Help: "Total number of tenant policy-set cache loads",
	}, []string{"result"})

	// cacheInvalidations counts hot invalidations of tenant snapshots.
	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_abac_policy_cache_invalidations_total",
		Help: "Total number of tenant policy-set cache invalidations",
	})
)

// recordEvaluation records metrics for a completed evaluation.
func recordEvaluation(duration time.Duration, outcome Outcome) {
	evaluateDuration.Observe(duration.Seconds())
	policyEvaluations.WithLabelValues(outcome.String()).Inc()
}
