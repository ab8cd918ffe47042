// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesLogged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_audit_entries_total",
		Help: "Total number of audit entries accepted by outcome",
	}, []string{"outcome"})

	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_audit_sink_failures_total",
		Help: "Total number of audit sink append failures",
	}, []string{"sink"})

	walEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "authcore_audit_wal_entries",
		Help: "Current number of entries in the audit WAL",
	})

	walFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_audit_wal_failures_total",
		Help: "Total number of audit WAL write failures",
	})
)
