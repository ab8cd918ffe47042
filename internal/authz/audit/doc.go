// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package audit provides the append-only audit trail for authorization
// decisions and guarded data mutations.
//
// # Contract
//
// Logger.Log is fire-and-forget from the caller's perspective: a sink
// outage must never fail the business operation (unless the deployment
// escalates with FailHard). Entries carry tenant, actor, action, outcome,
// classification, residency, and a correlation id linking all entries of
// one logical request. Unset classification/residency are back-filled from
// the logger's configured defaults so audit records are always classifiable
// for retention.
//
// # Ordering
//
// Entries are sequenced onto a single buffered channel consumed by one
// goroutine, so entries sharing a correlation id are always persisted in
// the order they were logged, even under concurrent logging from unrelated
// correlation ids.
//
// # Resilience
//
// Multiple sinks may be registered (durable store, external forwarder). A
// failure in one sink does not block the others; failed durable writes fall
// back to a JSONL write-ahead log that ReplayWAL recovers after an outage.
// Close drains the queue, so entries are not dropped on process shutdown.
package audit
