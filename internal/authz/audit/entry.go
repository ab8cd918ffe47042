// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"time"

	"github.com/orgcentral/authcore/internal/authz"
)

// Outcome records whether the audited operation was permitted.
type Outcome string

// Outcome values.
const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
)

// Entry is a single immutable audit record. Entries are never updated or
// deleted in request context; only the retention worker removes them.
type Entry struct {
	// ID is a ULID assigned by the logger when the entry is accepted.
	ID string `json:"id"`

	OrgID        string  `json:"orgId"`
	ActorID      string  `json:"actorId"`
	Action       string  `json:"action"`
	ResourceType string  `json:"resourceType"`
	ResourceID   string  `json:"resourceId,omitempty"`
	Outcome      Outcome `json:"outcome"`

	// MatchedPolicyID is set for ABAC decisions resolved by a policy.
	MatchedPolicyID string `json:"matchedPolicyId,omitempty"`

	Classification authz.Classification `json:"classification"`
	Residency      authz.Residency      `json:"residency"`

	AuditSource   string `json:"auditSource,omitempty"`
	CorrelationID string `json:"correlationId"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// Seq is the logger-assigned sequence number; sinks that support it
	// persist Seq so per-correlation order survives timestamp ties.
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}
