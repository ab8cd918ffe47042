// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package policy implements attribute-based access control on top of the
// coarse RBAC layer. Policies are per-tenant, stored as structured JSON,
// and combined with deny-overrides precedence; when no policy matches the
// decision falls back to the role's permission map.
package policy

import (
	"fmt"

	"github.com/orgcentral/authcore/internal/authz"
)

// Effect declares a policy's intended contribution when it matches.
type Effect string

// Effect constants define the valid policy effect declarations.
const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// String returns the underlying string value for DB serialization.
func (e Effect) String() string {
	return string(e)
}

// Operator identifies a condition comparison.
type Operator string

// Operator constants define the supported condition comparisons.
const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpExists    Operator = "exists"
)

// Condition compares one attribute against a literal value. Path is a
// dot-separated lookup into the attribute bag ("department", "record.tags").
type Condition struct {
	Path  string   `json:"path"`
	Op    Operator `json:"op"`
	Value any      `json:"value,omitempty"`
}

// Policy is a single tenant-scoped ABAC rule. Actions and Resources are
// selector lists (exact names, bare "*", or a trailing-"*" segment prefix);
// a policy applies only when both selector lists match the request. All
// conditions within a policy are conjunctive.
type Policy struct {
	ID                 string      `json:"id"`
	Description        string      `json:"description,omitempty"`
	Effect             Effect      `json:"effect"`
	Actions            []string    `json:"actions"`
	Resources          []string    `json:"resources"`
	SubjectConditions  []Condition `json:"subjectConditions,omitempty"`
	ResourceConditions []Condition `json:"resourceConditions,omitempty"`
	Priority           int         `json:"priority,omitempty"`
}

// Outcome represents the evaluated result of an authorization decision.
type Outcome int

// Outcome constants define the possible decision outcomes.
const (
	OutcomeRBACDeny     Outcome = iota // rbac_deny
	OutcomeRBACAllow                   // rbac_allow
	OutcomePolicyAllow                 // policy_allow
	OutcomePolicyDeny                  // policy_deny
	OutcomeSystemBypass                // system_bypass
)

var outcomeStrings = [...]string{
	"rbac_deny",
	"rbac_allow",
	"policy_allow",
	"policy_deny",
	"system_bypass",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeStrings) {
		return outcomeStrings[o]
	}
	return fmt.Sprintf("unknown(%d)", int(o))
}

// PolicyMatch records that a specific policy's selectors matched the request
// and whether its conditions were satisfied.
type PolicyMatch struct {
	PolicyID      string
	Effect        Effect
	ConditionsMet bool
}

// Decision is the result of evaluating an authorization request.
// The allowed field is unexported to prevent invariant bypass.
type Decision struct {
	allowed         bool
	Outcome         Outcome
	Reason          string
	MatchedPolicyID string
	Policies        []PolicyMatch
}

// NewDecision creates a Decision with the allowed field set consistently
// based on the outcome: policy/RBAC allows and system bypass grant access,
// all others deny.
func NewDecision(outcome Outcome, reason, matchedPolicyID string) Decision {
	return Decision{
		allowed:         outcomeAllows(outcome),
		Outcome:         outcome,
		Reason:          reason,
		MatchedPolicyID: matchedPolicyID,
	}
}

// IsAllowed returns whether the decision grants access.
func (d Decision) IsAllowed() bool {
	return d.allowed
}

// Validate checks that the Decision invariant holds: the allowed field must
// be consistent with the Outcome. This is called at evaluator return
// boundaries.
func (d Decision) Validate() error {
	if d.allowed != outcomeAllows(d.Outcome) {
		return fmt.Errorf(
			"decision invariant violated: allowed=%v but outcome=%s",
			d.allowed, d.Outcome,
		)
	}
	return nil
}

func outcomeAllows(o Outcome) bool {
	return o == OutcomePolicyAllow || o == OutcomeRBACAllow || o == OutcomeSystemBypass
}

// PolicySet is a tenant's complete policy list plus the optimistic version
// used to serialize admin writes.
type PolicySet struct {
	OrgID    string
	Policies []Policy
	Version  int64
	Etag     string
}

// Request carries one authorization question into the evaluator.
type Request struct {
	Action             string
	Resource           string
	ResourceAttributes map[string]any
}

// NewRequest creates a validated Request. Returns an error if action or
// resource is empty, preventing silent misuse at authorization boundaries.
func NewRequest(action, resource string, resourceAttrs map[string]any) (Request, error) {
	if action == "" {
		return Request{}, authz.Validation("action must not be empty")
	}
	if resource == "" {
		return Request{}, authz.Validation("resource must not be empty")
	}
	return Request{
		Action:             action,
		Resource:           resource,
		ResourceAttributes: resourceAttrs,
	}, nil
}
