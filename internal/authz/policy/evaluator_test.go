// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/audit"
	"github.com/orgcentral/authcore/internal/authz/authztest"
	"github.com/orgcentral/authcore/internal/authz/policy"
	"github.com/orgcentral/authcore/internal/authz/policy/policytest"
	"github.com/orgcentral/authcore/pkg/errutil"
)

// captureRecorder collects audit entries handed to the evaluator's recorder.
type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *captureRecorder) Log(_ context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *captureRecorder) all() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

type fixture struct {
	store     *policytest.MemoryStore
	recorder  *captureRecorder
	evaluator *policy.Evaluator
}

func newFixture(t *testing.T, policies ...policy.Policy) *fixture {
	t.Helper()
	store := policytest.NewMemoryStore()
	if len(policies) > 0 {
		store.Seed("org1", 1, policies...)
	}
	recorder := &captureRecorder{}
	evaluator := policy.NewEvaluator(authztest.Registry(), policy.NewCache(store), recorder)
	return &fixture{store: store, recorder: recorder, evaluator: evaluator}
}

func mustRequest(t *testing.T, action, resource string, attrs map[string]any) policy.Request {
	t.Helper()
	req, err := policy.NewRequest(action, resource, attrs)
	require.NoError(t, err)
	return req
}

func TestEvaluateRBACFallback(t *testing.T) {
	f := newFixture(t)
	ac := authztest.NewContext()

	t.Run("member may read leave requests", func(t *testing.T) {
		decision, err := f.evaluator.Evaluate(context.Background(), ac,
			mustRequest(t, "read", "leaveRequest", nil))
		require.NoError(t, err)
		assert.True(t, decision.IsAllowed())
		assert.Equal(t, policy.OutcomeRBACAllow, decision.Outcome)
		assert.Empty(t, decision.MatchedPolicyID)
	})

	t.Run("member may not delete leave requests", func(t *testing.T) {
		decision, err := f.evaluator.Evaluate(context.Background(), ac,
			mustRequest(t, "delete", "leaveRequest", nil))
		require.NoError(t, err)
		assert.False(t, decision.IsAllowed())
		assert.Equal(t, policy.OutcomeRBACDeny, decision.Outcome)
	})
}

func TestEvaluateDenyOverrides(t *testing.T) {
	allow := policy.Policy{
		ID:        "p1-allow-compliance-read",
		Effect:    policy.EffectAllow,
		Actions:   []string{"read"},
		Resources: []string{"complianceItem"},
	}
	denySensitive := policy.Policy{
		ID:        "p2-deny-sensitive",
		Effect:    policy.EffectDeny,
		Actions:   []string{"read"},
		Resources: []string{"complianceItem"},
		ResourceConditions: []policy.Condition{
			{Path: "sensitive", Op: policy.OpEquals, Value: true},
		},
	}
	f := newFixture(t, allow, denySensitive)
	ac := authztest.NewContext()

	t.Run("sensitive record denied despite allow policy", func(t *testing.T) {
		decision, err := f.evaluator.Evaluate(context.Background(), ac,
			mustRequest(t, "read", "complianceItem", map[string]any{"sensitive": true}))
		require.NoError(t, err)
		assert.False(t, decision.IsAllowed())
		assert.Equal(t, policy.OutcomePolicyDeny, decision.Outcome)
		assert.Equal(t, "p2-deny-sensitive", decision.MatchedPolicyID)
	})

	t.Run("non-sensitive record allowed by policy", func(t *testing.T) {
		decision, err := f.evaluator.Evaluate(context.Background(), ac,
			mustRequest(t, "read", "complianceItem", map[string]any{"sensitive": false}))
		require.NoError(t, err)
		assert.True(t, decision.IsAllowed())
		assert.Equal(t, policy.OutcomePolicyAllow, decision.Outcome)
		assert.Equal(t, "p1-allow-compliance-read", decision.MatchedPolicyID)
	})
}

func TestEvaluatePolicyAllowBeatsRBACDeny(t *testing.T) {
	// A member role has no complianceItem permission; a satisfied allow
	// policy grants access anyway.
	f := newFixture(t, policy.Policy{
		ID:        "p-grant",
		Effect:    policy.EffectAllow,
		Actions:   []string{"read"},
		Resources: []string{"complianceItem"},
	})

	decision, err := f.evaluator.Evaluate(context.Background(), authztest.NewContext(),
		mustRequest(t, "read", "complianceItem", nil))
	require.NoError(t, err)
	assert.True(t, decision.IsAllowed())
	assert.Equal(t, policy.OutcomePolicyAllow, decision.Outcome)
}

func TestEvaluateUnsatisfiedPoliciesFallBackToRBAC(t *testing.T) {
	// Selectors match but conditions do not; the RBAC verdict stands and the
	// match list is still reported.
	f := newFixture(t, policy.Policy{
		ID:        "p-deny-contractors",
		Effect:    policy.EffectDeny,
		Actions:   []string{"read"},
		Resources: []string{"leaveRequest"},
		SubjectConditions: []policy.Condition{
			{Path: "contractType", Op: policy.OpEquals, Value: "contractor"},
		},
	})
	ac := authztest.NewContext(authztest.WithSubjectAttributes(
		map[string]any{"contractType": "permanent"}))

	decision, err := f.evaluator.Evaluate(context.Background(), ac,
		mustRequest(t, "read", "leaveRequest", nil))
	require.NoError(t, err)
	assert.True(t, decision.IsAllowed())
	assert.Equal(t, policy.OutcomeRBACAllow, decision.Outcome)
	require.Len(t, decision.Policies, 1)
	assert.False(t, decision.Policies[0].ConditionsMet)
}

func TestEvaluatePriorityOrdersReportedMatch(t *testing.T) {
	low := policy.Policy{
		ID: "p-low", Effect: policy.EffectAllow, Priority: 1,
		Actions: []string{"read"}, Resources: []string{"complianceItem"},
	}
	high := policy.Policy{
		ID: "p-high", Effect: policy.EffectAllow, Priority: 50,
		Actions: []string{"read"}, Resources: []string{"complianceItem"},
	}
	f := newFixture(t, low, high)

	decision, err := f.evaluator.Evaluate(context.Background(), authztest.NewContext(),
		mustRequest(t, "read", "complianceItem", nil))
	require.NoError(t, err)
	assert.Equal(t, "p-high", decision.MatchedPolicyID)

	// Priority never rescues an allow from a deny.
	f2 := newFixture(t,
		policy.Policy{
			ID: "p-allow-high", Effect: policy.EffectAllow, Priority: 100,
			Actions: []string{"read"}, Resources: []string{"complianceItem"},
		},
		policy.Policy{
			ID: "p-deny-low", Effect: policy.EffectDeny, Priority: 1,
			Actions: []string{"read"}, Resources: []string{"complianceItem"},
		},
	)
	decision, err = f2.evaluator.Evaluate(context.Background(), authztest.NewContext(),
		mustRequest(t, "read", "complianceItem", nil))
	require.NoError(t, err)
	assert.False(t, decision.IsAllowed())
	assert.Equal(t, "p-deny-low", decision.MatchedPolicyID)
}

func TestEvaluateSystemBypass(t *testing.T) {
	f := newFixture(t, policy.Policy{
		ID: "p-deny-all", Effect: policy.EffectDeny,
		Actions: []string{"*"}, Resources: []string{"*"},
	})

	decision, err := f.evaluator.Evaluate(context.Background(),
		authztest.SystemContext("org1"),
		mustRequest(t, "delete", "hr.people", nil))
	require.NoError(t, err)
	assert.True(t, decision.IsAllowed())
	assert.Equal(t, policy.OutcomeSystemBypass, decision.Outcome)

	entries := f.recorder.all()
	require.Len(t, entries, 1, "system bypass is still audited")
	assert.Equal(t, authz.SystemUserID, entries[0].ActorID)
	assert.Equal(t, audit.OutcomeAllow, entries[0].Outcome)
}

func TestEvaluateValidation(t *testing.T) {
	f := newFixture(t)

	t.Run("invalid context", func(t *testing.T) {
		_, err := f.evaluator.Evaluate(context.Background(),
			authztest.NewContext(authztest.WithOrg("")),
			mustRequest(t, "read", "leaveRequest", nil))
		errutil.AssertErrorCode(t, err, authz.CodeValidationFailed)
	})

	t.Run("empty request", func(t *testing.T) {
		_, err := f.evaluator.Evaluate(context.Background(), authztest.NewContext(), policy.Request{})
		errutil.AssertErrorCode(t, err, authz.CodeValidationFailed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.evaluator.Evaluate(ctx, authztest.NewContext(),
			mustRequest(t, "read", "leaveRequest", nil))
		require.Error(t, err)
	})
}

func TestEvaluateStoreError(t *testing.T) {
	f := newFixture(t)
	f.store.Err = assert.AnError

	_, err := f.evaluator.Evaluate(context.Background(), authztest.NewContext(),
		mustRequest(t, "read", "leaveRequest", nil))
	require.Error(t, err)

	assert.Empty(t, f.recorder.all(), "infrastructure failures do not audit a decision")
}

func TestEvaluateSkipsUnregisteredSelectors(t *testing.T) {
	// A policy whose selector no longer resolves against the registry is
	// skipped rather than trusted, leaving the RBAC verdict in force.
	f := newFixture(t, policy.Policy{
		ID: "p-stale", Effect: policy.EffectDeny,
		Actions: []string{"read"}, Resources: []string{"retired.*"},
	})

	decision, err := f.evaluator.Evaluate(context.Background(), authztest.NewContext(),
		mustRequest(t, "read", "leaveRequest", nil))
	require.NoError(t, err)
	assert.Equal(t, policy.OutcomeRBACAllow, decision.Outcome)
}

func TestEvaluateAuditsEveryDecision(t *testing.T) {
	f := newFixture(t)
	ac := authztest.NewContext()

	_, err := f.evaluator.Evaluate(context.Background(), ac,
		mustRequest(t, "read", "leaveRequest", nil))
	require.NoError(t, err)
	_, err = f.evaluator.Evaluate(context.Background(), ac,
		mustRequest(t, "delete", "leaveRequest", nil))
	require.NoError(t, err)

	entries := f.recorder.all()
	require.Len(t, entries, 2)

	assert.Equal(t, audit.OutcomeAllow, entries[0].Outcome)
	assert.Equal(t, "read", entries[0].Action)
	assert.Equal(t, audit.OutcomeDeny, entries[1].Outcome)
	assert.Equal(t, "delete", entries[1].Action)
	for _, e := range entries {
		assert.Equal(t, ac.OrgID, e.OrgID)
		assert.Equal(t, ac.UserID, e.ActorID)
		assert.Equal(t, ac.CorrelationID, e.CorrelationID)
		assert.Equal(t, "leaveRequest", e.ResourceType)
		assert.Contains(t, e.Metadata, "decisionOutcome")
	}
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	ac := authztest.NewContext()

	assert.NoError(t, f.evaluator.Authorize(context.Background(), ac,
		mustRequest(t, "read", "leaveRequest", nil)))

	err := f.evaluator.Authorize(context.Background(), ac,
		mustRequest(t, "approve", "leaveRequest", nil))
	require.Error(t, err)
	assert.True(t, authz.IsDenied(err))
	assert.Equal(t, "not authorized", err.Error(),
		"denials never reveal resource existence")
}

func TestNewRequest(t *testing.T) {
	_, err := policy.NewRequest("", "leaveRequest", nil)
	errutil.AssertErrorCode(t, err, authz.CodeValidationFailed)

	_, err = policy.NewRequest("read", "", nil)
	errutil.AssertErrorCode(t, err, authz.CodeValidationFailed)

	req, err := policy.NewRequest("read", "leaveRequest", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "read", req.Action)
	assert.Equal(t, "leaveRequest", req.Resource)
}

func TestDecisionInvariant(t *testing.T) {
	allow := policy.NewDecision(policy.OutcomePolicyAllow, "", "p1")
	assert.True(t, allow.IsAllowed())
	assert.NoError(t, allow.Validate())

	deny := policy.NewDecision(policy.OutcomePolicyDeny, "", "p1")
	assert.False(t, deny.IsAllowed())
	assert.NoError(t, deny.Validate())

	var zero policy.Decision
	assert.False(t, zero.IsAllowed())
	assert.NoError(t, zero.Validate(), "zero value is a consistent rbac_deny")
}
