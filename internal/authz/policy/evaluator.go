// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/audit"
)

var tracer = otel.Tracer("authcore/policy")

// Recorder receives the evaluator's audit entries. *audit.Logger satisfies it.
type Recorder interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Evaluator answers authorization questions for one capability registry.
// It is stateless apart from the read-mostly tenant policy cache and is safe
// for unlimited concurrent use.
type Evaluator struct {
	registry *authz.CapabilityRegistry
	cache    *Cache
	audit    Recorder
}

// NewEvaluator creates an evaluator over the given policy cache.
func NewEvaluator(registry *authz.CapabilityRegistry, cache *Cache, recorder Recorder) *Evaluator {
	return &Evaluator{
		registry: registry,
		cache:    cache,
		audit:    recorder,
	}
}

// Evaluate runs the full decision algorithm: system bypass, tenant policy
// matching with deny-overrides precedence, then RBAC fallback when no policy
// applies. Every decision is audited. The returned error reports evaluation
// infrastructure failures only; a denial is expressed in the Decision.
func (e *Evaluator) Evaluate(ctx context.Context, ac authz.Context, req Request) (decision Decision, err error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(
			attribute.String("authz.org_id", ac.OrgID),
			attribute.String("authz.action", req.Action),
			attribute.String("authz.resource", req.Resource),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("authz.outcome", decision.Outcome.String()))
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return Decision{}, oops.Wrapf(err, "context cancelled before evaluation")
	}

	// System bypass comes before input validation: internal workers always
	// pass, and their actions are still audited.
	if ac.IsSystem() {
		decision := NewDecision(OutcomeSystemBypass, "system bypass", "")
		return e.finish(ctx, ac, req, decision, start)
	}

	if err := ac.Validate(); err != nil {
		return Decision{}, err
	}
	if req.Action == "" || req.Resource == "" {
		return Decision{}, authz.Validation("action and resource must be non-empty")
	}

	snap, err := e.cache.Snapshot(ctx, ac.OrgID)
	if err != nil {
		return Decision{}, oops.With("orgId", ac.OrgID).Wrapf(err, "load tenant policies")
	}

	candidates := e.applicablePolicies(ctx, ac.OrgID, snap, req)
	if len(candidates) == 0 {
		return e.finish(ctx, ac, req, e.rbacFallback(ac, req), start)
	}

	subjectBag := ac.SubjectBag()
	satisfied := make([]PolicyMatch, 0, len(candidates))
	for _, candidate := range candidates {
		met := evaluateConditions(candidate.SubjectConditions, subjectBag) &&
			evaluateConditions(candidate.ResourceConditions, req.ResourceAttributes)
		satisfied = append(satisfied, PolicyMatch{
			PolicyID:      candidate.ID,
			Effect:        candidate.Effect,
			ConditionsMet: met,
		})
	}

	decision = combineMatches(satisfied)
	if decision.Outcome == OutcomeRBACDeny {
		// No policy's conditions were satisfied. Policies that apply but
		// do not match leave the RBAC verdict untouched.
		decision = e.rbacFallback(ac, req)
		decision.Policies = satisfied
	}
	return e.finish(ctx, ac, req, decision, start)
}

// Authorize is the error-returning form of Evaluate: it yields nil when the
// decision allows and a uniform denial error otherwise.
func (e *Evaluator) Authorize(ctx context.Context, ac authz.Context, req Request) error {
	decision, err := e.Evaluate(ctx, ac, req)
	if err != nil {
		return err
	}
	if !decision.IsAllowed() {
		return authz.Denied(
			"orgId", ac.OrgID,
			"action", req.Action,
			"resource", req.Resource,
			"outcome", decision.Outcome.String(),
		)
	}
	return nil
}

// applicablePolicies filters the snapshot by selector matching. Policies
// whose selectors no longer resolve against the registry are skipped with a
// configuration warning rather than trusted: write-time validation should
// make this unreachable, but registry and policy updates are not atomic.
func (e *Evaluator) applicablePolicies(ctx context.Context, orgID string, snap Snapshot, req Request) []compiledPolicy {
	result := make([]compiledPolicy, 0, len(snap.policies))
	for _, candidate := range snap.policies {
		if !candidate.appliesTo(req.Action, req.Resource) {
			continue
		}
		if !candidate.selectorsRegistered(e.registry) {
			slog.WarnContext(ctx, "policy references unknown selector, skipping",
				"orgId", orgID,
				"policyId", candidate.ID)
			unknownSelectorSkips.WithLabelValues(orgID).Inc()
			continue
		}
		result = append(result, candidate)
	}
	// Priority orders which matched policy a decision reports; it never
	// changes the deny-overrides verdict.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority > result[j].Priority
	})
	return result
}

// rbacFallback answers from the role's permission map alone.
func (e *Evaluator) rbacFallback(ac authz.Context, req Request) Decision {
	if ac.Permissions.Has(req.Resource, req.Action) {
		return NewDecision(OutcomeRBACAllow, "role permits action", "")
	}
	return NewDecision(OutcomeRBACDeny, "role does not permit action", "")
}

// combineMatches implements deny-overrides combination over the satisfied
// policy matches. Returns an OutcomeRBACDeny decision when nothing matched,
// signalling the caller to fall back to RBAC.
func combineMatches(satisfied []PolicyMatch) Decision {
	for _, match := range satisfied {
		if match.ConditionsMet && match.Effect == EffectDeny {
			decision := NewDecision(OutcomePolicyDeny, "deny policy satisfied", match.PolicyID)
			decision.Policies = satisfied
			return decision
		}
	}
	for _, match := range satisfied {
		if match.ConditionsMet && match.Effect == EffectAllow {
			decision := NewDecision(OutcomePolicyAllow, "allow policy satisfied", match.PolicyID)
			decision.Policies = satisfied
			return decision
		}
	}
	return NewDecision(OutcomeRBACDeny, "no policies satisfied", "")
}

// finish validates the decision invariant, audits, and records metrics.
func (e *Evaluator) finish(ctx context.Context, ac authz.Context, req Request, decision Decision, start time.Time) (Decision, error) {
	if err := decision.Validate(); err != nil {
		return decision, oops.Wrapf(err, "decision validation failed")
	}

	outcome := audit.OutcomeDeny
	if decision.IsAllowed() {
		outcome = audit.OutcomeAllow
	}
	entry := audit.Entry{
		OrgID:           ac.OrgID,
		ActorID:         ac.UserID,
		Action:          req.Action,
		ResourceType:    req.Resource,
		Outcome:         outcome,
		MatchedPolicyID: decision.MatchedPolicyID,
		Classification:  ac.DataClassification,
		Residency:       ac.DataResidency,
		AuditSource:     ac.AuditSource,
		CorrelationID:   ac.CorrelationID,
		Metadata: map[string]any{
			"decisionOutcome": decision.Outcome.String(),
			"durationUs":      time.Since(start).Microseconds(),
		},
	}
	if e.audit != nil {
		if err := e.audit.Log(ctx, entry); err != nil {
			slog.WarnContext(ctx, "audit log failed", "error", err)
		}
	}

	recordEvaluation(time.Since(start), decision.Outcome)
	return decision, nil
}
