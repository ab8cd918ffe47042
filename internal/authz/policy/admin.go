// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/audit"
)

// Administrative actions on tenant policy sets.
const (
	abacPolicyResource = "org.abac.policy"
	actionRead         = "read"
	actionUpdate       = "update"
)

// Admin exposes the tenant policy-set read/replace operations. Writes are
// validated atomically, serialized by the store's version check, and the
// tenant's cache entry is invalidated before the write is reported complete.
type Admin struct {
	store    Store
	cache    *Cache
	registry *authz.CapabilityRegistry
	audit    Recorder
}

// NewAdmin creates the policy administration surface.
func NewAdmin(store Store, cache *Cache, registry *authz.CapabilityRegistry, recorder Recorder) *Admin {
	return &Admin{
		store:    store,
		cache:    cache,
		registry: registry,
		audit:    recorder,
	}
}

// PoliciesForOrg returns the tenant's stored policy set. Requires the
// org.abac.policy read permission.
func (a *Admin) PoliciesForOrg(ctx context.Context, ac authz.Context, orgID string) (PolicySet, error) {
	if err := a.authorize(ctx, ac, orgID, actionRead); err != nil {
		return PolicySet{}, err
	}
	set, err := a.store.GetPolicySet(ctx, orgID)
	if err != nil {
		return PolicySet{}, oops.With("orgId", orgID).Wrapf(err, "get policy set")
	}
	return set, nil
}

// SetPoliciesForOrg validates and atomically replaces the tenant's policy
// list. expectedVersion is the version the caller read; a concurrent write
// since then fails the call with VERSION_CONFLICT and nothing is applied.
// The tenant's cached snapshot is invalidated before success is reported,
// so no later evaluation can observe the old list.
func (a *Admin) SetPoliciesForOrg(ctx context.Context, ac authz.Context, orgID string, policies []Policy, expectedVersion int64) (PolicySet, error) {
	if err := a.authorize(ctx, ac, orgID, actionUpdate); err != nil {
		return PolicySet{}, err
	}

	if err := ValidatePolicies(policies, a.registry); err != nil {
		return PolicySet{}, err
	}

	set, err := a.store.ReplacePolicySet(ctx, orgID, policies, expectedVersion, ac.UserID)
	if err != nil {
		return PolicySet{}, err
	}

	// The store's NOTIFY reaches other processes; the local snapshot is
	// dropped synchronously so this process is consistent immediately.
	a.cache.Invalidate(orgID)

	a.record(ctx, ac, orgID, audit.Entry{
		Action:       "abac.policy.replace",
		ResourceType: abacPolicyResource,
		Outcome:      audit.OutcomeAllow,
		Metadata: map[string]any{
			"policyCount": len(policies),
			"newVersion":  set.Version,
		},
	})
	return set, nil
}

// authorize gates admin calls on tenant match plus the org.abac.policy
// permission. System contexts bypass the permission check, never the audit.
func (a *Admin) authorize(ctx context.Context, ac authz.Context, orgID, action string) error {
	if ac.IsSystem() {
		return nil
	}
	if err := ac.Validate(); err != nil {
		return err
	}
	if ac.OrgID != orgID || !ac.Permissions.Has(abacPolicyResource, action) {
		a.record(ctx, ac, orgID, audit.Entry{
			Action:       "abac.policy." + action,
			ResourceType: abacPolicyResource,
			Outcome:      audit.OutcomeDeny,
		})
		return authz.Denied(
			"orgId", ac.OrgID,
			"targetOrgId", orgID,
			"action", action,
			"resource", abacPolicyResource,
		)
	}
	return nil
}

func (a *Admin) record(ctx context.Context, ac authz.Context, orgID string, entry audit.Entry) {
	entry.OrgID = orgID
	entry.ActorID = ac.UserID
	entry.Classification = ac.DataClassification
	entry.Residency = ac.DataResidency
	entry.AuditSource = ac.AuditSource
	entry.CorrelationID = ac.CorrelationID
	if a.audit == nil {
		return
	}
	if err := a.audit.Log(ctx, entry); err != nil {
		slog.WarnContext(ctx, "audit log failed", "error", err)
	}
}
