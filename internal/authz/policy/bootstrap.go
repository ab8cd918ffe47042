// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
)

// DefaultBootstrapPolicies returns the policy set installed for a tenant
// that has never had an admin write. Default-deny behavior needs no explicit
// policy (no match falls back to RBAC); the seeds only restrict sensitive
// data beyond what roles express.
func DefaultBootstrapPolicies() []Policy {
	return []Policy{
		{
			ID:          "seed:deny-secret-export",
			Description: "Compliance exports never include records above OFFICIAL_SENSITIVE",
			Effect:      EffectDeny,
			Actions:     []string{"export"},
			Resources:   []string{"complianceItem", "auditLog"},
			ResourceConditions: []Condition{
				{Path: "classification", Op: OpIn, Value: []any{"SECRET", "TOP_SECRET"}},
			},
			Priority: 100,
		},
		{
			ID:          "seed:deny-offzone-people-read",
			Description: "People records pinned to a residency zone are invisible outside it",
			Effect:      EffectDeny,
			Actions:     []string{"read", "update"},
			Resources:   []string{"hr.people"},
			ResourceConditions: []Condition{
				{Path: "residencyMismatch", Op: OpEquals, Value: true},
			},
			Priority: 100,
		},
	}
}

// Bootstrap seeds a tenant's policy set when none exists. A tenant whose
// version has moved past zero has been admin-customized and is left alone.
// Failures are fatal so a misconfigured tenant aborts provisioning rather
// than running without its guard policies.
func Bootstrap(ctx context.Context, s Store, registry *authz.CapabilityRegistry, orgID string, logger *slog.Logger) error {
	existing, err := s.GetPolicySet(ctx, orgID)
	if err != nil {
		return oops.With("orgId", orgID).Wrapf(err, "bootstrap: read policy set")
	}
	if existing.Version > 0 {
		logger.Debug("policy set already seeded", "orgId", orgID, "version", existing.Version)
		return nil
	}

	seeds := DefaultBootstrapPolicies()
	if err := ValidatePolicies(seeds, registry); err != nil {
		return oops.With("orgId", orgID).Wrapf(err, "bootstrap: seed policies invalid")
	}

	if _, err := s.ReplacePolicySet(ctx, orgID, seeds, 0, authz.SystemUserID); err != nil {
		if authz.IsVersionConflict(err) {
			// A concurrent bootstrap or admin write got there first.
			logger.Debug("policy set seeded concurrently", "orgId", orgID)
			return nil
		}
		return oops.With("orgId", orgID).Wrapf(err, "bootstrap: write seed policies")
	}

	logger.Info("seeded tenant policy set", "orgId", orgID, "policies", len(seeds))
	return nil
}
