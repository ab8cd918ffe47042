// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
)

func validationf(policyID, format string, args ...any) error {
	return oops.
		Code(authz.CodeValidationFailed).
		With("policyId", policyID).
		Errorf(format, args...)
}

// ValidatePolicy checks one policy against the selector grammar, the
// capability registry, and the condition grammar. Validation runs at write
// time so a malformed policy is rejected before it is ever stored.
func ValidatePolicy(p Policy, reg *authz.CapabilityRegistry) error {
	if _, err := compilePolicy(p); err != nil {
		return err
	}
	for _, raw := range p.Resources {
		if err := ValidateResourceSelector(raw, reg); err != nil {
			return oops.Code(authz.CodeValidationFailed).With("policyId", p.ID).Wrap(err)
		}
	}
	for _, raw := range p.Actions {
		if err := ValidateActionSelector(raw, reg); err != nil {
			return oops.Code(authz.CodeValidationFailed).With("policyId", p.ID).Wrap(err)
		}
	}
	for _, cond := range p.SubjectConditions {
		if err := validateCondition(p.ID, cond); err != nil {
			return err
		}
	}
	for _, cond := range p.ResourceConditions {
		if err := validateCondition(p.ID, cond); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePolicies validates a whole tenant policy list, additionally
// rejecting duplicate policy IDs. The list is accepted or rejected
// atomically, never partially applied.
func ValidatePolicies(policies []Policy, reg *authz.CapabilityRegistry) error {
	seen := make(map[string]struct{}, len(policies))
	for _, p := range policies {
		if _, dup := seen[p.ID]; dup {
			return validationf(p.ID, "duplicate policy id")
		}
		seen[p.ID] = struct{}{}
		if err := ValidatePolicy(p, reg); err != nil {
			return err
		}
	}
	return nil
}
