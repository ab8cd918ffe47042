// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import (
	"log/slog"

	"github.com/samber/oops"
)

// PermissionResolver maps role keys to effective permission maps, merging
// per-membership overrides on top of the role's base statements.
//
// Thread-safety: the role table and registry are immutable after
// construction; Resolve is safe for unlimited concurrent use.
type PermissionResolver struct {
	registry *CapabilityRegistry
	roles    map[RoleKey]PermissionMap
}

// NewPermissionResolver builds a resolver over the built-in role statements,
// validating every statement against the registry. A built-in statement
// referencing an unknown capability is a deployment bug and fails fast.
func NewPermissionResolver(registry *CapabilityRegistry) (*PermissionResolver, error) {
	return NewPermissionResolverWithRoles(registry, BuiltinRoleStatements())
}

// NewPermissionResolverWithRoles builds a resolver over custom role
// statements, validated against the registry.
func NewPermissionResolverWithRoles(registry *CapabilityRegistry, roles map[RoleKey]PermissionMap) (*PermissionResolver, error) {
	if registry == nil {
		return nil, oops.Code(CodeConfigInvalid).Errorf("permission resolver: registry is required")
	}
	for role, statements := range roles {
		if err := registry.ValidatePermissions(statements); err != nil {
			return nil, oops.With("role", string(role)).Wrap(err)
		}
	}
	return &PermissionResolver{registry: registry, roles: roles}, nil
}

// Resolve returns the effective permission map for a role key plus an
// optional per-membership override map. An unknown role key resolves to the
// deny-all RoleNone rather than erroring, so a corrupted role reference
// never escalates privilege.
//
// Merge semantics: a resource present in overrides replaces the base entry
// for that resource (override wins on conflict); resources present on only
// one side are kept (union on non-conflicting resources).
func (r *PermissionResolver) Resolve(role RoleKey, overrides PermissionMap) PermissionMap {
	base, ok := r.roles[role]
	if !ok {
		slog.Warn("unknown role key, resolving to deny-all role",
			"roleKey", string(role),
			"fallback", string(RoleNone))
		base = r.roles[RoleNone]
	}

	resolved := base.Clone()
	for resource, actions := range overrides {
		// Evaluation-time defence: overrides are validated at membership
		// write time, but a stale or hand-edited membership row must not
		// smuggle capabilities outside the registry.
		kept := make([]string, 0, len(actions))
		for _, action := range actions {
			if r.registry.Allows(resource, action) {
				kept = append(kept, action)
				continue
			}
			slog.Warn("dropping override permission outside capability registry",
				"roleKey", string(role),
				"resource", resource,
				"action", action)
		}
		if len(kept) > 0 {
			resolved[resource] = kept
		} else {
			delete(resolved, resource)
		}
	}
	return resolved
}

// ValidateOverrides checks a per-membership override map against the
// registry. Called when the membership record is written.
func (r *PermissionResolver) ValidateOverrides(overrides PermissionMap) error {
	return r.registry.ValidatePermissions(overrides)
}

// Registry returns the capability registry the resolver validates against.
func (r *PermissionResolver) Registry() *CapabilityRegistry {
	return r.registry
}
