// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import "sort"

// RoleKey is a coarse role held by a member within one tenant.
type RoleKey string

// Built-in role keys.
const (
	RoleOwner      RoleKey = "owner"
	RoleOrgAdmin   RoleKey = "orgAdmin"
	RoleMember     RoleKey = "member"
	RoleCompliance RoleKey = "compliance"
	// RoleCustom marks memberships whose permissions come entirely from a
	// per-membership override map.
	RoleCustom RoleKey = "custom"
	// RoleNone is the canonical deny-all role. Unknown role keys resolve to
	// it so a corrupted role reference can never escalate privilege.
	RoleNone RoleKey = "none"
)

// PermissionMap maps a resource name to the actions permitted on it.
type PermissionMap map[string][]string

// Has reports whether the map permits action on resource.
func (m PermissionMap) Has(resource, action string) bool {
	for _, a := range m[resource] {
		if a == action {
			return true
		}
	}
	return false
}

// HasAll reports whether every (resource, action) pair in required is
// permitted. It short-circuits on the first missing permission.
func (m PermissionMap) HasAll(required PermissionMap) bool {
	for resource, actions := range required {
		for _, action := range actions {
			if !m.Has(resource, action) {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy with deterministic (sorted) action order.
func (m PermissionMap) Clone() PermissionMap {
	if m == nil {
		return PermissionMap{}
	}
	out := make(PermissionMap, len(m))
	for resource, actions := range m {
		copied := append([]string(nil), actions...)
		sort.Strings(copied)
		out[resource] = copied
	}
	return out
}

// Role statement groups. Roles compose groups explicitly, no inheritance.

var memberStatements = PermissionMap{
	"leaveRequest": {"read", "create"},
	"hr.people":    {"read"},
}

var complianceStatements = PermissionMap{
	"complianceItem": {"read", "create", "update", "export"},
	"auditLog":       {"read", "export"},
}

var adminStatements = PermissionMap{
	"leaveRequest":    {"read", "create", "update", "delete", "approve"},
	"complianceItem":  {"read", "create", "update", "delete", "export"},
	"hr.people":       {"read", "create", "update", "delete"},
	"org.membership":  {"read", "invite", "update", "remove"},
	"org.role":        {"read", "create", "update", "delete"},
	"org.abac.policy": {"read", "update"},
}

var ownerStatements = PermissionMap{
	"auditLog": {"read"},
}

// BuiltinRoleStatements returns the base permission map for every built-in
// role. RoleCustom and RoleNone start empty; custom roles are filled from
// membership overrides, RoleNone stays empty forever.
func BuiltinRoleStatements() map[RoleKey]PermissionMap {
	return map[RoleKey]PermissionMap{
		RoleMember:     memberStatements.Clone(),
		RoleCompliance: composeStatements(memberStatements, complianceStatements),
		RoleOrgAdmin:   composeStatements(memberStatements, adminStatements),
		RoleOwner:      composeStatements(memberStatements, adminStatements, complianceStatements, ownerStatements),
		RoleCustom:     PermissionMap{},
		RoleNone:       PermissionMap{},
	}
}

// IsBuiltinRole reports whether key names a built-in role.
func IsBuiltinRole(key RoleKey) bool {
	switch key {
	case RoleOwner, RoleOrgAdmin, RoleMember, RoleCompliance, RoleCustom, RoleNone:
		return true
	default:
		return false
	}
}

// composeStatements merges statement groups, unioning actions per resource.
func composeStatements(groups ...PermissionMap) PermissionMap {
	result := PermissionMap{}
	for _, g := range groups {
		for resource, actions := range g {
			seen := make(map[string]struct{}, len(result[resource])+len(actions))
			for _, a := range result[resource] {
				seen[a] = struct{}{}
			}
			for _, a := range actions {
				seen[a] = struct{}{}
			}
			merged := make([]string, 0, len(seen))
			for a := range seen {
				merged = append(merged, a)
			}
			sort.Strings(merged)
			result[resource] = merged
		}
	}
	return result
}
