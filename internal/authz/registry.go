// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import (
	"os"
	"sort"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// CapabilityRegistry is the closed enumeration of resource names and the
// actions each supports. Role maps and ABAC selectors are validated against
// it at configuration-write time so typos fail during deployment, not at
// evaluation time. The registry is loaded once at process start and is
// immutable for the process lifetime.
type CapabilityRegistry struct {
	resources map[string]map[string]struct{}
	actions   map[string]struct{}
}

// NewCapabilityRegistry builds a registry from resource→actions statements.
func NewCapabilityRegistry(statements map[string][]string) (*CapabilityRegistry, error) {
	if len(statements) == 0 {
		return nil, oops.Code(CodeConfigInvalid).Errorf("capability registry: no resources declared")
	}

	resources := make(map[string]map[string]struct{}, len(statements))
	actions := make(map[string]struct{})
	for resource, acts := range statements {
		if resource == "" {
			return nil, oops.Code(CodeConfigInvalid).Errorf("capability registry: empty resource name")
		}
		if len(acts) == 0 {
			return nil, oops.Code(CodeConfigInvalid).
				With("resource", resource).
				Errorf("capability registry: resource declares no actions")
		}
		set := make(map[string]struct{}, len(acts))
		for _, a := range acts {
			if a == "" {
				return nil, oops.Code(CodeConfigInvalid).
					With("resource", resource).
					Errorf("capability registry: empty action name")
			}
			set[a] = struct{}{}
			actions[a] = struct{}{}
		}
		resources[resource] = set
	}

	return &CapabilityRegistry{resources: resources, actions: actions}, nil
}

// LoadCapabilityRegistry reads a YAML file mapping resource names to action
// lists.
func LoadCapabilityRegistry(path string) (*CapabilityRegistry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, oops.Code(CodeConfigInvalid).With("path", path).Wrap(err)
	}
	var statements map[string][]string
	if err := yaml.Unmarshal(data, &statements); err != nil {
		return nil, oops.Code(CodeConfigInvalid).With("path", path).Wrap(err)
	}
	return NewCapabilityRegistry(statements)
}

// HasResource reports whether resource is a known resource name.
func (r *CapabilityRegistry) HasResource(resource string) bool {
	_, ok := r.resources[resource]
	return ok
}

// HasAction reports whether action is declared by any resource.
func (r *CapabilityRegistry) HasAction(action string) bool {
	_, ok := r.actions[action]
	return ok
}

// Allows reports whether the resource declares the action.
func (r *CapabilityRegistry) Allows(resource, action string) bool {
	acts, ok := r.resources[resource]
	if !ok {
		return false
	}
	_, ok = acts[action]
	return ok
}

// Resources returns the sorted resource names.
func (r *CapabilityRegistry) Resources() []string {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Actions returns the sorted action names across all resources.
func (r *CapabilityRegistry) Actions() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidatePermissions checks a resource→actions map against the registry.
// Used for role statements and per-membership overrides at write time.
func (r *CapabilityRegistry) ValidatePermissions(perms PermissionMap) error {
	for resource, acts := range perms {
		if !r.HasResource(resource) {
			return oops.Code(CodeValidationFailed).
				With("resource", resource).
				Errorf("unknown permission resource %q", resource)
		}
		if len(acts) == 0 {
			return oops.Code(CodeValidationFailed).
				With("resource", resource).
				Errorf("permission actions for %q are required", resource)
		}
		for _, action := range acts {
			if !r.Allows(resource, action) {
				return oops.Code(CodeValidationFailed).
					With("resource", resource).
					With("action", action).
					Errorf("action %q is not allowed for permission resource %q", action, resource)
			}
		}
	}
	return nil
}

// DefaultRegistryStatements returns the built-in capability statements the
// bundled roles are written against. Deployments extend this via the
// registry YAML file.
func DefaultRegistryStatements() map[string][]string {
	return map[string][]string{
		"leaveRequest":    {"read", "create", "update", "delete", "approve"},
		"complianceItem":  {"read", "create", "update", "delete", "export"},
		"hr.people":       {"read", "create", "update", "delete"},
		"org.membership":  {"read", "invite", "update", "remove"},
		"org.role":        {"read", "create", "update", "delete"},
		"org.abac.policy": {"read", "update"},
		"auditLog":        {"read", "export"},
	}
}
