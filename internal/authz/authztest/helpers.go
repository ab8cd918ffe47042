// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package authztest provides builders for authorization contexts used
// across the core's test suites.
package authztest

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/orgcentral/authcore/internal/authz"
)

// ContextOption mutates a context under construction.
type ContextOption func(*authz.Context)

// NewContext builds a fully populated member context for org1/user1 with a
// fresh correlation ID. Options override individual fields.
func NewContext(opts ...ContextOption) authz.Context {
	registry, err := authz.NewCapabilityRegistry(authz.DefaultRegistryStatements())
	if err != nil {
		panic(err)
	}
	resolver, err := authz.NewPermissionResolver(registry)
	if err != nil {
		panic(err)
	}
	perms := resolver.Resolve(authz.RoleMember, nil)

	ac := authz.Context{
		OrgID:              "org1",
		UserID:             "user1",
		RoleKey:            authz.RoleMember,
		Permissions:        perms,
		DataClassification: authz.ClassificationOfficial,
		DataResidency:      authz.ResidencyUKOnly,
		SubjectAttributes:  map[string]any{},
		AuditSource:        "test",
		CorrelationID:      ulid.Make().String(),
		Session: authz.SessionMetadata{
			SessionID:        "sess1",
			IPAddress:        "192.0.2.10",
			UserAgent:        "authztest",
			AuthenticatedAt:  time.Now().Add(-time.Minute),
			SessionExpiresAt: time.Now().Add(time.Hour),
		},
	}
	for _, opt := range opts {
		opt(&ac)
	}
	return ac
}

// WithOrg sets the tenant.
func WithOrg(orgID string) ContextOption {
	return func(ac *authz.Context) { ac.OrgID = orgID }
}

// WithUser sets the acting principal.
func WithUser(userID string) ContextOption {
	return func(ac *authz.Context) { ac.UserID = userID }
}

// WithRole resolves and installs the named builtin role's permissions.
func WithRole(role authz.RoleKey) ContextOption {
	return func(ac *authz.Context) {
		registry, err := authz.NewCapabilityRegistry(authz.DefaultRegistryStatements())
		if err != nil {
			panic(err)
		}
		resolver, err := authz.NewPermissionResolver(registry)
		if err != nil {
			panic(err)
		}
		perms := resolver.Resolve(role, nil)
		ac.RoleKey = role
		ac.Permissions = perms
	}
}

// WithPermissions installs an explicit permission map.
func WithPermissions(perms authz.PermissionMap) ContextOption {
	return func(ac *authz.Context) { ac.Permissions = perms }
}

// WithClassification sets the clearance.
func WithClassification(c authz.Classification) ContextOption {
	return func(ac *authz.Context) { ac.DataClassification = c }
}

// WithResidency sets the residency zone.
func WithResidency(r authz.Residency) ContextOption {
	return func(ac *authz.Context) { ac.DataResidency = r }
}

// WithSubjectAttributes merges attributes into the subject bag.
func WithSubjectAttributes(attrs map[string]any) ContextOption {
	return func(ac *authz.Context) {
		if ac.SubjectAttributes == nil {
			ac.SubjectAttributes = map[string]any{}
		}
		for k, v := range attrs {
			ac.SubjectAttributes[k] = v
		}
	}
}

// WithCorrelation sets the correlation ID.
func WithCorrelation(id string) ContextOption {
	return func(ac *authz.Context) { ac.CorrelationID = id }
}

// SystemContext builds a background-worker context for the given tenant.
func SystemContext(orgID string) authz.Context {
	return NewContext(
		WithOrg(orgID),
		WithUser(authz.SystemUserID),
		func(ac *authz.Context) {
			ac.RoleKey = authz.RoleNone
			ac.Permissions = authz.PermissionMap{}
			ac.AuditSource = "system"
		},
	)
}

// Registry returns the default capability registry, panicking on error.
func Registry() *authz.CapabilityRegistry {
	registry, err := authz.NewCapabilityRegistry(authz.DefaultRegistryStatements())
	if err != nil {
		panic(err)
	}
	return registry
}
