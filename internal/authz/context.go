// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import (
	"time"

	"github.com/samber/oops"
)

// SystemUserID is the reserved acting-principal id for background jobs.
// System contexts bypass RBAC/ABAC evaluation but are still audited.
const SystemUserID = "system"

// SessionMetadata carries session details used only for audit enrichment.
// It never participates in authorization decisions, which is what allows
// ToCacheSafe to drop it wholesale.
type SessionMetadata struct {
	SessionID        string
	IPAddress        string
	UserAgent        string
	AuthenticatedAt  time.Time
	SessionExpiresAt time.Time
}

// Context describes who is asking, as what tenant, and under what data
// sensitivity. It is built once per request by the session-resolution
// collaborator, passed by value through the call chain, and discarded at
// request exit. It is never persisted.
type Context struct {
	// OrgID is the tenant boundary. Every downstream data access must
	// filter by this value.
	OrgID string

	// UserID is the acting principal, or SystemUserID for background jobs.
	UserID string

	// RoleKey is the coarse role the principal holds in this tenant.
	RoleKey RoleKey

	// Permissions is the resolved resource→actions map, cached on the
	// context for the request's lifetime.
	Permissions PermissionMap

	DataClassification Classification
	DataResidency      Residency

	// SubjectAttributes are membership-level attributes consulted by ABAC
	// subject conditions (e.g. department, contractType).
	SubjectAttributes map[string]any

	// Audit provenance. CorrelationID is stable across a logical request,
	// including nested sub-calls.
	AuditSource   string
	AuditBatchID  string
	CorrelationID string

	// Session is audit-only enrichment; the zero value means "no session"
	// (background jobs, cache-safe projections).
	Session SessionMetadata
}

// IsSystem reports whether the context represents a background job acting
// as the system principal.
func (c Context) IsSystem() bool {
	return c.UserID == SystemUserID
}

// Validate checks the invariants a context must satisfy before it enters
// the call chain. Session metadata is optional and not checked.
func (c Context) Validate() error {
	if c.OrgID == "" {
		return oops.Code(CodeValidationFailed).Errorf("authorization context: orgId must not be empty")
	}
	if c.UserID == "" {
		return oops.Code(CodeValidationFailed).Errorf("authorization context: userId must not be empty")
	}
	if c.CorrelationID == "" {
		return oops.Code(CodeValidationFailed).Errorf("authorization context: correlationId must not be empty")
	}
	return nil
}

// SubjectBag returns the attribute map ABAC subject conditions evaluate
// against. Built-in keys win over membership-supplied attributes so a
// membership record can never spoof its own tenant or role.
func (c Context) SubjectBag() map[string]any {
	bag := make(map[string]any, len(c.SubjectAttributes)+5)
	for k, v := range c.SubjectAttributes {
		bag[k] = v
	}
	bag["orgId"] = c.OrgID
	bag["userId"] = c.UserID
	bag["roleKey"] = string(c.RoleKey)
	bag["dataClassification"] = c.DataClassification.String()
	bag["dataResidency"] = c.DataResidency.String()
	return bag
}
