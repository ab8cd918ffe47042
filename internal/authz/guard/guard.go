// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package guard asserts tenant ownership of records crossing the storage
// boundary. Every record returned from storage passes through the guard, not
// only writes: a storage bug or query mistake must not leak cross-tenant
// rows to the response layer.
package guard

import (
	"context"
	"log/slog"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/audit"
)

// TenantScoped is implemented by every persisted entity subject to
// tenant-scope guarding.
type TenantScoped interface {
	TenantOrgID() string
}

// UserScoped is implemented by records owned by a single principal
// (e.g. a member's own leave request).
type UserScoped interface {
	OwnerUserID() string
}

// Classified is implemented by records carrying their own data
// classification. The guard denies records above the context's clearance.
type Classified interface {
	RecordClassification() authz.Classification
}

// Resident is implemented by records carrying their own residency zone.
// The guard requires exact zone equality with the context.
type Resident interface {
	RecordResidency() authz.Residency
}

// Recorder receives the guard's audit entries. *audit.Logger satisfies it.
type Recorder interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Guard performs tenant-scope assertions. Guard failures are fatal for the
// current request (no retry) and always audited and logged.
//
// All checks are synchronous and complete before any record is handed back;
// there is no deferred-check path by which guarded data can reach a caller.
type Guard struct {
	audit Recorder
}

// New creates a Guard writing denials through the given recorder.
func New(recorder Recorder) *Guard {
	return &Guard{audit: recorder}
}

// AssertOrgAccess is the pre-flight check run before a query is issued:
// it verifies the context is acting within orgID, failing fast so the
// storage call is never made on a cross-tenant request.
func (g *Guard) AssertOrgAccess(ctx context.Context, ac authz.Context, orgID string) error {
	if ac.OrgID == "" || ac.UserID == "" {
		return g.deny(ctx, ac, "preflight", "", "", "authorization context incomplete", nil)
	}
	if ac.OrgID != orgID {
		return g.deny(ctx, ac, "preflight", "", "", "cross-tenant access attempt", map[string]any{
			"attemptedOrgId": orgID,
		})
	}
	return nil
}

// AssertRecord verifies that a record fetched from storage belongs to the
// context's tenant, sits within its classification clearance, and matches
// its residency zone. On success the record may be returned to the caller;
// on failure the request must abort.
func (g *Guard) AssertRecord(ctx context.Context, record TenantScoped, ac authz.Context, resourceType, operation string) error {
	if record == nil {
		// A missing record renders identically to a denial so callers
		// cannot probe for existence across tenants.
		return g.deny(ctx, ac, operation, resourceType, "", "record absent", nil)
	}

	recordOrg := record.TenantOrgID()
	if recordOrg != ac.OrgID {
		return g.deny(ctx, ac, operation, resourceType, "", "cross-tenant access attempt", map[string]any{
			"attemptedOrgId":  recordOrg,
			"authorizedOrgId": ac.OrgID,
		})
	}

	if classified, ok := record.(Classified); ok {
		if !ac.DataClassification.Dominates(classified.RecordClassification()) {
			return g.deny(ctx, ac, operation, resourceType, "", "data classification violation", map[string]any{
				"contextClassification": ac.DataClassification.String(),
				"recordClassification":  classified.RecordClassification().String(),
			})
		}
	}

	if resident, ok := record.(Resident); ok {
		if zone := resident.RecordResidency(); zone != "" && zone != ac.DataResidency {
			return g.deny(ctx, ac, operation, resourceType, "", "data residency violation", map[string]any{
				"contextResidency": ac.DataResidency.String(),
				"recordResidency":  zone.String(),
			})
		}
	}

	return nil
}

// AssertOwnedRecord runs AssertRecord and additionally requires the record
// to be owned by the acting principal. System contexts bypass the ownership
// check (background jobs operate across members), never the tenant check.
func (g *Guard) AssertOwnedRecord(ctx context.Context, record interface {
	TenantScoped
	UserScoped
}, ac authz.Context, resourceType, operation string) error {
	if err := g.AssertRecord(ctx, record, ac, resourceType, operation); err != nil {
		return err
	}
	if ac.IsSystem() {
		return nil
	}
	if owner := record.OwnerUserID(); owner != ac.UserID {
		return g.deny(ctx, ac, operation, resourceType, "", "record owned by another principal", map[string]any{
			"ownerUserId": owner,
		})
	}
	return nil
}

// AssertRecords verifies a whole result set, short-circuiting on the first
// violation. The records slice is only safe to return when the error is nil.
func AssertRecords[T TenantScoped](ctx context.Context, g *Guard, records []T, ac authz.Context, resourceType, operation string) ([]T, error) {
	for _, record := range records {
		if err := g.AssertRecord(ctx, record, ac, resourceType, operation); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// deny writes the audit entry, logs, and returns the uniform denial error.
func (g *Guard) deny(ctx context.Context, ac authz.Context, operation, resourceType, resourceID, reason string, metadata map[string]any) error {
	entry := audit.Entry{
		OrgID:          ac.OrgID,
		ActorID:        ac.UserID,
		Action:         operation,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Outcome:        audit.OutcomeDeny,
		Classification: ac.DataClassification,
		Residency:      ac.DataResidency,
		AuditSource:    ac.AuditSource,
		CorrelationID:  ac.CorrelationID,
		Metadata:       metadata,
	}
	if g.audit != nil {
		if err := g.audit.Log(ctx, entry); err != nil {
			slog.WarnContext(ctx, "guard audit log failed", "error", err)
		}
	}

	slog.WarnContext(ctx, "tenant scope guard denial",
		"orgId", ac.OrgID,
		"userId", ac.UserID,
		"operation", operation,
		"resourceType", resourceType,
		"reason", reason)

	// The reason stays in logs and audit metadata; the error carries the
	// uniform message only.
	return authz.Denied(
		"orgId", ac.OrgID,
		"operation", operation,
		"resourceType", resourceType,
	)
}
