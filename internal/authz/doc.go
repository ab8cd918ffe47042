// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package authz provides the core types for multi-tenant authorization.
//
// Every request is evaluated under an immutable Context describing who is
// asking, as what tenant, and under what data sensitivity. Coarse access is
// resolved from role statements (RBAC); fine-grained access is evaluated by
// the policy engine in the policy subpackage (ABAC). All capability names
// used by roles and policies must exist in a CapabilityRegistry loaded once
// at process start.
package authz
