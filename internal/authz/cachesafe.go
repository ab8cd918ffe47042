// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// CacheCorrelationSentinel replaces the per-request correlation id in
// cache-safe projections so keys derived from a context are stable across
// requests from the same tenant/role.
const CacheCorrelationSentinel = "cache"

// ToCacheSafe strips session metadata and per-request audit provenance from
// a context before it is used for cache-key derivation. Tenant, principal,
// role, permissions, classification, and residency are preserved; everything
// that varies per request or could leak through cache tags is dropped.
//
// The projection is idempotent: ToCacheSafe(ToCacheSafe(c)) == ToCacheSafe(c).
// It is purely a key-derivation helper; routing sensitive-classification
// reads around caching is the caller's responsibility.
func ToCacheSafe(c Context) Context {
	c.Session = SessionMetadata{}
	c.CorrelationID = CacheCorrelationSentinel
	c.AuditSource = ""
	c.AuditBatchID = ""
	return c
}

// CacheKey derives a stable cache key for a context and a cache scope
// (e.g. "abac-policies", "org-settings"). The context is projected through
// ToCacheSafe first, so session metadata and correlation ids can never
// reach a cache tag.
func CacheKey(c Context, scope string) string {
	safe := ToCacheSafe(c)

	var b strings.Builder
	b.WriteString(scope)
	b.WriteByte('\n')
	b.WriteString(safe.OrgID)
	b.WriteByte('\n')
	b.WriteString(safe.UserID)
	b.WriteByte('\n')
	b.WriteString(string(safe.RoleKey))
	b.WriteByte('\n')
	b.WriteString(safe.DataClassification.String())
	b.WriteByte('\n')
	b.WriteString(safe.DataResidency.String())
	b.WriteByte('\n')

	resources := make([]string, 0, len(safe.Permissions))
	for resource := range safe.Permissions {
		resources = append(resources, resource)
	}
	sort.Strings(resources)
	for _, resource := range resources {
		actions := append([]string(nil), safe.Permissions[resource]...)
		sort.Strings(actions)
		fmt.Fprintf(&b, "%s=%s\n", resource, strings.Join(actions, ","))
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return scope + ":" + hex.EncodeToString(sum[:16])
}
