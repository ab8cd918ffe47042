// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/authztest"
)

func TestToCacheSafe(t *testing.T) {
	ac := authztest.NewContext()
	ac.AuditBatchID = "batch-7"

	safe := authz.ToCacheSafe(ac)

	assert.Equal(t, ac.OrgID, safe.OrgID)
	assert.Equal(t, ac.UserID, safe.UserID)
	assert.Equal(t, ac.RoleKey, safe.RoleKey)
	assert.Equal(t, ac.Permissions, safe.Permissions)
	assert.Equal(t, ac.DataClassification, safe.DataClassification)
	assert.Equal(t, ac.DataResidency, safe.DataResidency)

	assert.Equal(t, authz.SessionMetadata{}, safe.Session)
	assert.Equal(t, authz.CacheCorrelationSentinel, safe.CorrelationID)
	assert.Empty(t, safe.AuditSource)
	assert.Empty(t, safe.AuditBatchID)

	// The original is untouched; contexts pass by value.
	assert.NotEmpty(t, ac.Session.SessionID)
}

func TestToCacheSafeIdempotent(t *testing.T) {
	ac := authztest.NewContext()
	once := authz.ToCacheSafe(ac)
	twice := authz.ToCacheSafe(once)
	assert.Equal(t, once, twice)
}

func TestCacheKeyStability(t *testing.T) {
	// Two requests from the same member differ only in session metadata and
	// correlation id; their cache keys must collide.
	first := authztest.NewContext()
	second := authztest.NewContext()
	second.Session.IPAddress = "198.51.100.7"

	assert.Equal(t,
		authz.CacheKey(first, "org-settings"),
		authz.CacheKey(second, "org-settings"))
}

func TestCacheKeyDiscriminates(t *testing.T) {
	base := authztest.NewContext()
	baseKey := authz.CacheKey(base, "org-settings")

	tests := []struct {
		name string
		ctx  authz.Context
	}{
		{name: "different tenant", ctx: authztest.NewContext(authztest.WithOrg("org2"))},
		{name: "different user", ctx: authztest.NewContext(authztest.WithUser("user2"))},
		{name: "different role", ctx: authztest.NewContext(authztest.WithRole(authz.RoleOrgAdmin))},
		{name: "different clearance", ctx: authztest.NewContext(authztest.WithClassification(authz.ClassificationSecret))},
		{name: "different residency", ctx: authztest.NewContext(authztest.WithResidency(authz.ResidencyUKAndEEA))},
		{
			name: "different permissions",
			ctx: authztest.NewContext(authztest.WithPermissions(
				authz.PermissionMap{"leaveRequest": {"read"}})),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, baseKey, authz.CacheKey(tt.ctx, "org-settings"))
		})
	}

	t.Run("different scope", func(t *testing.T) {
		assert.NotEqual(t, baseKey, authz.CacheKey(base, "abac-policies"))
	})
}

func TestCacheKeyLeaksNothing(t *testing.T) {
	ac := authztest.NewContext(authztest.WithCorrelation("corr-very-secret"))
	key := authz.CacheKey(ac, "org-settings")

	assert.True(t, strings.HasPrefix(key, "org-settings:"))
	assert.NotContains(t, key, "corr-very-secret")
	assert.NotContains(t, key, ac.Session.IPAddress)
}

func TestCacheKeyPermissionOrderInsensitive(t *testing.T) {
	a := authztest.NewContext(authztest.WithPermissions(
		authz.PermissionMap{"leaveRequest": {"read", "create"}}))
	b := authztest.NewContext(authztest.WithPermissions(
		authz.PermissionMap{"leaveRequest": {"create", "read"}}))

	assert.Equal(t, authz.CacheKey(a, "s"), authz.CacheKey(b, "s"))
}
