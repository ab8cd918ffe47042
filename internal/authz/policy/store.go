// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import "context"

// Store persists tenant policy sets. Implementations must serialize
// concurrent writers to the same tenant via the expected-version check and
// must publish an invalidation notification inside the write transaction.
type Store interface {
	// GetPolicySet returns the tenant's policy set. A tenant with no
	// stored policies yields an empty set at version 0, not an error.
	GetPolicySet(ctx context.Context, orgID string) (PolicySet, error)

	// ReplacePolicySet atomically swaps the tenant's policy list. The
	// write fails with a VERSION_CONFLICT error when the stored version
	// no longer equals expectedVersion.
	ReplacePolicySet(ctx context.Context, orgID string, policies []Policy, expectedVersion int64, updatedBy string) (PolicySet, error)
}
