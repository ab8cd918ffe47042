// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package store persists tenant ABAC policy sets in PostgreSQL. Each tenant
// owns one row holding its full policy list as JSONB plus a monotonically
// increasing version used for optimistic concurrency.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/policy"
)

// poolIface is the subset of *pgxpool.Pool the store uses. pgxmock's pool
// satisfies it, keeping unit tests off a live database.
type poolIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements policy.Store using PostgreSQL.
type PostgresStore struct {
	pool poolIface
}

// Compile-time check that PostgresStore implements policy.Store.
var _ policy.Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetPolicySet retrieves a tenant's policy set. A tenant with no row yields
// an empty set at version 0.
func (s *PostgresStore) GetPolicySet(ctx context.Context, orgID string) (policy.PolicySet, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT policies, version FROM abac_policies WHERE org_id = $1`, orgID,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.PolicySet{OrgID: orgID, Version: 0}, nil
	}
	if err != nil {
		return policy.PolicySet{}, oops.With("operation", "get policy set").With("orgId", orgID).Wrap(err)
	}

	var policies []policy.Policy
	if err := json.Unmarshal(raw, &policies); err != nil {
		return policy.PolicySet{}, oops.With("orgId", orgID).Wrapf(err, "decode stored policies")
	}
	return policy.PolicySet{OrgID: orgID, Policies: policies, Version: version}, nil
}

// ReplacePolicySet atomically swaps a tenant's policy list. The stored
// version must equal expectedVersion or the write fails with
// VERSION_CONFLICT and nothing is applied. pg_notify on the invalidation
// channel is sent in the same transaction, so remote caches never learn of
// a write that did not commit.
func (s *PostgresStore) ReplacePolicySet(ctx context.Context, orgID string, policies []policy.Policy, expectedVersion int64, updatedBy string) (policy.PolicySet, error) {
	wrap := oops.With("operation", "replace policy set").With("orgId", orgID)

	raw, err := json.Marshal(policies)
	if err != nil {
		return policy.PolicySet{}, wrap.Wrapf(err, "encode policies")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return policy.PolicySet{}, wrap.Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var currentVersion int64
	err = tx.QueryRow(ctx,
		`SELECT version FROM abac_policies WHERE org_id = $1 FOR UPDATE`, orgID,
	).Scan(&currentVersion)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if expectedVersion != 0 {
			return policy.PolicySet{}, versionConflict(orgID, 0, expectedVersion)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO abac_policies (org_id, policies, version, updated_by, updated_at)
			VALUES ($1, $2, 1, $3, now())
		`, orgID, raw, updatedBy)
		if isUniqueViolation(err) {
			// A concurrent first write for this tenant won the race.
			return policy.PolicySet{}, versionConflict(orgID, 1, expectedVersion)
		}
		if err != nil {
			return policy.PolicySet{}, wrap.Wrap(err)
		}
		currentVersion = 0
	case err != nil:
		return policy.PolicySet{}, wrap.Wrap(err)
	default:
		if currentVersion != expectedVersion {
			return policy.PolicySet{}, versionConflict(orgID, currentVersion, expectedVersion)
		}
		_, err = tx.Exec(ctx, `
			UPDATE abac_policies
			SET policies = $2, version = version + 1, updated_by = $3, updated_at = now()
			WHERE org_id = $1
		`, orgID, raw, updatedBy)
		if err != nil {
			return policy.PolicySet{}, wrap.Wrap(err)
		}
	}

	if _, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, policy.NotifyChannel, orgID); err != nil {
		return policy.PolicySet{}, wrap.With("step", "notify").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return policy.PolicySet{}, wrap.With("step", "commit").Wrap(err)
	}

	return policy.PolicySet{
		OrgID:    orgID,
		Policies: policies,
		Version:  currentVersion + 1,
	}, nil
}

func versionConflict(orgID string, current, expected int64) error {
	return oops.
		Code(authz.CodeVersionConflict).
		With("orgId", orgID).
		With("currentVersion", current).
		With("expectedVersion", expected).
		Errorf("policy set version is %d, expected %d", current, expected)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
