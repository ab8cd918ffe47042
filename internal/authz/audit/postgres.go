// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
)

// poolIface is the subset of *pgxpool.Pool the sink uses. pgxmock's pool
// satisfies it, keeping unit tests off a live database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSink persists audit entries in the audit_log table.
type PostgresSink struct {
	pool poolIface
}

// NewPostgresSink creates a PostgresSink backed by the given pool.
func NewPostgresSink(pool poolIface) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Append implements Sink.
func (s *PostgresSink) Append(ctx context.Context, entry Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return oops.With("entryId", entry.ID).Wrap(err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (
			id, org_id, actor_id, action, resource_type, resource_id,
			outcome, matched_policy_id, classification, residency,
			audit_source, correlation_id, metadata, seq, logged_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, entry.ID, entry.OrgID, entry.ActorID, entry.Action, entry.ResourceType,
		nullable(entry.ResourceID), string(entry.Outcome), nullable(entry.MatchedPolicyID),
		entry.Classification.String(), string(entry.Residency),
		nullable(entry.AuditSource), entry.CorrelationID, metadata, entry.Seq, entry.Timestamp)
	if err != nil {
		return oops.
			With("entryId", entry.ID).
			With("orgId", entry.OrgID).
			With("correlationId", entry.CorrelationID).
			Wrap(err)
	}
	return nil
}

// Name implements Sink.
func (s *PostgresSink) Name() string { return "postgres" }

// Close implements Sink. The pool is owned by the caller.
func (s *PostgresSink) Close() error { return nil }

// ByCorrelation returns the entries for one correlation id in persistence
// order (seq ascending).
func (s *PostgresSink) ByCorrelation(ctx context.Context, orgID, correlationID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, actor_id, action, resource_type,
		       COALESCE(resource_id, ''), outcome, COALESCE(matched_policy_id, ''),
		       classification, residency, COALESCE(audit_source, ''),
		       correlation_id, metadata, seq, logged_at
		FROM audit_log
		WHERE org_id = $1 AND correlation_id = $2
		ORDER BY seq ASC
	`, orgID, correlationID)
	if err != nil {
		return nil, oops.With("correlationId", correlationID).Wrap(err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome, classification, residency string
		var metadata []byte
		if err := rows.Scan(
			&e.ID, &e.OrgID, &e.ActorID, &e.Action, &e.ResourceType,
			&e.ResourceID, &outcome, &e.MatchedPolicyID,
			&classification, &residency, &e.AuditSource,
			&e.CorrelationID, &metadata, &e.Seq, &e.Timestamp,
		); err != nil {
			return nil, oops.Wrap(err)
		}
		e.Outcome = Outcome(outcome)
		if e.Classification, err = authz.ParseClassification(classification); err != nil {
			return nil, oops.With("entryId", e.ID).Wrap(err)
		}
		e.Residency = authz.Residency(residency)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, oops.With("entryId", e.ID).Wrap(err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Wrap(err)
	}
	return entries, nil
}

// PurgeOutcomeBefore deletes entries with the given outcome logged before
// the cutoff. Used only by the retention worker, outside request context.
func (s *PostgresSink) PurgeOutcomeBefore(ctx context.Context, outcome Outcome, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_log WHERE outcome = $1 AND logged_at < $2`,
		string(outcome), cutoff)
	if err != nil {
		return 0, oops.With("outcome", string(outcome)).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
