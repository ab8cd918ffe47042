// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package policytest provides test helpers for the ABAC policy layer.
package policytest

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/policy"
)

// MemoryStore is an in-memory policy.Store with the same version semantics
// as the PostgreSQL implementation.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]policy.PolicySet

	// Err, when set, is returned by every call. Used to test error paths.
	Err error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]policy.PolicySet)}
}

// GetPolicySet implements policy.Store.
func (s *MemoryStore) GetPolicySet(_ context.Context, orgID string) (policy.PolicySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return policy.PolicySet{}, s.Err
	}
	set, ok := s.sets[orgID]
	if !ok {
		return policy.PolicySet{OrgID: orgID, Version: 0}, nil
	}
	return clone(set), nil
}

// ReplacePolicySet implements policy.Store.
func (s *MemoryStore) ReplacePolicySet(_ context.Context, orgID string, policies []policy.Policy, expectedVersion int64, _ string) (policy.PolicySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return policy.PolicySet{}, s.Err
	}
	current := s.sets[orgID]
	if current.Version != expectedVersion {
		return policy.PolicySet{}, oops.
			Code(authz.CodeVersionConflict).
			With("orgId", orgID).
			Errorf("policy set version is %d, expected %d", current.Version, expectedVersion)
	}
	next := policy.PolicySet{
		OrgID:    orgID,
		Policies: append([]policy.Policy(nil), policies...),
		Version:  current.Version + 1,
	}
	s.sets[orgID] = next
	return clone(next), nil
}

// Seed installs a policy set directly, bypassing the version check.
func (s *MemoryStore) Seed(orgID string, version int64, policies ...policy.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[orgID] = policy.PolicySet{
		OrgID:    orgID,
		Policies: append([]policy.Policy(nil), policies...),
		Version:  version,
	}
}

func clone(set policy.PolicySet) policy.PolicySet {
	out := set
	out.Policies = append([]policy.Policy(nil), set.Policies...)
	return out
}

// ChannelListener is a policy.Listener whose notifications are driven by
// the test through Notify.
type ChannelListener struct {
	ch chan string
}

// NewChannelListener creates a listener with a small buffer.
func NewChannelListener() *ChannelListener {
	return &ChannelListener{ch: make(chan string, 16)}
}

// Listen implements policy.Listener.
func (l *ChannelListener) Listen(ctx context.Context) (<-chan string, error) {
	go func() {
		<-ctx.Done()
		close(l.ch)
	}()
	return l.ch, nil
}

// Notify emits one invalidation payload.
func (l *ChannelListener) Notify(orgID string) {
	l.ch <- orgID
}
