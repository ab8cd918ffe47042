// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Listener abstracts the PostgreSQL LISTEN/NOTIFY mechanism for testability.
// Implementations return a channel emitting notification payloads (the org
// ID whose policy set changed). The channel closes when the context is
// cancelled.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Snapshot is an immutable, read-only view of one tenant's compiled
// policies. It is safe for concurrent reads without locking.
type Snapshot struct {
	policies []compiledPolicy
	Version  int64
}

// Len returns the number of policies in the snapshot.
func (s Snapshot) Len() int {
	return len(s.policies)
}

// Cache holds per-tenant policy snapshots, loading on miss and invalidating
// on admin writes and LISTEN/NOTIFY events. An empty snapshot is a valid
// state (the tenant simply falls back to RBAC), so a miss loads rather than
// fails closed.
type Cache struct {
	store Store

	mu        sync.RWMutex
	snapshots map[string]Snapshot

	// wg tracks background goroutines for graceful shutdown.
	wg sync.WaitGroup
}

// NewCache creates an empty cache over the given store.
func NewCache(s Store) *Cache {
	return &Cache{
		store:     s,
		snapshots: make(map[string]Snapshot),
	}
}

// Snapshot returns the tenant's current snapshot, loading from the store on
// a miss. Concurrent misses for the same tenant may load twice; the last
// write wins and both loads observe a committed policy set.
func (c *Cache) Snapshot(ctx context.Context, orgID string) (Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[orgID]
	c.mu.RUnlock()
	if ok {
		cacheLoads.WithLabelValues("hit").Inc()
		return snap, nil
	}
	return c.load(ctx, orgID)
}

// load fetches and compiles the tenant's policy set without holding the
// lock, then swaps it in. Policies that fail to compile are skipped with a
// configuration warning so one malformed row cannot disable a tenant.
func (c *Cache) load(ctx context.Context, orgID string) (Snapshot, error) {
	set, err := c.store.GetPolicySet(ctx, orgID)
	if err != nil {
		cacheLoads.WithLabelValues("error").Inc()
		return Snapshot{}, oops.With("orgId", orgID).Wrapf(err, "load policy set")
	}

	compiled := make([]compiledPolicy, 0, len(set.Policies))
	for _, p := range set.Policies {
		cp, compileErr := compilePolicy(p)
		if compileErr != nil {
			slog.WarnContext(ctx, "stored policy does not compile, skipping",
				"orgId", orgID,
				"policyId", p.ID,
				"error", compileErr)
			unknownSelectorSkips.WithLabelValues(orgID).Inc()
			continue
		}
		compiled = append(compiled, cp)
	}

	snap := Snapshot{policies: compiled, Version: set.Version}
	c.mu.Lock()
	c.snapshots[orgID] = snap
	c.mu.Unlock()

	cacheLoads.WithLabelValues("miss").Inc()
	return snap, nil
}

// Invalidate drops the tenant's snapshot. The next evaluation reloads from
// the store. Called before a policy write transaction is considered
// complete, so no evaluation window sees stale policies.
func (c *Cache) Invalidate(orgID string) {
	c.mu.Lock()
	delete(c.snapshots, orgID)
	c.mu.Unlock()
	cacheInvalidations.Inc()
}

// InvalidateAll drops every tenant snapshot. Used when a notification
// arrives without a tenant payload.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.snapshots = make(map[string]Snapshot)
	c.mu.Unlock()
	cacheInvalidations.Inc()
}

// StartWithListener spawns the background invalidation goroutine consuming
// the listener's notifications. Notification payloads name the changed
// tenant; an empty payload invalidates everything.
func (c *Cache) StartWithListener(ctx context.Context, listener Listener) error {
	ch, err := listener.Listen(ctx)
	if err != nil {
		return oops.Wrapf(err, "policy cache start listener")
	}

	c.wg.Add(1)
	go c.listenLoop(ctx, ch)
	return nil
}

// Wait blocks until all background goroutines have exited.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) listenLoop(ctx context.Context, ch <-chan string) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case orgID, ok := <-ch:
			if !ok {
				return
			}
			if orgID == "" {
				c.InvalidateAll()
				continue
			}
			c.Invalidate(orgID)
		}
	}
}
