// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/authztest"
	"github.com/orgcentral/authcore/internal/authz/policy"
	policystore "github.com/orgcentral/authcore/internal/authz/policy/store"
)

func denyExportPolicy(id string) policy.Policy {
	return policy.Policy{
		ID:        id,
		Effect:    policy.EffectDeny,
		Actions:   []string{"export"},
		Resources: []string{"complianceItem"},
		ResourceConditions: []policy.Condition{
			{Path: "classification", Op: policy.OpIn, Value: []any{"SECRET", "TOP_SECRET"}},
		},
	}
}

var _ = Describe("Policy store", func() {
	var (
		ctx context.Context
		s   *policystore.PostgresStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		s = policystore.NewPostgresStore(env.pool)
	})

	It("yields an empty set at version zero for an unknown tenant", func() {
		set, err := s.GetPolicySet(ctx, "org-unknown")
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Version).To(BeZero())
		Expect(set.Policies).To(BeEmpty())
	})

	It("round-trips a policy list through JSONB", func() {
		written, err := s.ReplacePolicySet(ctx, "org1", []policy.Policy{denyExportPolicy("p1")}, 0, "admin1")
		Expect(err).NotTo(HaveOccurred())
		Expect(written.Version).To(Equal(int64(1)))

		read, err := s.GetPolicySet(ctx, "org1")
		Expect(err).NotTo(HaveOccurred())
		Expect(read.Version).To(Equal(int64(1)))
		Expect(read.Policies).To(HaveLen(1))
		Expect(read.Policies[0]).To(Equal(denyExportPolicy("p1")))
	})

	It("rejects a stale expected version without applying anything", func() {
		_, err := s.ReplacePolicySet(ctx, "org1", []policy.Policy{denyExportPolicy("p1")}, 0, "admin1")
		Expect(err).NotTo(HaveOccurred())

		_, err = s.ReplacePolicySet(ctx, "org1", []policy.Policy{denyExportPolicy("p2")}, 0, "admin2")
		Expect(authz.IsVersionConflict(err)).To(BeTrue())

		read, err := s.GetPolicySet(ctx, "org1")
		Expect(err).NotTo(HaveOccurred())
		Expect(read.Version).To(Equal(int64(1)))
		Expect(read.Policies[0].ID).To(Equal("p1"))
	})

	It("serializes concurrent writers so exactly one wins each version", func() {
		const writers = 8
		results := make(chan error, writers)
		for i := 0; i < writers; i++ {
			go func(i int) {
				defer GinkgoRecover()
				_, err := s.ReplacePolicySet(ctx, "org1",
					[]policy.Policy{denyExportPolicy("p-racer")}, 0, "admin")
				results <- err
			}(i)
		}

		succeeded := 0
		for i := 0; i < writers; i++ {
			if err := <-results; err == nil {
				succeeded++
			} else {
				Expect(authz.IsVersionConflict(err)).To(BeTrue())
			}
		}
		Expect(succeeded).To(Equal(1))

		read, err := s.GetPolicySet(ctx, "org1")
		Expect(err).NotTo(HaveOccurred())
		Expect(read.Version).To(Equal(int64(1)))
	})

	It("invalidates remote caches through LISTEN/NOTIFY", func() {
		cache := policy.NewCache(s)

		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		listener := policy.NewPgListener(env.connStr)
		Expect(cache.StartWithListener(listenCtx, listener)).To(Succeed())

		// Warm the cache with the empty set.
		snap, err := cache.Snapshot(ctx, "org1")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Len()).To(BeZero())

		// A write from "another process" (store directly, not Admin) must
		// reach this cache via the notification channel.
		_, err = s.ReplacePolicySet(ctx, "org1", []policy.Policy{denyExportPolicy("p1")}, 0, "admin1")
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int {
			snap, err := cache.Snapshot(ctx, "org1")
			if err != nil {
				return -1
			}
			return snap.Len()
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(1))

		cancel()
		cache.Wait()
	})
})

var _ = Describe("Bootstrap", func() {
	var (
		ctx context.Context
		s   *policystore.PostgresStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		s = policystore.NewPostgresStore(env.pool)
	})

	It("seeds a fresh tenant exactly once", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		Expect(policy.Bootstrap(ctx, s, authztest.Registry(), "org1", logger)).To(Succeed())
		Expect(policy.Bootstrap(ctx, s, authztest.Registry(), "org1", logger)).To(Succeed())

		set, err := s.GetPolicySet(ctx, "org1")
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Version).To(Equal(int64(1)))
		Expect(set.Policies).To(HaveLen(len(policy.DefaultBootstrapPolicies())))
	})
})

var _ = Describe("Evaluator against stored policies", func() {
	var (
		ctx context.Context
		s   *policystore.PostgresStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		s = policystore.NewPostgresStore(env.pool)
	})

	It("applies deny-overrides across the full store/cache/evaluator path", func() {
		_, err := s.ReplacePolicySet(ctx, "org1", []policy.Policy{denyExportPolicy("p-deny")}, 0, "admin1")
		Expect(err).NotTo(HaveOccurred())

		evaluator := policy.NewEvaluator(authztest.Registry(), policy.NewCache(s), nil)
		ac := authztest.NewContext(authztest.WithRole(authz.RoleCompliance))

		req, err := policy.NewRequest("export", "complianceItem",
			map[string]any{"classification": "SECRET"})
		Expect(err).NotTo(HaveOccurred())
		decision, err := evaluator.Evaluate(ctx, ac, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(decision.IsAllowed()).To(BeFalse())
		Expect(decision.MatchedPolicyID).To(Equal("p-deny"))

		req, err = policy.NewRequest("export", "complianceItem",
			map[string]any{"classification": "OFFICIAL"})
		Expect(err).NotTo(HaveOccurred())
		decision, err = evaluator.Evaluate(ctx, ac, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(decision.IsAllowed()).To(BeTrue())
	})
})
