// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

//go:build integration

package integration

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/audit"
)

var _ = Describe("Audit trail", func() {
	var (
		ctx  context.Context
		sink *audit.PostgresSink
	)

	entry := func(correlationID, action string, outcome audit.Outcome) audit.Entry {
		return audit.Entry{
			OrgID:          "org1",
			ActorID:        "user1",
			Action:         action,
			ResourceType:   "leaveRequest",
			Outcome:        outcome,
			Classification: authz.ClassificationOfficial,
			Residency:      authz.ResidencyUKOnly,
			AuditSource:    "integration",
			CorrelationID:  correlationID,
			Metadata:       map[string]any{"decisionOutcome": "rbac_allow"},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		sink = audit.NewPostgresSink(env.pool)
	})

	It("persists entries and reads them back in sequence order", func() {
		logger := audit.NewLogger([]audit.Sink{sink}, audit.WithFailHard())
		defer func() { Expect(logger.Close()).To(Succeed()) }()

		for i := 0; i < 5; i++ {
			Expect(logger.Log(ctx, entry("corr-seq", fmt.Sprintf("action-%d", i), audit.OutcomeAllow))).To(Succeed())
		}

		entries, err := sink.ByCorrelation(ctx, "org1", "corr-seq")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(5))
		for i, e := range entries {
			Expect(e.Action).To(Equal(fmt.Sprintf("action-%d", i)))
			Expect(e.Metadata).To(HaveKeyWithValue("decisionOutcome", "rbac_allow"))
		}
	})

	It("scopes correlation reads by tenant", func() {
		logger := audit.NewLogger([]audit.Sink{sink}, audit.WithFailHard())
		defer func() { Expect(logger.Close()).To(Succeed()) }()

		e := entry("corr-shared", "read", audit.OutcomeAllow)
		Expect(logger.Log(ctx, e)).To(Succeed())
		other := e
		other.OrgID = "org2"
		Expect(logger.Log(ctx, other)).To(Succeed())

		entries, err := sink.ByCorrelation(ctx, "org1", "corr-shared")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].OrgID).To(Equal("org1"))
	})

	It("purges expired entries by outcome only", func() {
		logger := audit.NewLogger([]audit.Sink{sink}, audit.WithFailHard())
		defer func() { Expect(logger.Close()).To(Succeed()) }()

		old := entry("corr-old", "read", audit.OutcomeAllow)
		old.Timestamp = time.Now().UTC().Add(-200 * 24 * time.Hour)
		Expect(logger.Log(ctx, old)).To(Succeed())

		oldDeny := entry("corr-old", "delete", audit.OutcomeDeny)
		oldDeny.Timestamp = old.Timestamp
		Expect(logger.Log(ctx, oldDeny)).To(Succeed())

		worker := audit.NewRetentionWorker(audit.DefaultRetentionConfig(), sink)
		Expect(worker.RunOnce(ctx)).To(Succeed())

		entries, err := sink.ByCorrelation(ctx, "org1", "corr-old")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1), "allow expired at 90 days, deny retained for a year")
		Expect(entries[0].Outcome).To(Equal(audit.OutcomeDeny))
	})
})
