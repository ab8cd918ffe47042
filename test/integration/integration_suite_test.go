// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

//go:build integration

// Package integration provides end-to-end tests for the authorization core
// against a real PostgreSQL instance.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/orgcentral/authcore/internal/store"
)

// testEnv holds the shared database resources for the suite.
type testEnv struct {
	container testcontainers.Container
	connStr   string
	pool      *pgxpool.Pool
}

var env *testEnv

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Authorization Core Integration Suite")
}

var _ = BeforeSuite(func() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("authcore_test"),
		postgres.WithUsername("authcore"),
		postgres.WithPassword("authcore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err := store.Open(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())

	env = &testEnv{container: container, connStr: connStr, pool: pool}
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	if env.pool != nil {
		env.pool.Close()
	}
	if env.container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = env.container.Terminate(ctx)
	}
})

// cleanupDatabase truncates the suite's tables between specs.
func cleanupDatabase(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, "TRUNCATE abac_policies, audit_log")
	Expect(err).NotTo(HaveOccurred())
}
