// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RetentionConfig defines how long audit entries are kept by outcome.
// Denials are retained much longer than allows; they are the record of
// attempted abuse.
type RetentionConfig struct {
	RetainDenials time.Duration
	RetainAllows  time.Duration
	PurgeInterval time.Duration
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetainDenials: 365 * 24 * time.Hour,
		RetainAllows:  90 * 24 * time.Hour,
		PurgeInterval: 24 * time.Hour,
	}
}

// Purger removes expired audit entries. PostgresSink implements it.
type Purger interface {
	PurgeOutcomeBefore(ctx context.Context, outcome Outcome, cutoff time.Time) (int64, error)
}

// RetentionWorker runs periodic retention maintenance on the audit trail.
// It is the only component permitted to delete audit entries, and it always
// operates outside request context.
type RetentionWorker struct {
	cfg    RetentionConfig
	purger Purger
	logger *slog.Logger
	clock  func() time.Time

	wg sync.WaitGroup
}

// NewRetentionWorker creates a retention worker over the given purger.
func NewRetentionWorker(cfg RetentionConfig, purger Purger) *RetentionWorker {
	return &RetentionWorker{
		cfg:    cfg,
		purger: purger,
		logger: slog.Default(),
		clock:  time.Now,
	}
}

// RunOnce executes a single retention cycle. Both purges are attempted even
// if the first fails; errors are combined.
func (w *RetentionWorker) RunOnce(ctx context.Context) error {
	now := w.clock()
	var errs []error

	purged, err := w.purger.PurgeOutcomeBefore(ctx, OutcomeAllow, now.Add(-w.cfg.RetainAllows))
	if err != nil {
		w.logger.Error("purge expired allow entries failed", "error", err)
		errs = append(errs, err)
	} else if purged > 0 {
		w.logger.Info("purged expired allow audit entries", "count", purged)
	}

	purged, err = w.purger.PurgeOutcomeBefore(ctx, OutcomeDeny, now.Add(-w.cfg.RetainDenials))
	if err != nil {
		w.logger.Error("purge expired deny entries failed", "error", err)
		errs = append(errs, err)
	} else if purged > 0 {
		w.logger.Info("purged expired deny audit entries", "count", purged)
	}

	return errors.Join(errs...)
}

// Start runs retention cycles at the configured interval until ctx is
// cancelled. Call Wait for a clean shutdown.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.cfg.PurgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.RunOnce(ctx); err != nil {
					w.logger.Error("retention cycle failed", "error", err)
				}
			}
		}
	}()
}

// Wait blocks until the background loop has exited.
func (w *RetentionWorker) Wait() {
	w.wg.Wait()
}
