// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/orgcentral/authcore/internal/authz"
)

const defaultBufferSize = 1024

// Option configures a Logger.
type Option func(*Logger)

// WithDefaults sets the classification floor and residency back-filled onto
// entries that omit them. Entries below the floor are raised to it so every
// audit record remains classifiable for retention.
func WithDefaults(floor authz.Classification, residency authz.Residency) Option {
	return func(l *Logger) {
		l.classificationFloor = floor
		l.defaultResidency = residency
	}
}

// WithFailHard makes sink failures fail the original operation instead of
// being swallowed. For audit-critical deployments.
func WithFailHard() Option {
	return func(l *Logger) {
		l.failHard = true
	}
}

// WithWALPath sets the write-ahead log path used when every sink rejects an
// entry. Empty disables the WAL fallback.
func WithWALPath(path string) Option {
	return func(l *Logger) {
		l.wal = newWAL(path)
	}
}

// WithBufferSize overrides the async queue capacity.
func WithBufferSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.buffer = n
		}
	}
}

// Logger fans audit entries out to one or more sinks.
//
// Entries are sequenced onto one buffered channel and consumed by a single
// goroutine, which preserves per-correlation-id persistence order under
// concurrent callers. When the queue is full, Log blocks rather than drop;
// audit loss is worse than a slow request.
type Logger struct {
	sinks []Sink

	classificationFloor authz.Classification
	defaultResidency    authz.Residency
	failHard            bool
	buffer              int
	wal                 *wal

	queue    chan Entry
	stopChan chan struct{}
	wg       sync.WaitGroup
	seq      atomic.Uint64

	closeOnce sync.Once
}

// NewLogger creates a Logger over the given sinks and starts its consumer.
// Call Close to drain and shut down.
func NewLogger(sinks []Sink, opts ...Option) *Logger {
	l := &Logger{
		sinks:            sinks,
		defaultResidency: authz.ResidencyUKOnly,
		buffer:           defaultBufferSize,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.queue = make(chan Entry, l.buffer)
	l.wg.Add(1)
	go l.consume()

	return l
}

// Log accepts an entry for persistence. Fire-and-forget unless the logger
// was built with WithFailHard, in which case a sink failure is returned to
// the caller.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	l.prepare(&entry)
	entriesLogged.WithLabelValues(string(entry.Outcome)).Inc()

	if l.failHard {
		var errs []error
		for _, sink := range l.sinks {
			if err := sink.Append(ctx, entry); err != nil {
				sinkFailures.WithLabelValues(sink.Name()).Inc()
				errs = append(errs, oops.With("sink", sink.Name()).Wrap(err))
			}
		}
		if len(errs) > 0 {
			return oops.Code("AUDIT_WRITE_FAILED").Wrap(errors.Join(errs...))
		}
		return nil
	}

	select {
	case l.queue <- entry:
	case <-l.stopChan:
		// Shutting down; the consumer may no longer drain the queue, so
		// divert straight to the WAL rather than lose the entry.
		l.fallbackToWAL(entry)
	}
	return nil
}

// prepare assigns identity, ordering, and classification defaults.
func (l *Logger) prepare(entry *Entry) {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Seq = l.seq.Add(1)
	if entry.Classification < l.classificationFloor {
		entry.Classification = l.classificationFloor
	}
	if entry.Residency == "" {
		entry.Residency = l.defaultResidency
	}
}

func (l *Logger) consume() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.queue:
			l.dispatch(entry)
		case <-l.stopChan:
			l.drain()
			return
		}
	}
}

func (l *Logger) drain() {
	for {
		select {
		case entry := <-l.queue:
			l.dispatch(entry)
		default:
			return
		}
	}
}

// dispatch writes one entry to every sink. A failure in one sink does not
// block the others; if all sinks fail the entry goes to the WAL.
func (l *Logger) dispatch(entry Entry) {
	succeeded := 0
	for _, sink := range l.sinks {
		if err := sink.Append(context.Background(), entry); err != nil {
			sinkFailures.WithLabelValues(sink.Name()).Inc()
			slog.Warn("audit sink append failed",
				"sink", sink.Name(),
				"entryId", entry.ID,
				"correlationId", entry.CorrelationID,
				"error", err)
			continue
		}
		succeeded++
	}
	if succeeded == 0 && len(l.sinks) > 0 {
		l.fallbackToWAL(entry)
	}
}

func (l *Logger) fallbackToWAL(entry Entry) {
	if l.wal == nil {
		walFailures.Inc()
		slog.Error("audit entry lost: all sinks failed and no WAL configured",
			"entryId", entry.ID,
			"correlationId", entry.CorrelationID)
		return
	}
	if err := l.wal.append(entry); err != nil {
		walFailures.Inc()
		slog.Error("audit entry lost: WAL write failed",
			"entryId", entry.ID,
			"correlationId", entry.CorrelationID,
			"error", err)
	}
}

// ReplayWAL re-appends WAL entries to the sinks and truncates the WAL on
// success. Call after a sink outage has been resolved.
func (l *Logger) ReplayWAL(ctx context.Context) error {
	if l.wal == nil {
		return nil
	}
	return l.wal.replay(ctx, l.sinks)
}

// Close drains the queue, stops the consumer, and closes all sinks.
func (l *Logger) Close() error {
	var errs []error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()

		// A Log racing Close can win the queue send after the consumer's
		// final drain has already seen an empty queue. Flush any such
		// leftovers while the sinks are still open.
		l.drain()

		for _, sink := range l.sinks {
			if err := sink.Close(); err != nil {
				errs = append(errs, oops.With("sink", sink.Name()).Wrap(err))
			}
		}
		if l.wal != nil {
			if err := l.wal.close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
