// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"context"
	"sync"
)

// MemorySink keeps entries in memory in append order. Used in tests and as
// a queryable in-process sink for small deployments.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	failErr error
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements Sink.
func (s *MemorySink) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Name implements Sink.
func (s *MemorySink) Name() string { return "memory" }

// Close implements Sink.
func (s *MemorySink) Close() error { return nil }

// Entries returns a copy of all entries in append order.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// ByCorrelation returns all entries for a correlation id in the order they
// were persisted.
func (s *MemorySink) ByCorrelation(correlationID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out
}

// FailWith makes subsequent Appends return err; nil restores normal
// operation. Test helper for sink-isolation behavior.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
