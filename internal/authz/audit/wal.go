// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// wal is a JSONL write-ahead log used when every sink rejects an entry.
type wal struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func newWAL(path string) *wal {
	if path == "" {
		return nil
	}
	return &wal{path: path}
}

func (w *wal) append(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o600)
		if err != nil {
			return oops.With("path", w.path).Wrap(err)
		}
		w.file = file
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return oops.Wrap(err)
	}
	if _, err := fmt.Fprintf(w.file, "%s\n", data); err != nil {
		return oops.With("path", w.path).Wrap(err)
	}

	walEntries.Inc()
	return nil
}

// replay re-appends every WAL entry to the sinks, then truncates the file.
// Unparseable lines are skipped with a warning; append failures keep the
// loop going so one bad entry cannot block recovery of the rest.
func (w *wal) replay(ctx context.Context, sinks []Sink) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(w.path) //nolint:gosec // path comes from operator config
	if err != nil {
		return oops.With("path", w.path).Wrap(err)
	}
	if len(data) == 0 {
		return nil
	}

	replayed := 0
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("skipping unparseable audit WAL entry", "error", err)
			continue
		}

		for _, sink := range sinks {
			if err := sink.Append(ctx, entry); err != nil {
				slog.Warn("audit WAL replay append failed",
					"sink", sink.Name(),
					"entryId", entry.ID,
					"error", err)
			}
		}
		replayed++
	}

	if err := os.Truncate(w.path, 0); err != nil {
		return oops.With("path", w.path).Wrap(err)
	}

	walEntries.Set(0)
	slog.Info("replayed audit WAL entries", "count", replayed)
	return nil
}

func (w *wal) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return oops.With("path", w.path).Wrap(err)
	}
	return nil
}
