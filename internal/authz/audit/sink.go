// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import "context"

// Sink persists audit entries. Append must be safe for sequential calls
// from the logger's consumer goroutine; at-least-once delivery is
// acceptable, silent loss is not.
type Sink interface {
	// Append writes one entry. Implementations must preserve call order
	// for retrievals keyed by correlation id.
	Append(ctx context.Context, entry Entry) error

	// Name identifies the sink in warnings and metrics.
	Name() string

	Close() error
}
