// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// NotifyChannel is the PostgreSQL notification channel carrying policy-set
// invalidations. The payload is the org ID whose policies changed.
const NotifyChannel = "abac_policy_changed"

// PgListener implements Listener over a dedicated (non-pooled) PostgreSQL
// connection. It reconnects with exponential backoff when the connection
// drops; invalidations missed while disconnected are recovered by an
// InvalidateAll on reconnect.
type PgListener struct {
	connString string
}

// NewPgListener creates a listener for the given connection string.
func NewPgListener(connString string) *PgListener {
	return &PgListener{connString: connString}
}

// Listen starts the notification loop. The returned channel emits org IDs
// (or "" after a reconnect, meaning invalidate everything) and closes when
// ctx is cancelled.
func (l *PgListener) Listen(ctx context.Context) (<-chan string, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, oops.Wrapf(err, "policy listener connect")
	}

	ch := make(chan string, 16)
	go l.run(ctx, conn, ch)
	return ch, nil
}

func (l *PgListener) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return conn, nil
}

func (l *PgListener) run(ctx context.Context, conn *pgx.Conn, ch chan<- string) {
	defer close(ch)
	defer func() {
		if conn != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = conn.Close(closeCtx)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.WarnContext(ctx, "policy listener connection lost, reconnecting", "error", err)
			_ = conn.Close(ctx)

			conn, err = l.reconnect(ctx)
			if err != nil {
				// Only context cancellation ends the retry loop.
				return
			}
			// Anything notified while disconnected was missed.
			select {
			case ch <- "":
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case ch <- notification.Payload:
		case <-ctx.Done():
			return
		}
	}
}

// reconnect retries the connection with capped exponential backoff until it
// succeeds or the context is cancelled.
func (l *PgListener) reconnect(ctx context.Context) (*pgx.Conn, error) {
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(100*time.Millisecond))

	var conn *pgx.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var connectErr error
		conn, connectErr = l.connect(ctx)
		if connectErr != nil {
			return retry.RetryableError(connectErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
