// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Forwarder configuration defaults.
const (
	defaultForwardTimeout = 5 * time.Second
	defaultRetryInitial   = 200 * time.Millisecond
	defaultMaxRetries     = 4
)

// ForwarderSink posts entries as JSON to an external collector (SIEM).
// Transient failures are retried with exponential backoff; a persistent
// failure is returned to the logger, which logs the warning and keeps the
// other sinks working.
type ForwarderSink struct {
	endpoint   string
	authToken  string
	client     *http.Client
	maxRetries uint64
}

// ForwarderOption configures a ForwarderSink.
type ForwarderOption func(*ForwarderSink)

// WithForwarderClient overrides the HTTP client (tests).
func WithForwarderClient(client *http.Client) ForwarderOption {
	return func(f *ForwarderSink) {
		f.client = client
	}
}

// WithForwarderToken sets the bearer token sent with each request.
func WithForwarderToken(token string) ForwarderOption {
	return func(f *ForwarderSink) {
		f.authToken = token
	}
}

// WithForwarderMaxRetries overrides the retry budget per entry.
func WithForwarderMaxRetries(n uint64) ForwarderOption {
	return func(f *ForwarderSink) {
		f.maxRetries = n
	}
}

// NewForwarderSink creates a ForwarderSink posting to endpoint.
func NewForwarderSink(endpoint string, opts ...ForwarderOption) *ForwarderSink {
	f := &ForwarderSink{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: defaultForwardTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Append implements Sink.
func (f *ForwarderSink) Append(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return oops.With("entryId", entry.ID).Wrap(err)
	}

	backoff := retry.WithMaxRetries(f.maxRetries, retry.NewExponential(defaultRetryInitial))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return f.post(ctx, payload)
	})
	if err != nil {
		return oops.
			With("entryId", entry.ID).
			With("endpoint", f.endpoint).
			Wrap(err)
	}
	return nil
}

func (f *ForwarderSink) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.authToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("forwarder returned %d", resp.StatusCode))
	default:
		return fmt.Errorf("forwarder returned %d", resp.StatusCode)
	}
}

// Name implements Sink.
func (f *ForwarderSink) Name() string { return "forwarder" }

// Close implements Sink.
func (f *ForwarderSink) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
