package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"email-dispatcher/internal/common/httpx"
	"email-dispatcher/internal/email"
	"email-dispatcher/internal/routing"
)

const userAgent = "email-dispatcher/1.0"

// Executor performs one delivery attempt to one destination.
type Executor interface {
	Deliver(ctx context.Context, msg *email.ParsedEmail, dest routing.Destination, attemptNumber int) Attempt
}

// deliveryPayload is the JSON body sent to destination webhooks: the full
// parsed email plus a metadata block identifying the matched rule.
type deliveryPayload struct {
	*email.ParsedEmail
	Metadata deliveryMetadata `json:"metadata"`
}

type deliveryMetadata struct {
	RuleName   string `json:"ruleName"`
	Priority   int    `json:"priority"`
	WebhookURL string `json:"webhookURL"`
}

// HTTPExecutor delivers jobs over HTTP with a fixed per-request timeout.
type HTTPExecutor struct {
	client *http.Client
	clock  Clock
}

// NewHTTPExecutor creates an executor whose requests time out after the
// given duration.
func NewHTTPExecutor(timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		client: httpx.NewClient(httpx.WithTimeout(timeout)),
		clock:  SystemClock{},
	}
}

// NewHTTPExecutorWithClient creates an executor around an existing
// client. Used by tests to inject a stub transport.
func NewHTTPExecutorWithClient(client *http.Client) *HTTPExecutor {
	return &HTTPExecutor{client: client, clock: SystemClock{}}
}

// Deliver posts the email payload to the destination and records the
// result. Any 2xx response is success; a transport error or any other
// status is failure. The status code is recorded when available.
func (e *HTTPExecutor) Deliver(ctx context.Context, msg *email.ParsedEmail, dest routing.Destination, attemptNumber int) Attempt {
	attempt := Attempt{
		Destination: dest,
		Number:      attemptNumber,
		Timestamp:   e.clock.Now(),
	}

	body, err := json.Marshal(deliveryPayload{
		ParsedEmail: msg,
		Metadata: deliveryMetadata{
			RuleName:   dest.RuleName,
			Priority:   dest.Priority,
			WebhookURL: dest.URL,
		},
	})
	if err != nil {
		attempt.Error = fmt.Sprintf("failed to encode payload: %v", err)
		return attempt
	}

	method := dest.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, dest.URL, bytes.NewReader(body))
	if err != nil {
		attempt.Error = fmt.Sprintf("failed to build request: %v", err)
		return attempt
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	attempt.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		attempt.Success = true
	} else {
		attempt.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	return attempt
}
