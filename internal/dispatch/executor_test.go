package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-dispatcher/internal/email"
	"email-dispatcher/internal/routing"
)

func TestHTTPExecutor_SuccessfulDelivery(t *testing.T) {
	var received struct {
		From     string   `json:"from"`
		To       []string `json:"to"`
		Subject  string   `json:"subject"`
		Metadata struct {
			RuleName   string `json:"ruleName"`
			Priority   int    `json:"priority"`
			WebhookURL string `json:"webhookURL"`
		} `json:"metadata"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "email-dispatcher/1.0", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	executor := NewHTTPExecutor(2 * time.Second)
	msg := &email.ParsedEmail{From: "sender@x.com", To: []string{"a@x.com"}, Subject: "hello"}
	target := routing.Destination{RuleID: 7, RuleName: "support", URL: srv.URL, Method: "POST", Priority: 3}

	attempt := executor.Deliver(context.Background(), msg, target, 1)

	assert.True(t, attempt.Success)
	assert.Equal(t, http.StatusOK, attempt.StatusCode)
	assert.Equal(t, 1, attempt.Number)
	assert.Empty(t, attempt.Error)

	assert.Equal(t, "sender@x.com", received.From)
	assert.Equal(t, []string{"a@x.com"}, received.To)
	assert.Equal(t, "hello", received.Subject)
	assert.Equal(t, "support", received.Metadata.RuleName)
	assert.Equal(t, 3, received.Metadata.Priority)
	assert.Equal(t, srv.URL, received.Metadata.WebhookURL)
}

func TestHTTPExecutor_AcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	executor := NewHTTPExecutor(2 * time.Second)
	attempt := executor.Deliver(context.Background(), testEmail(), dest(srv.URL), 1)

	assert.True(t, attempt.Success)
	assert.Equal(t, http.StatusAccepted, attempt.StatusCode)
}

func TestHTTPExecutor_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	executor := NewHTTPExecutor(2 * time.Second)
	attempt := executor.Deliver(context.Background(), testEmail(), dest(srv.URL), 2)

	assert.False(t, attempt.Success)
	assert.Equal(t, http.StatusInternalServerError, attempt.StatusCode)
	assert.Contains(t, attempt.Error, "500")
	assert.Equal(t, 2, attempt.Number)
}

func TestHTTPExecutor_TransportErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	executor := NewHTTPExecutor(time.Second)
	attempt := executor.Deliver(context.Background(), testEmail(), dest(srv.URL), 1)

	assert.False(t, attempt.Success)
	assert.Zero(t, attempt.StatusCode)
	assert.NotEmpty(t, attempt.Error)
}

func TestHTTPExecutor_UsesDestinationMethod(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	defer srv.Close()

	executor := NewHTTPExecutor(2 * time.Second)
	target := dest(srv.URL)
	target.Method = http.MethodPut

	attempt := executor.Deliver(context.Background(), testEmail(), target, 1)

	assert.True(t, attempt.Success)
	assert.Equal(t, http.MethodPut, method)
}
