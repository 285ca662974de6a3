package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-dispatcher/internal/common/logging"
	"email-dispatcher/internal/dispatch"
	"email-dispatcher/internal/email"
	"email-dispatcher/internal/routing"
	"email-dispatcher/internal/rules"
)

type staticStore struct {
	rules []rules.Rule
}

func (s *staticStore) FetchActiveRules(ctx context.Context) ([]rules.Rule, error) {
	return append([]rules.Rule(nil), s.rules...), nil
}
func (s *staticStore) CreateRule(ctx context.Context, rule *rules.Rule) error  { return nil }
func (s *staticStore) GetRule(ctx context.Context, id int64) (*rules.Rule, error) {
	return nil, nil
}
func (s *staticStore) ListRules(ctx context.Context) ([]rules.Rule, error)   { return nil, nil }
func (s *staticStore) UpdateRule(ctx context.Context, rule *rules.Rule) error { return nil }
func (s *staticStore) DeleteRule(ctx context.Context, id int64) error         { return nil }
func (s *staticStore) Close() error                                           { return nil }

// blockingExecutor never completes until released, proving acceptance
// does not wait for delivery.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *blockingExecutor) Deliver(ctx context.Context, msg *email.ParsedEmail, target routing.Destination, attemptNumber int) dispatch.Attempt {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return dispatch.Attempt{Destination: target, Number: attemptNumber, Success: true, StatusCode: 200}
}

func newPipeline(t *testing.T, executor dispatch.Executor, storeRules ...rules.Rule) (*Orchestrator, *dispatch.Queue) {
	t.Helper()

	logger := logging.NewDefaultLogger()
	table := routing.NewTable(&staticStore{rules: storeRules}, time.Minute, logger)
	require.NoError(t, table.Refresh(context.Background()))

	queue := dispatch.NewQueue(dispatch.QueueConfig{Workers: 1}, executor, logger)
	return NewOrchestrator(table, queue, false, logger), queue
}

func TestOrchestrator_AcceptReturnsBeforeDelivery(t *testing.T) {
	executor := &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
	orchestrator, queue := newPipeline(t, executor, rules.Rule{
		ID: 1, Name: "r", SourceAddress: "a@x.com",
		DestinationURL: "https://h/1", DestinationMethod: "POST",
		Priority: 1, Status: rules.StatusActive,
	})

	queue.Start(context.Background())

	msg := &email.ParsedEmail{From: "s@y.com", To: []string{"a@x.com"}}
	jobID, err := orchestrator.Accept(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	// Accept already returned; delivery is still blocked in the worker.
	select {
	case <-executor.started:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never started")
	}

	close(executor.release)
	queue.Stop()
}

func TestOrchestrator_AcceptsUnmatchedEmail(t *testing.T) {
	outcomes := make(chan *dispatch.Outcome, 1)
	logger := logging.NewDefaultLogger()
	table := routing.NewTable(&staticStore{}, time.Minute, logger)
	queue := dispatch.NewQueue(dispatch.QueueConfig{
		Workers:   1,
		OnOutcome: func(o *dispatch.Outcome) { outcomes <- o },
	}, &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}, logger)
	orchestrator := NewOrchestrator(table, queue, false, logger)

	queue.Start(context.Background())
	defer queue.Stop()

	msg := &email.ParsedEmail{From: "s@y.com", To: []string{"nobody@x.com"}}
	jobID, err := orchestrator.Accept(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	select {
	case outcome := <-outcomes:
		assert.Equal(t, jobID, outcome.JobID)
		assert.Equal(t, dispatch.OutcomeNoDestinations, outcome.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
}

func TestOrchestrator_RejectsNilEmail(t *testing.T) {
	orchestrator, queue := newPipeline(t, &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})})
	_ = queue

	_, err := orchestrator.Accept(context.Background(), nil)
	assert.Error(t, err)
}

func TestOrchestrator_RejectsWhenQueueStopped(t *testing.T) {
	orchestrator, queue := newPipeline(t, &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})})
	queue.Start(context.Background())
	queue.Stop()

	msg := &email.ParsedEmail{From: "s@y.com", To: []string{"a@x.com"}}
	_, err := orchestrator.Accept(context.Background(), msg)
	assert.Error(t, err)
}
