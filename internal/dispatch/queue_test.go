package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-dispatcher/internal/common/logging"
	"email-dispatcher/internal/email"
	"email-dispatcher/internal/routing"
)

// fakeClock records backoff sleeps and returns immediately.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(1700000000, 0)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// scriptedExecutor pops a scripted result per destination URL; an
// exhausted script succeeds. It also tracks call order and the maximum
// number of concurrent Deliver calls.
type scriptedExecutor struct {
	mu      sync.Mutex
	scripts map[string][]bool
	calls   []string

	delay         time.Duration
	inFlight      atomic.Int64
	maxConcurrent atomic.Int64
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{scripts: map[string][]bool{}}
}

func (e *scriptedExecutor) script(url string, results ...bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[url] = append(e.scripts[url], results...)
}

func (e *scriptedExecutor) Deliver(ctx context.Context, msg *email.ParsedEmail, dest routing.Destination, attemptNumber int) Attempt {
	current := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxConcurrent.Load()
		if current <= max || e.maxConcurrent.CompareAndSwap(max, current) {
			break
		}
	}

	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.calls = append(e.calls, dest.URL)
	success := true
	if script := e.scripts[dest.URL]; len(script) > 0 {
		success = script[0]
		e.scripts[dest.URL] = script[1:]
	}
	e.mu.Unlock()

	attempt := Attempt{
		Destination: dest,
		Number:      attemptNumber,
		Success:     success,
		Timestamp:   time.Unix(1700000000, 0),
	}
	if success {
		attempt.StatusCode = 200
	} else {
		attempt.StatusCode = 500
		attempt.Error = "unexpected status 500"
	}
	return attempt
}

func (e *scriptedExecutor) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func dest(url string) routing.Destination {
	return routing.Destination{RuleID: 1, RuleName: "r", URL: url, Method: "POST", Priority: 1}
}

func testEmail() *email.ParsedEmail {
	return &email.ParsedEmail{From: "sender@x.com", To: []string{"a@x.com"}, Subject: "s"}
}

func runJob(t *testing.T, queue *Queue, job *Job, outcomes <-chan *Outcome) *Outcome {
	t.Helper()

	queue.Start(context.Background())
	require.NoError(t, queue.Enqueue(job))

	select {
	case outcome := <-outcomes:
		queue.Stop()
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job outcome")
		return nil
	}
}

func TestQueue_SucceedsOnFourthAttempt(t *testing.T) {
	executor := newScriptedExecutor()
	executor.script("https://h/1", false, false, false, true)

	clock := &fakeClock{}
	outcomes := make(chan *Outcome, 1)

	queue := NewQueue(QueueConfig{
		Workers:     1,
		MaxRetries:  3,
		BackoffUnit: time.Second,
		Clock:       clock,
		OnOutcome:   func(o *Outcome) { outcomes <- o },
	}, executor, logging.NewDefaultLogger())

	job := NewJob(testEmail(), []routing.Destination{dest("https://h/1")})
	outcome := runJob(t, queue, job, outcomes)

	assert.Equal(t, OutcomeAllSucceeded, outcome.Status)
	assert.Len(t, outcome.Attempts, 4)
	for i, attempt := range outcome.Attempts {
		assert.Equal(t, i+1, attempt.Number)
	}
	assert.Empty(t, outcome.Failed)

	// Linear backoff: 1s before pass 2, 2s before pass 3, 3s before pass 4.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, clock.recorded())
}

func TestQueue_PartialFailure(t *testing.T) {
	executor := newScriptedExecutor()
	executor.script("https://h/bad", false, false, false, false)

	outcomes := make(chan *Outcome, 1)
	queue := NewQueue(QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		Clock:      &fakeClock{},
		OnOutcome:  func(o *Outcome) { outcomes <- o },
	}, executor, logging.NewDefaultLogger())

	job := NewJob(testEmail(), []routing.Destination{dest("https://h/good"), dest("https://h/bad")})
	outcome := runJob(t, queue, job, outcomes)

	assert.Equal(t, OutcomePartialFailure, outcome.Status)
	require.Len(t, outcome.Succeeded, 1)
	assert.Equal(t, "https://h/good", outcome.Succeeded[0].URL)
	require.Len(t, outcome.Failed, 1)
	assert.Equal(t, "https://h/bad", outcome.Failed[0].URL)

	// The succeeding destination is attempted exactly once; the failing
	// one exhausts all four passes.
	good, bad := 0, 0
	for _, attempt := range outcome.Attempts {
		switch attempt.Destination.URL {
		case "https://h/good":
			good++
		case "https://h/bad":
			bad++
		}
	}
	assert.Equal(t, 1, good)
	assert.Equal(t, 4, bad)
}

func TestQueue_AllFailed(t *testing.T) {
	executor := newScriptedExecutor()
	executor.script("https://h/1", false, false, false, false)

	outcomes := make(chan *Outcome, 1)
	queue := NewQueue(QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		Clock:      &fakeClock{},
		OnOutcome:  func(o *Outcome) { outcomes <- o },
	}, executor, logging.NewDefaultLogger())

	job := NewJob(testEmail(), []routing.Destination{dest("https://h/1")})
	outcome := runJob(t, queue, job, outcomes)

	assert.Equal(t, OutcomeAllFailed, outcome.Status)
	assert.Len(t, outcome.Attempts, 4)
	assert.True(t, outcome.Status.Failure())
}

func TestQueue_NoDestinations(t *testing.T) {
	outcomes := make(chan *Outcome, 1)
	queue := NewQueue(QueueConfig{
		Workers:   1,
		Clock:     &fakeClock{},
		OnOutcome: func(o *Outcome) { outcomes <- o },
	}, newScriptedExecutor(), logging.NewDefaultLogger())

	job := NewJob(testEmail(), nil)
	outcome := runJob(t, queue, job, outcomes)

	assert.Equal(t, OutcomeNoDestinations, outcome.Status)
	assert.True(t, outcome.Status.Failure())
	assert.Empty(t, outcome.Attempts)
}

func TestQueue_DestinationsDeliveredInMatchedOrder(t *testing.T) {
	executor := newScriptedExecutor()
	outcomes := make(chan *Outcome, 1)
	queue := NewQueue(QueueConfig{
		Workers:   1,
		Clock:     &fakeClock{},
		OnOutcome: func(o *Outcome) { outcomes <- o },
	}, executor, logging.NewDefaultLogger())

	job := NewJob(testEmail(), []routing.Destination{
		dest("https://h/1"), dest("https://h/2"), dest("https://h/3"),
	})
	outcome := runJob(t, queue, job, outcomes)

	assert.Equal(t, OutcomeAllSucceeded, outcome.Status)
	assert.Equal(t, []string{"https://h/1", "https://h/2", "https://h/3"}, executor.callOrder())
}

func TestQueue_WorkerPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	const jobs = 20

	executor := newScriptedExecutor()
	executor.delay = 5 * time.Millisecond

	var done sync.WaitGroup
	done.Add(jobs)

	queue := NewQueue(QueueConfig{
		Workers:   workers,
		Clock:     &fakeClock{},
		OnOutcome: func(*Outcome) { done.Done() },
	}, executor, logging.NewDefaultLogger())

	queue.Start(context.Background())
	for i := 0; i < jobs; i++ {
		require.NoError(t, queue.Enqueue(NewJob(testEmail(), []routing.Destination{dest("https://h/1")})))
	}

	done.Wait()
	queue.Stop()

	assert.LessOrEqual(t, executor.maxConcurrent.Load(), int64(workers))
	assert.Equal(t, int64(jobs), queue.Stats().AllSucceeded)
}

func TestQueue_EnqueueAfterStopFails(t *testing.T) {
	queue := NewQueue(QueueConfig{Workers: 1}, newScriptedExecutor(), logging.NewDefaultLogger())
	queue.Start(context.Background())
	queue.Stop()

	err := queue.Enqueue(NewJob(testEmail(), nil))
	assert.Error(t, err)
}

func TestQueue_StatsCounters(t *testing.T) {
	executor := newScriptedExecutor()
	executor.script("https://h/1", false, true)

	outcomes := make(chan *Outcome, 1)
	queue := NewQueue(QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		Clock:      &fakeClock{},
		OnOutcome:  func(o *Outcome) { outcomes <- o },
	}, executor, logging.NewDefaultLogger())

	job := NewJob(testEmail(), []routing.Destination{dest("https://h/1")})
	runJob(t, queue, job, outcomes)

	stats := queue.Stats()
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(2), stats.Attempts)
	assert.Equal(t, int64(1), stats.AttemptFailures)
	assert.Equal(t, int64(1), stats.AllSucceeded)
	assert.Equal(t, 0, stats.Depth)
}
