package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"email-dispatcher/internal/common/errors"
	"email-dispatcher/internal/common/logging"
)

// QueueConfig holds dispatch queue configuration.
type QueueConfig struct {
	// Workers bounds the number of jobs processed simultaneously.
	// Destinations within a job are delivered sequentially, so this is
	// also the effective HTTP concurrency ceiling.
	Workers int

	// MaxRetries is the number of extra delivery passes after the first
	// attempt. With the default of 3 a destination sees at most 4 attempts.
	MaxRetries int

	// BackoffUnit scales the linear backoff between passes: the wait
	// before pass n+1 is n * BackoffUnit.
	BackoffUnit time.Duration

	// Clock drives backoff sleeps. Defaults to the system clock.
	Clock Clock

	// OnOutcome, if set, is invoked with every terminal job outcome.
	OnOutcome func(*Outcome)
}

// Queue accepts dispatch jobs and delivers them through a fixed worker
// pool. The buffer is unbounded; Enqueue never blocks and the depth is
// observable via Stats. Jobs are process-local and lost on restart.
type Queue struct {
	cfg      QueueConfig
	executor Executor
	logger   logging.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []*Job
	closed bool

	wg sync.WaitGroup

	inFlight  atomic.Int64
	enqueued  atomic.Int64
	attempts  atomic.Int64
	failures  atomic.Int64
	completed map[OutcomeStatus]*atomic.Int64
}

// NewQueue creates a dispatch queue. Start must be called before jobs
// are processed.
func NewQueue(cfg QueueConfig, executor Executor, logger logging.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	q := &Queue{
		cfg:      cfg,
		executor: executor,
		logger:   logger,
		completed: map[OutcomeStatus]*atomic.Int64{
			OutcomeAllSucceeded:   {},
			OutcomePartialFailure: {},
			OutcomeAllFailed:      {},
			OutcomeNoDestinations: {},
		},
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker pool. Workers run until Stop is called and
// the buffer is drained.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("Dispatch queue started",
		logging.Int("workers", q.cfg.Workers),
		logging.Int("max_retries", q.cfg.MaxRetries),
	)
}

// Stop closes the queue and waits for the workers to drain the buffer
// and finish their in-flight jobs.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("Dispatch queue stopped")
}

// Enqueue adds a job to the buffer. It never blocks; it fails only when
// the queue has been stopped.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.InternalError("dispatch queue is stopped", nil)
	}

	q.jobs = append(q.jobs, job)
	q.enqueued.Add(1)
	q.cond.Signal()
	return nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		job := q.next()
		if job == nil {
			return
		}
		outcome := q.process(ctx, job)
		q.report(outcome)
	}
}

// next pops the oldest job, blocking until one is available. Returns nil
// once the queue is closed and drained.
func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return nil
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job
}

// process runs one job to a terminal state. Destinations are attempted
// sequentially in matched order; each retry pass re-attempts only the
// destinations that failed on the previous pass.
func (q *Queue) process(ctx context.Context, job *Job) *Outcome {
	q.inFlight.Add(1)
	defer q.inFlight.Add(-1)

	outcome := &Outcome{JobID: job.ID}

	if len(job.Destinations) == 0 {
		outcome.Status = OutcomeNoDestinations
		outcome.CompletedAt = q.cfg.Clock.Now()
		return outcome
	}

	pending := job.Destinations
	maxPasses := q.cfg.MaxRetries + 1

	for pass := 1; ; pass++ {
		var stillFailing []Attempt

		for _, dest := range pending {
			attempt := q.executor.Deliver(ctx, job.Email, dest, pass)
			outcome.Attempts = append(outcome.Attempts, attempt)
			q.attempts.Add(1)

			if attempt.Success {
				outcome.Succeeded = append(outcome.Succeeded, dest)
				q.logger.Debug("Delivery succeeded",
					logging.String("job_id", job.ID),
					logging.String("url", dest.URL),
					logging.Int("attempt", pass),
					logging.Int("status", attempt.StatusCode),
				)
			} else {
				stillFailing = append(stillFailing, attempt)
				q.failures.Add(1)
				q.logger.Warn("Delivery attempt failed",
					logging.String("job_id", job.ID),
					logging.String("url", dest.URL),
					logging.Int("attempt", pass),
					logging.Int("status", attempt.StatusCode),
					logging.String("error", attempt.Error),
				)
			}
		}

		pending = pending[:0:0]
		for _, attempt := range stillFailing {
			pending = append(pending, attempt.Destination)
		}

		if len(pending) == 0 || pass >= maxPasses {
			break
		}

		// Linear backoff: 1 unit before pass 2, 2 units before pass 3, ...
		if err := q.cfg.Clock.Sleep(ctx, time.Duration(pass)*q.cfg.BackoffUnit); err != nil {
			break
		}
	}

	outcome.Failed = pending
	outcome.CompletedAt = q.cfg.Clock.Now()

	switch {
	case len(outcome.Failed) == 0:
		outcome.Status = OutcomeAllSucceeded
	case len(outcome.Succeeded) == 0:
		outcome.Status = OutcomeAllFailed
	default:
		outcome.Status = OutcomePartialFailure
	}

	return outcome
}

func (q *Queue) report(outcome *Outcome) {
	if counter, ok := q.completed[outcome.Status]; ok {
		counter.Add(1)
	}
	if q.cfg.OnOutcome != nil {
		q.cfg.OnOutcome(outcome)
	}
}

// Stats reports queue counters for the observability surface.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	depth := len(q.jobs)
	q.mu.Unlock()

	return QueueStats{
		Depth:           depth,
		InFlight:        q.inFlight.Load(),
		Enqueued:        q.enqueued.Load(),
		Attempts:        q.attempts.Load(),
		AttemptFailures: q.failures.Load(),
		AllSucceeded:    q.completed[OutcomeAllSucceeded].Load(),
		PartialFailure:  q.completed[OutcomePartialFailure].Load(),
		AllFailed:       q.completed[OutcomeAllFailed].Load(),
		NoDestinations:  q.completed[OutcomeNoDestinations].Load(),
	}
}

// QueueStats is the observability view of the dispatch queue.
type QueueStats struct {
	Depth           int   `json:"depth"`
	InFlight        int64 `json:"in_flight"`
	Enqueued        int64 `json:"enqueued"`
	Attempts        int64 `json:"attempts"`
	AttemptFailures int64 `json:"attempt_failures"`
	AllSucceeded    int64 `json:"all_succeeded"`
	PartialFailure  int64 `json:"partial_failure"`
	AllFailed       int64 `json:"all_failed"`
	NoDestinations  int64 `json:"no_destinations"`
}
