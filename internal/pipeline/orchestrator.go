// Package pipeline wires inbound parsed email to the matcher and the
// dispatch queue, and reports terminal outcomes for observability.
package pipeline

import (
	"context"

	"email-dispatcher/internal/common/errors"
	"email-dispatcher/internal/common/logging"
	"email-dispatcher/internal/dispatch"
	"email-dispatcher/internal/email"
	"email-dispatcher/internal/routing"
)

// Orchestrator accepts one parsed email at a time, resolves destinations
// against the current routing table snapshot and hands the job to the
// dispatch queue. Acceptance means "queued", never "delivered": the
// decision returned to the listener does not wait for delivery.
type Orchestrator struct {
	table      *routing.Table
	queue      *dispatch.Queue
	logger     logging.Logger
	dedupeURLs bool
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(table *routing.Table, queue *dispatch.Queue, dedupeURLs bool, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		table:      table,
		queue:      queue,
		logger:     logger,
		dedupeURLs: dedupeURLs,
	}
}

// Accept matches the email and enqueues a dispatch job, returning the
// job id. A message matching zero rules is still accepted; the queue
// reports it as a no-destinations outcome. Only a nil message or a
// stopped queue rejects.
func (o *Orchestrator) Accept(ctx context.Context, msg *email.ParsedEmail) (string, error) {
	if msg == nil {
		return "", errors.ValidationError("nil email")
	}

	snapshot := o.table.Current()
	destinations := routing.Match(msg, snapshot, o.dedupeURLs)

	job := dispatch.NewJob(msg, destinations)

	o.logger.Info("Email accepted",
		logging.String("job_id", job.ID),
		logging.String("from", msg.From),
		logging.Strings("to", msg.To),
		logging.Int("matches", len(destinations)),
	)

	if err := o.queue.Enqueue(job); err != nil {
		return "", err
	}

	return job.ID, nil
}

// OnOutcome logs the terminal outcome of a job. It is handed to the
// dispatch queue as its completion callback; the orchestrator never
// re-drives failed jobs.
func (o *Orchestrator) OnOutcome(outcome *dispatch.Outcome) {
	fields := []logging.Field{
		logging.String("job_id", outcome.JobID),
		logging.String("status", string(outcome.Status)),
		logging.Int("succeeded", len(outcome.Succeeded)),
		logging.Int("failed", len(outcome.Failed)),
		logging.Int("attempts", len(outcome.Attempts)),
	}

	switch outcome.Status {
	case dispatch.OutcomeAllSucceeded:
		o.logger.Info("Dispatch completed", fields...)
	case dispatch.OutcomeNoDestinations:
		o.logger.Warn("Dispatch completed with no destinations", fields...)
	default:
		o.logger.Error("Dispatch completed with failures", nil, fields...)
	}
}
