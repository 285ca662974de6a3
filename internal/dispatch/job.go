// Package dispatch delivers matched emails to their webhook destinations
// under a bounded worker pool with per-job retry and backoff.
package dispatch

import (
	"time"

	"github.com/lucsky/cuid"

	"email-dispatcher/internal/email"
	"email-dispatcher/internal/routing"
)

// Job pairs one parsed email with the destinations matched at enqueue
// time. The queue owns the job exclusively until it reaches a terminal
// outcome; nothing is persisted afterwards.
type Job struct {
	ID           string
	Email        *email.ParsedEmail
	Destinations []routing.Destination
	EnqueuedAt   time.Time
}

// NewJob builds a dispatch job with a fresh id.
func NewJob(msg *email.ParsedEmail, destinations []routing.Destination) *Job {
	return &Job{
		ID:           cuid.New(),
		Email:        msg,
		Destinations: destinations,
		EnqueuedAt:   time.Now(),
	}
}

// Attempt records one HTTP call to one destination. Appended to the
// job's attempt list and never mutated afterwards.
type Attempt struct {
	Destination routing.Destination `json:"destination"`
	Number      int                 `json:"number"`
	Success     bool                `json:"success"`
	StatusCode  int                 `json:"status_code,omitempty"`
	Error       string              `json:"error,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// OutcomeStatus is the aggregate terminal state of a job.
type OutcomeStatus string

const (
	// OutcomeAllSucceeded means every destination has a success record.
	OutcomeAllSucceeded OutcomeStatus = "all-succeeded"
	// OutcomePartialFailure means retries are exhausted with a mix of results.
	OutcomePartialFailure OutcomeStatus = "partial-failure"
	// OutcomeAllFailed means retries are exhausted with zero successes.
	OutcomeAllFailed OutcomeStatus = "all-failed"
	// OutcomeNoDestinations means the job was enqueued with no destinations.
	OutcomeNoDestinations OutcomeStatus = "no-destinations"
)

// Failure reports whether the status counts as a delivery failure.
func (s OutcomeStatus) Failure() bool {
	return s != OutcomeAllSucceeded
}

// Outcome is the aggregate result of a job, computed once every
// destination reached a terminal state.
type Outcome struct {
	JobID       string                `json:"job_id"`
	Status      OutcomeStatus         `json:"status"`
	Succeeded   []routing.Destination `json:"succeeded,omitempty"`
	Failed      []routing.Destination `json:"failed,omitempty"`
	Attempts    []Attempt             `json:"attempts,omitempty"`
	CompletedAt time.Time             `json:"completed_at"`
}
