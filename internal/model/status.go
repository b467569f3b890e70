package model

import "fmt"

// JobStatus is the lifecycle state of a job in the queue.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further automatic transition occurs.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending:   true,
		StatusRunning:   true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusRunning:   true,
		StatusSucceeded: true,
		StatusPending:   true, // automatic re-queue while retry budget remains
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusFailed: {
		StatusFailed:  true,
		StatusPending: true, // manual retry resets the budget
	},
	StatusSucceeded: {
		StatusSucceeded: true,
	},
	StatusCancelled: {
		StatusCancelled: true,
	},
}

func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *Job, to JobStatus) error {
	from := job.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job_id=%s source=%s)", from, to, job.ID, job.SourceRef)
	}
	job.Status = to
	return nil
}
