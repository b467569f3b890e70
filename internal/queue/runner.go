package queue

import (
	"context"

	"github.com/wignn/media-tools/internal/model"
)

// ProgressUpdate is one live progress sample for a running job.
type ProgressUpdate struct {
	JobID   string
	Percent float64
	Speed   string
	ETA     string
	Stage   string
}

// RunResult reports how an attempt ended. Cancelled marks runs that
// stopped because the job's context was cancelled, which must not
// count as a failure.
type RunResult struct {
	OutputPath string
	Cancelled  bool
}

// Runner executes one attempt of a job and streams progress through
// emit. Implementations must honor ctx cancellation by terminating the
// underlying work and returning with Cancelled set.
type Runner interface {
	Run(ctx context.Context, job model.Job, emit func(ProgressUpdate)) (RunResult, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job model.Job, emit func(ProgressUpdate)) (RunResult, error)

func (f RunnerFunc) Run(ctx context.Context, job model.Job, emit func(ProgressUpdate)) (RunResult, error) {
	return f(ctx, job, emit)
}
