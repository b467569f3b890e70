package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wignn/media-tools/internal/model"
)

const (
	defaultAdvanceDelay = 500 * time.Millisecond
	defaultMaxRetries   = 3
	historyCap          = 100
)

// ErrDuplicateSource rejects a submission whose source is already
// queued or running. Finished jobs never block a resubmission.
var ErrDuplicateSource = errors.New("source is already queued")

type Spec struct {
	SourceRef    string
	Kind         model.JobKind
	Destination  string
	Title        string
	ClipStart    string
	ClipEnd      string
	RateLimitKiB int
}

type Config struct {
	Runner       Runner
	Registry     *Registry
	AdvanceDelay time.Duration
	MaxRetries   int
	Now          func() time.Time
}

// Manager owns the job queue: ordering, the single execution slot,
// retries, and snapshot fan-out to subscribers. All external processes
// run through its Runner one at a time.
type Manager struct {
	mu           sync.Mutex
	runner       Runner
	registry     *Registry
	advanceDelay time.Duration
	maxRetries   int
	now          func() time.Time

	jobs         []*model.Job
	running      bool
	activeID     string
	activeCancel context.CancelFunc
	attemptSeq   uint64

	subs    map[int]func([]model.Job)
	nextSub int
	hist    []model.Job
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("queue manager requires a runner")
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = defaultAdvanceDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		runner:       cfg.Runner,
		registry:     cfg.Registry,
		advanceDelay: cfg.AdvanceDelay,
		maxRetries:   cfg.MaxRetries,
		now:          cfg.Now,
		subs:         map[int]func([]model.Job){},
	}, nil
}

// Submit enqueues a new job and starts it immediately when the
// execution slot is free.
func (m *Manager) Submit(spec Spec) (string, error) {
	if strings.TrimSpace(spec.SourceRef) == "" {
		return "", fmt.Errorf("source is required")
	}
	if _, ok := model.ParseJobKind(string(spec.Kind)); !ok {
		return "", fmt.Errorf("unknown job kind %q", spec.Kind)
	}

	m.mu.Lock()
	for _, j := range m.jobs {
		if j.SourceRef == spec.SourceRef && !j.Status.Terminal() {
			m.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrDuplicateSource, spec.SourceRef)
		}
	}

	job := &model.Job{
		ID:           uuid.NewString(),
		SourceRef:    spec.SourceRef,
		Kind:         spec.Kind,
		Destination:  spec.Destination,
		Title:        spec.Title,
		ClipStart:    spec.ClipStart,
		ClipEnd:      spec.ClipEnd,
		RateLimitKiB: spec.RateLimitKiB,
		CreatedAt:    m.now(),
	}
	if err := model.TransitionJobStatus(job, model.StatusPending); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.jobs = append(m.jobs, job)
	m.scheduleLocked()
	m.mu.Unlock()

	m.publish()
	return job.ID, nil
}

// scheduleLocked starts the next pending job when no job is running.
// Callers must hold m.mu.
func (m *Manager) scheduleLocked() {
	if m.running {
		return
	}
	var next *model.Job
	for _, j := range m.jobs {
		if j.Status == model.StatusPending {
			next = j
			break
		}
	}
	if next == nil {
		return
	}

	if err := model.TransitionJobStatus(next, model.StatusRunning); err != nil {
		return
	}
	next.StartedAt = m.now()
	next.Percent = 0
	next.Speed = ""
	next.ETA = ""
	next.ErrorMessage = ""

	m.running = true
	m.activeID = next.ID
	m.attemptSeq++
	seq := m.attemptSeq

	ctx, cancel := context.WithCancel(context.Background())
	m.activeCancel = cancel

	if m.registry != nil {
		m.registry.Add(projectEntry(*next))
	}

	jobCopy := *next
	go m.runAttempt(ctx, jobCopy, seq)
}

func (m *Manager) runAttempt(ctx context.Context, job model.Job, seq uint64) {
	emit := func(u ProgressUpdate) {
		m.applyProgress(u, seq)
	}
	result, err := m.runner.Run(ctx, job, emit)
	if ctx.Err() != nil {
		result.Cancelled = true
	}
	m.finish(job.ID, seq, result, err)
}

func (m *Manager) applyProgress(u ProgressUpdate, seq uint64) {
	m.mu.Lock()
	if seq != m.attemptSeq || m.activeID != u.JobID {
		m.mu.Unlock()
		return
	}
	job := m.findLocked(u.JobID)
	if job == nil || job.Status != model.StatusRunning {
		m.mu.Unlock()
		return
	}
	if u.Percent >= job.Percent {
		job.Percent = u.Percent
	}
	job.Speed = u.Speed
	job.ETA = u.ETA
	job.Stage = u.Stage
	if m.registry != nil {
		m.registry.Update(projectEntry(*job))
	}
	m.mu.Unlock()

	m.publish()
}

func (m *Manager) finish(jobID string, seq uint64, result RunResult, runErr error) {
	m.mu.Lock()
	if seq != m.attemptSeq {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.activeID = ""
	if m.activeCancel != nil {
		m.activeCancel()
		m.activeCancel = nil
	}

	job := m.findLocked(jobID)
	if job == nil {
		m.mu.Unlock()
		m.publish()
		return
	}

	switch {
	case result.Cancelled:
		_ = model.TransitionJobStatus(job, model.StatusCancelled)
		job.FinishedAt = m.now()
		m.removeLocked(job.ID)
		m.recordHistoryLocked(*job)
		if m.registry != nil {
			m.registry.Remove(job.ID)
		}

	case runErr == nil:
		_ = model.TransitionJobStatus(job, model.StatusSucceeded)
		job.Percent = 100
		job.Speed = ""
		job.ETA = ""
		job.OutputPath = result.OutputPath
		job.FinishedAt = m.now()
		m.recordHistoryLocked(*job)
		if m.registry != nil {
			m.registry.Complete(job.ID, result.OutputPath)
		}

	case job.RetryCount < m.maxRetries:
		// Automatic retry keeps the job's queue position.
		job.RetryCount++
		_ = model.TransitionJobStatus(job, model.StatusPending)
		job.Percent = 0
		job.Speed = ""
		job.ETA = ""
		if m.registry != nil {
			m.registry.Remove(job.ID)
		}

	default:
		_ = model.TransitionJobStatus(job, model.StatusFailed)
		job.ErrorMessage = runErr.Error()
		job.Speed = ""
		job.ETA = ""
		job.FinishedAt = m.now()
		m.recordHistoryLocked(*job)
		if m.registry != nil {
			m.registry.Fail(job.ID, runErr.Error())
		}
	}

	// A short pause between jobs keeps back-to-back external process
	// starts from stampeding.
	time.AfterFunc(m.advanceDelay, m.advance)
	m.mu.Unlock()

	m.publish()
}

func (m *Manager) advance() {
	m.mu.Lock()
	m.scheduleLocked()
	m.mu.Unlock()
	m.publish()
}

// Cancel stops a running job or withdraws a pending one. It reports
// whether the id named a cancellable job.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	job := m.findLocked(id)
	if job == nil {
		m.mu.Unlock()
		return false
	}

	switch job.Status {
	case model.StatusRunning:
		cancel := m.activeCancel
		m.mu.Unlock()
		// The runner observes the context and finish marks the job
		// cancelled; nothing else to mutate here.
		if cancel != nil {
			cancel()
		}
		return true

	case model.StatusPending:
		_ = model.TransitionJobStatus(job, model.StatusCancelled)
		job.FinishedAt = m.now()
		m.removeLocked(job.ID)
		m.recordHistoryLocked(*job)
		if m.registry != nil {
			m.registry.Remove(job.ID)
		}
		m.mu.Unlock()
		m.publish()
		return true

	default:
		m.mu.Unlock()
		return false
	}
}

// CancelAll cancels every pending job, then the running one.
func (m *Manager) CancelAll() {
	for _, job := range m.Snapshot() {
		if job.Status == model.StatusPending {
			m.Cancel(job.ID)
		}
	}
	if active, ok := m.Active(); ok {
		m.Cancel(active.ID)
	}
}

// Retry requeues a failed job with a fresh retry budget.
func (m *Manager) Retry(id string) error {
	m.mu.Lock()
	job := m.findLocked(id)
	if job == nil {
		m.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	if job.Status != model.StatusFailed {
		m.mu.Unlock()
		return fmt.Errorf("job %s is %s, only failed jobs can be retried", id, job.Status)
	}

	if err := model.TransitionJobStatus(job, model.StatusPending); err != nil {
		m.mu.Unlock()
		return err
	}
	job.RetryCount = 0
	job.Percent = 0
	job.Speed = ""
	job.ETA = ""
	job.ErrorMessage = ""
	job.FinishedAt = time.Time{}
	m.scheduleLocked()
	m.mu.Unlock()

	m.publish()
	return nil
}

// Subscribe registers a snapshot listener and delivers the current
// state immediately. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func([]model.Job)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	snap := m.snapshotLocked()
	m.mu.Unlock()

	fn(snap)
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) Snapshot() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) History() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Job, len(m.hist))
	copy(out, m.hist)
	return out
}

// ClearFinished drops succeeded and failed jobs from the queue view.
// They remain in History.
func (m *Manager) ClearFinished() int {
	m.mu.Lock()
	kept := m.jobs[:0]
	removed := 0
	for _, j := range m.jobs {
		if j.Status.Terminal() {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	m.jobs = kept
	m.mu.Unlock()

	if removed > 0 {
		m.publish()
	}
	return removed
}

func (m *Manager) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	for _, j := range m.jobs {
		if j.Status == model.StatusPending {
			return false
		}
	}
	return true
}

func (m *Manager) Active() (model.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return model.Job{}, false
	}
	job := m.findLocked(m.activeID)
	if job == nil {
		return model.Job{}, false
	}
	return *job, true
}

func (m *Manager) findLocked(id string) *model.Job {
	for _, j := range m.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (m *Manager) removeLocked(id string) {
	for i, j := range m.jobs {
		if j.ID == id {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return
		}
	}
}

func (m *Manager) recordHistoryLocked(job model.Job) {
	m.hist = append([]model.Job{job}, m.hist...)
	if len(m.hist) > historyCap {
		m.hist = m.hist[:historyCap]
	}
}

func (m *Manager) snapshotLocked() []model.Job {
	out := make([]model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	return out
}

func (m *Manager) publish() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	fns := make([]func([]model.Job), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func projectEntry(job model.Job) Entry {
	return Entry{
		ID:        job.ID,
		Kind:      job.Kind,
		Title:     job.Title,
		SourceRef: job.SourceRef,
		Percent:   job.Percent,
		Speed:     job.Speed,
		ETA:       job.ETA,
		Stage:     job.Stage,
		Status:    string(job.Status),
		StartedAt: job.StartedAt,
	}
}
