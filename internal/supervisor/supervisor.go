package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/wignn/media-tools/internal/history"
	"github.com/wignn/media-tools/internal/model"
	"github.com/wignn/media-tools/internal/progress"
	"github.com/wignn/media-tools/internal/queue"
	"github.com/wignn/media-tools/internal/runstore"
	"github.com/wignn/media-tools/internal/tool"
)

const (
	defaultEnhanceTimeout = 10 * time.Minute
	defaultKillGrace      = 100 * time.Millisecond
)

type Config struct {
	Binaries tool.Binaries
	StateDir string
	// History is optional; when set, successful downloads are recorded.
	History        *history.Store
	EnhanceTimeout time.Duration
	KillGrace      time.Duration
	Now            func() time.Time
}

// Supervisor runs one external process per job attempt: it builds the
// command for the job's kind, streams tool output into progress
// updates and a per-job log, and enforces cancellation and timeouts.
type Supervisor struct {
	cfg Config
}

func New(cfg Config) (*Supervisor, error) {
	if strings.TrimSpace(cfg.StateDir) == "" {
		return nil, fmt.Errorf("supervisor requires a state directory")
	}
	if cfg.EnhanceTimeout <= 0 {
		cfg.EnhanceTimeout = defaultEnhanceTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := runstore.Mkdir(filepath.Join(cfg.StateDir, "logs")); err != nil {
		return nil, err
	}
	if err := runstore.Mkdir(filepath.Join(cfg.StateDir, "tmp")); err != nil {
		return nil, err
	}
	return &Supervisor{cfg: cfg}, nil
}

// Run executes one attempt of job. A context cancellation interrupts
// the process and reports a cancelled, not failed, result.
func (s *Supervisor) Run(ctx context.Context, job model.Job, emit func(queue.ProgressUpdate)) (queue.RunResult, error) {
	cmdSpec, composer, err := s.plan(ctx, &job)
	if err != nil {
		return queue.RunResult{}, err
	}

	runCtx := ctx
	if job.Kind == model.KindEnhance {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.EnhanceTimeout)
		defer cancel()
	}

	runErr := s.execute(runCtx, job, cmdSpec, composer, emit)

	if ctx.Err() != nil {
		return queue.RunResult{Cancelled: true}, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return queue.RunResult{}, fmt.Errorf("%s timed out after %s", job.Kind, s.cfg.EnhanceTimeout)
	}

	if !runSucceeded(job.Kind, runErr, cmdSpec.OutputPath) {
		if runErr == nil {
			runErr = fmt.Errorf("%s produced no usable output at %s", job.Kind, cmdSpec.OutputPath)
		}
		return queue.RunResult{}, runErr
	}

	s.recordHistory(ctx, job, cmdSpec.OutputPath)
	return queue.RunResult{OutputPath: cmdSpec.OutputPath}, nil
}

// runSucceeded applies the leniency policy: downloaders often exit
// non-zero on post-processing noise after the artifact is already
// complete, so remote fetches accept a valid artifact regardless of
// exit code. Local transforms must exit cleanly.
func runSucceeded(kind model.JobKind, runErr error, outputPath string) bool {
	if kind.FetchesRemote() {
		return runErr == nil || OutputArtifactValid(outputPath)
	}
	if kind == model.KindEnhance {
		return runErr == nil && OutputArtifactValid(outputPath)
	}
	return runErr == nil
}

// plan resolves the job into a concrete command and the progress
// composer matching its output grammar.
func (s *Supervisor) plan(ctx context.Context, job *model.Job) (tool.Command, *progress.Composer, error) {
	now := s.cfg.Now()

	switch job.Kind {
	case model.KindDownloadAudio:
		s.fillTitle(ctx, job, "audio")
		cmd, err := s.cfg.Binaries.DownloadAudio(tool.DownloadOptions{
			SourceURL:    job.SourceRef,
			OutputDir:    job.Destination,
			JobID:        job.ID,
			Title:        job.Title,
			RateLimitKiB: job.RateLimitKiB,
			Now:          now,
		})
		if err != nil {
			return tool.Command{}, nil, err
		}
		return cmd, progress.NewDownloadComposer(), nil

	case model.KindDownloadVideo:
		s.fillTitle(ctx, job, "video")
		cmd, err := s.cfg.Binaries.DownloadVideo(tool.DownloadOptions{
			SourceURL:    job.SourceRef,
			OutputDir:    job.Destination,
			JobID:        job.ID,
			Title:        job.Title,
			RateLimitKiB: job.RateLimitKiB,
			Now:          now,
		})
		if err != nil {
			return tool.Command{}, nil, err
		}
		return cmd, progress.NewDownloadComposer(), nil

	case model.KindClip:
		s.fillTitle(ctx, job, "clip")
		cmd, duration, err := s.cfg.Binaries.Clip(tool.ClipOptions{
			DownloadOptions: tool.DownloadOptions{
				SourceURL: job.SourceRef,
				OutputDir: job.Destination,
				JobID:     job.ID,
				Title:     job.Title,
				Now:       now,
			},
			Start: job.ClipStart,
			End:   job.ClipEnd,
		})
		if err != nil {
			return tool.Command{}, nil, err
		}
		return cmd, progress.NewClipComposer(time.Duration(duration * float64(time.Second))), nil

	case model.KindConvert:
		cmd, err := s.cfg.Binaries.Convert(job.SourceRef, job.Destination, job.ID, now)
		if err != nil {
			return tool.Command{}, nil, err
		}
		return cmd, progress.NewProcessingComposer(0), nil

	case model.KindEnhance:
		cmd, err := s.cfg.Binaries.Enhance(job.SourceRef, job.Destination, job.ID, now)
		if err != nil {
			return tool.Command{}, nil, err
		}
		return cmd, progress.NewProcessingComposer(0), nil

	default:
		return tool.Command{}, nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (s *Supervisor) fillTitle(ctx context.Context, job *model.Job, fallback string) {
	if strings.TrimSpace(job.Title) != "" {
		return
	}
	title, err := s.cfg.Binaries.VideoTitle(ctx, job.SourceRef)
	if err != nil {
		job.Title = fallback
		return
	}
	job.Title = title
}

func (s *Supervisor) recordHistory(ctx context.Context, job model.Job, outputPath string) {
	if s.cfg.History == nil || !job.Kind.FetchesRemote() {
		return
	}
	var size int64
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}
	_ = s.cfg.History.Append(ctx, history.Record{
		ID:           job.ID,
		SourceRef:    job.SourceRef,
		Title:        job.Title,
		Kind:         string(job.Kind),
		OutputPath:   outputPath,
		SizeBytes:    size,
		DownloadedAt: s.cfg.Now(),
	})
}

func (s *Supervisor) logPath(jobID string) string {
	return filepath.Join(s.cfg.StateDir, "logs", jobID+".log")
}

func (s *Supervisor) tmpDir(jobID string) string {
	return filepath.Join(s.cfg.StateDir, "tmp", jobID)
}

var _ queue.Runner = (*Supervisor)(nil)

// processError wraps a non-zero exit with the bounded output tail so
// failures carry the tool's own words.
func processError(bin string, waitErr error, tail string) error {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return fmt.Errorf("%s failed: %w\n%s", bin, waitErr, strings.TrimSpace(tail))
	}
	return fmt.Errorf("%s failed: %w", bin, waitErr)
}
