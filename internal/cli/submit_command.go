package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wignn/media-tools/internal/model"
	"github.com/wignn/media-tools/internal/queue"
	"github.com/wignn/media-tools/internal/settings"
)

type jobFlags struct {
	kind     *string
	dest     *string
	title    *string
	start    *string
	end      *string
	limit    *int
	stateDir *string
}

func bindJobFlags(fs *flag.FlagSet) *jobFlags {
	return &jobFlags{
		kind:     fs.String("kind", string(model.KindDownloadAudio), "job kind: download-audio|download-video|clip|convert|enhance"),
		dest:     fs.String("dest", "", "output directory (default: configured download dir)"),
		title:    fs.String("title", "", "override the probed title used in output names"),
		start:    fs.String("start", "", "clip start time (MM:SS or HH:MM:SS)"),
		end:      fs.String("end", "", "clip end time (MM:SS or HH:MM:SS)"),
		limit:    fs.Int("limit", 0, "download rate limit in KiB/s (default: configured limit)"),
		stateDir: fs.String("state-dir", "", "state directory (default: user config dir)"),
	}
}

func (f *jobFlags) specs(sources []string, cfg settings.Settings) ([]queue.Spec, error) {
	kind, ok := model.ParseJobKind(*f.kind)
	if !ok {
		return nil, fmt.Errorf("unknown job kind %q", *f.kind)
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one source (URL or file path) is required")
	}
	if kind == model.KindClip && (strings.TrimSpace(*f.start) == "" || strings.TrimSpace(*f.end) == "") {
		return nil, errors.New("clip jobs require --start and --end")
	}

	dest := strings.TrimSpace(*f.dest)
	if dest == "" {
		dest = cfg.DownloadDir
	}
	// Job commands run with their cwd inside the state dir, so relative
	// paths from the invoker's shell must be pinned down here.
	dest, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	limit := *f.limit
	if limit <= 0 {
		limit = cfg.RateLimitKiB
	}

	specs := make([]queue.Spec, 0, len(sources))
	for _, src := range sources {
		ref := strings.TrimSpace(src)
		if !kind.FetchesRemote() {
			ref, err = filepath.Abs(ref)
			if err != nil {
				return nil, fmt.Errorf("resolve source %q: %w", src, err)
			}
		}
		specs = append(specs, queue.Spec{
			SourceRef:    ref,
			Kind:         kind,
			Destination:  dest,
			Title:        strings.TrimSpace(*f.title),
			ClipStart:    strings.TrimSpace(*f.start),
			ClipEnd:      strings.TrimSpace(*f.end),
			RateLimitKiB: limit,
		})
	}
	return specs, nil
}

type jobReport struct {
	ID           string  `json:"id"`
	SourceRef    string  `json:"source_ref"`
	Kind         string  `json:"kind"`
	Status       string  `json:"status"`
	Percent      float64 `json:"percent"`
	RetryCount   int     `json:"retry_count"`
	OutputPath   string  `json:"output_path,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	flags := bindJobFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := openSession(*flags.stateDir)
	if err != nil {
		return err
	}
	defer sess.Close()

	specs, err := flags.specs(fs.Args(), sess.Settings)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		id, err := sess.Manager.Submit(spec)
		if err != nil {
			if errors.Is(err, queue.ErrDuplicateSource) {
				fmt.Fprintf(os.Stderr, "skipped duplicate source: %s\n", spec.SourceRef)
				continue
			}
			return err
		}
		ids = append(ids, id)
		if !*jsonOut {
			fmt.Printf("queued %s %s (%s)\n", spec.Kind, spec.SourceRef, shortID(id))
		}
	}
	if len(ids) == 0 {
		return errors.New("nothing queued")
	}

	if !*jsonOut {
		unsubscribe := sess.Manager.Subscribe(statusEcho())
		defer unsubscribe()
	}

	if err := drainQueue(sess.Manager); err != nil {
		return err
	}

	reports := collectReports(sess.Manager, ids)
	if *jsonOut {
		return printJSON(map[string]any{"jobs": reports})
	}

	failed := 0
	for _, r := range reports {
		switch r.Status {
		case string(model.StatusSucceeded):
			fmt.Printf("done  %s -> %s\n", shortID(r.ID), r.OutputPath)
		case string(model.StatusFailed):
			failed++
			fmt.Printf("fail  %s: %s\n", shortID(r.ID), firstLine(r.ErrorMessage))
		case string(model.StatusCancelled):
			fmt.Printf("stop  %s cancelled\n", shortID(r.ID))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(reports))
	}
	return nil
}

// drainQueue blocks until every queued job reaches a terminal state.
// Ctrl-C cancels all jobs and keeps waiting for the queue to settle.
func drainQueue(m *queue.Manager) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		select {
		case <-done:
			fmt.Fprintln(os.Stderr, "interrupt received, cancelling jobs...")
			m.CancelAll()
			done = nil
		case <-ticker.C:
			if m.Idle() {
				return nil
			}
		}
	}
}

// statusEcho prints one line per job status transition.
func statusEcho() func([]model.Job) {
	var mu sync.Mutex
	last := map[string]model.JobStatus{}
	return func(jobs []model.Job) {
		mu.Lock()
		defer mu.Unlock()
		for _, j := range jobs {
			if last[j.ID] == j.Status {
				continue
			}
			last[j.ID] = j.Status
			if j.Status == model.StatusRunning {
				label := j.Title
				if label == "" {
					label = j.SourceRef
				}
				if j.RetryCount > 0 {
					fmt.Printf("retry %s (attempt %d) %s\n", shortID(j.ID), j.RetryCount+1, label)
				} else {
					fmt.Printf("start %s %s\n", shortID(j.ID), label)
				}
			}
		}
	}
}

func collectReports(m *queue.Manager, ids []string) []jobReport {
	byID := map[string]model.Job{}
	for _, j := range m.History() {
		byID[j.ID] = j
	}
	for _, j := range m.Snapshot() {
		byID[j.ID] = j
	}

	reports := make([]jobReport, 0, len(ids))
	for _, id := range ids {
		j, ok := byID[id]
		if !ok {
			continue
		}
		reports = append(reports, jobReport{
			ID:           j.ID,
			SourceRef:    j.SourceRef,
			Kind:         string(j.Kind),
			Status:       string(j.Status),
			Percent:      j.Percent,
			RetryCount:   j.RetryCount,
			OutputPath:   j.OutputPath,
			ErrorMessage: j.ErrorMessage,
		})
	}
	return reports
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
