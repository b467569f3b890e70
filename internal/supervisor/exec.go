package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wignn/media-tools/internal/model"
	"github.com/wignn/media-tools/internal/progress"
	"github.com/wignn/media-tools/internal/queue"
	"github.com/wignn/media-tools/internal/runstore"
	"github.com/wignn/media-tools/internal/tool"
)

// attempt holds per-run resources that must be released exactly once
// no matter how the run ends.
type attempt struct {
	mu        sync.Mutex
	done      bool
	logFile   *os.File
	tmpDir    string
	killTimer *time.Timer
}

func (a *attempt) cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	if a.killTimer != nil {
		a.killTimer.Stop()
		a.killTimer = nil
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
	if a.tmpDir != "" {
		_ = os.RemoveAll(a.tmpDir)
	}
}

func (s *Supervisor) execute(ctx context.Context, job model.Job, spec tool.Command, composer *progress.Composer, emit func(queue.ProgressUpdate)) error {
	if strings.TrimSpace(job.Destination) != "" {
		if err := runstore.Mkdir(job.Destination); err != nil {
			return err
		}
	}

	att := &attempt{tmpDir: s.tmpDir(job.ID)}
	defer att.cleanup()
	if err := runstore.Mkdir(att.tmpDir); err != nil {
		return err
	}
	logFile, err := os.Create(s.logPath(job.ID))
	if err != nil {
		return fmt.Errorf("create job log: %w", err)
	}
	att.logFile = logFile

	cmd := exec.Command(spec.Bin, spec.Args...)
	cmd.Dir = att.tmpDir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", spec.Bin, err)
	}

	// Interrupt first so the tool can flush partial files, then kill
	// after the grace window.
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(os.Interrupt); err != nil {
				_ = cmd.Process.Kill()
				return
			}
			att.mu.Lock()
			if !att.done {
				att.killTimer = time.AfterFunc(s.cfg.KillGrace, func() {
					_ = cmd.Process.Kill()
				})
			}
			att.mu.Unlock()
		case <-stopWatch:
		}
	}()

	var tail strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()

			mu.Lock()
			appendLimited(&tail, line)
			_, _ = io.WriteString(logFile, line+"\n")

			update := queue.ProgressUpdate{JobID: job.ID}
			sample, ok := progress.ParseLine(line)
			if ok {
				update.Percent = composer.Apply(sample)
				update.Speed = sample.Speed
				update.ETA = sample.ETA
				update.Stage = sample.Stage
			}
			mu.Unlock()

			if ok && emit != nil {
				emit(update)
			}
		}
	}

	wg.Add(2)
	go read(stdoutPipe)
	go read(stderrPipe)
	wg.Wait()

	waitErr := cmd.Wait()
	close(stopWatch)
	att.cleanup()

	if waitErr != nil {
		mu.Lock()
		defer mu.Unlock()
		return processError(spec.Bin, waitErr, tail.String())
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(b *strings.Builder, line string) {
	const maxKeep = 8192
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}
