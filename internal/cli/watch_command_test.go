package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/wignn/media-tools/internal/model"
	"github.com/wignn/media-tools/internal/queue"
)

func TestRenderRecent_ShowsFinishedProcesses(t *testing.T) {
	hist := []queue.Entry{
		{ID: "a", Title: "Late Show", Status: "failed", ErrorMessage: "exit status 1\nfull tail"},
		{ID: "b", Title: "Cool Song", Status: "completed", OutputPath: "/out/cool.mp3"},
		{ID: "c", SourceRef: "https://example.com/v", Status: "running", Percent: 40},
	}

	got := renderRecent(hist)
	if !strings.Contains(got, "recent") {
		t.Fatalf("missing section header:\n%s", got)
	}
	if !strings.Contains(got, "Cool Song -> /out/cool.mp3") {
		t.Fatalf("completed row missing:\n%s", got)
	}
	if !strings.Contains(got, "Late Show: exit status 1") {
		t.Fatalf("failed row missing or carries full error tail:\n%s", got)
	}
	if strings.Contains(got, "example.com/v") {
		t.Fatalf("non-terminal entry rendered:\n%s", got)
	}
}

func TestRenderRecent_EmptyWithoutTerminalEntries(t *testing.T) {
	if got := renderRecent(nil); got != "" {
		t.Fatalf("renderRecent(nil) = %q", got)
	}
	hist := []queue.Entry{{ID: "a", Status: "running"}}
	if got := renderRecent(hist); got != "" {
		t.Fatalf("renderRecent(running only) = %q", got)
	}
}

func TestRenderRecent_CapsRows(t *testing.T) {
	var hist []queue.Entry
	for i := 0; i < 10; i++ {
		hist = append(hist, queue.Entry{ID: string(rune('a' + i)), Title: "t", Status: "completed", OutputPath: "/out/x"})
	}
	got := renderRecent(hist)
	if n := strings.Count(got, "/out/x"); n != 5 {
		t.Fatalf("rendered %d rows, want 5", n)
	}
}

func TestWatchModel_DrainedStatusMessage(t *testing.T) {
	mgr, err := queue.NewManager(queue.Config{
		Runner: queue.RunnerFunc(func(context.Context, model.Job, func(queue.ProgressUpdate)) (queue.RunResult, error) {
			return queue.RunResult{}, nil
		}),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	m := watchModel{manager: mgr, jobsCh: make(chan []model.Job, 1)}
	updated, _ := m.Update(watchJobsMsg([]model.Job{{ID: "a", Status: model.StatusSucceeded}}))
	wm := updated.(watchModel)
	if !wm.drained {
		t.Fatalf("model not drained with idle manager and terminal jobs")
	}
	if wm.status != "all jobs finished, press q to exit" {
		t.Fatalf("status = %q", wm.status)
	}
}

func TestProgressBar_ClampsRange(t *testing.T) {
	if got := progressBar(0); strings.Contains(got, "█") {
		t.Fatalf("0%% bar has filled cells: %q", got)
	}
	if got := progressBar(150); strings.Contains(got, "░") {
		t.Fatalf("overfull bar has empty cells: %q", got)
	}
}
