package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/wignn/media-tools/internal/model"
)

func TestRegistryAdd_IsIdempotent(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	e := Entry{ID: "p1", Kind: model.KindDownloadAudio, SourceRef: "https://example.com/a", Percent: 10}
	r.Add(e)

	later := e
	later.Percent = 99
	r.Add(later)

	got, ok := r.ByID("p1")
	if !ok {
		t.Fatalf("entry missing after add")
	}
	if got.Percent != 10 {
		t.Fatalf("second add overwrote entry: percent = %v, want 10", got.Percent)
	}
	if len(r.Active()) != 1 {
		t.Fatalf("active entries = %d, want 1", len(r.Active()))
	}
}

func TestRegistryUpdate_IgnoresUnknownIDs(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.Update(Entry{ID: "ghost", Percent: 50})
	if r.HasActive() {
		t.Fatalf("update of unknown id created an entry")
	}
}

func TestRegistryComplete_RemovesAfterDelay(t *testing.T) {
	r := newRegistryWithDelay(10 * time.Millisecond)
	defer r.Close()

	r.Add(Entry{ID: "p1", Kind: model.KindConvert, SourceRef: "/in/a.mp4"})
	r.Complete("p1", "/out/a.mp3")

	// Completed entries linger so viewers can render the final state.
	got, ok := r.ByID("p1")
	if !ok {
		t.Fatalf("entry removed immediately on complete")
	}
	if got.Status != "completed" || got.Percent != 100 || got.OutputPath != "/out/a.mp3" {
		t.Fatalf("completed entry = %+v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.ByID("p1"); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("completed entry never removed")
}

func TestRegistryFail_RemovesImmediately(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.Add(Entry{ID: "p1", Kind: model.KindEnhance, SourceRef: "/in/photo.png"})
	r.Fail("p1", "exit status 1")

	if _, ok := r.ByID("p1"); ok {
		t.Fatalf("failed entry still active")
	}
	if r.HasActive() {
		t.Fatalf("registry reports active after failure")
	}
}

func TestRegistryHistory_KeepsFinalState(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.Add(Entry{ID: "p1", Kind: model.KindConvert, SourceRef: "/in/a.mp4"})
	r.Update(Entry{ID: "p1", Kind: model.KindConvert, SourceRef: "/in/a.mp4", Percent: 60, Status: "running"})
	r.Complete("p1", "/out/a.mp3")

	r.Add(Entry{ID: "p2", Kind: model.KindEnhance, SourceRef: "/in/photo.png"})
	r.Fail("p2", "exit status 1")

	hist := r.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].ID != "p2" || hist[0].Status != "failed" || hist[0].ErrorMessage != "exit status 1" {
		t.Fatalf("failed history row = %+v", hist[0])
	}
	if hist[1].ID != "p1" || hist[1].Status != "completed" || hist[1].Percent != 100 || hist[1].OutputPath != "/out/a.mp3" {
		t.Fatalf("completed history row = %+v", hist[1])
	}
}

func TestRegistryHistory_IsCapped(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	for i := 0; i < historyCap+20; i++ {
		id := fmt.Sprintf("p%d", i)
		r.Add(Entry{ID: id, Kind: model.KindDownloadAudio, SourceRef: "https://example.com/" + id})
		r.Remove(id)
	}

	hist := r.History()
	if len(hist) != historyCap {
		t.Fatalf("history length = %d, want %d", len(hist), historyCap)
	}
	// Newest first.
	if hist[0].ID != fmt.Sprintf("p%d", historyCap+19) {
		t.Fatalf("history[0] = %s, want newest entry", hist[0].ID)
	}
}

func TestRegistryClose_StopsPendingRemovals(t *testing.T) {
	r := newRegistryWithDelay(time.Hour)
	r.Add(Entry{ID: "p1", Kind: model.KindClip, SourceRef: "https://example.com/c"})
	r.Complete("p1", "/out/c.mp4")
	r.Close()

	if r.HasActive() {
		t.Fatalf("registry active after close")
	}
	// Add after close is ignored.
	r.Add(Entry{ID: "p2"})
	if r.HasActive() {
		t.Fatalf("add after close created entry")
	}
}
