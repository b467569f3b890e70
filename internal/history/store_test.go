package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestAppendThenReadAll_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{ID: "a", SourceRef: "https://example.com/1", Title: "first", Kind: "download-audio", OutputPath: "/out/first.mp3", SizeBytes: 4096, DownloadedAt: base},
		{ID: "b", SourceRef: "https://example.com/2", Title: "second", Kind: "download-video", OutputPath: "/out/second.mp4", SizeBytes: 8192, DownloadedAt: base.Add(time.Minute)},
		{ID: "c", SourceRef: "https://example.com/3", Title: "third", Kind: "clip", OutputPath: "/out/third.mp4", SizeBytes: 2048, DownloadedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", rec.ID, err)
		}
	}

	got, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	wantOrder := []string{"c", "b", "a"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("record %d id = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].Title != "third" || got[0].SizeBytes != 2048 {
		t.Fatalf("record fields not preserved: %+v", got[0])
	}
}

func TestClear_RemovesAllRecords(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"x", "y"} {
		rec := Record{
			ID: id, SourceRef: "https://example.com/" + id, Title: id,
			Kind: "download-audio", OutputPath: "/out/" + id + ".mp3",
			SizeBytes:    1024,
			DownloadedAt: time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	n, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("cleared %d rows, want 2", n)
	}

	got, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read after clear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records after clear, want 0", len(got))
	}
}
