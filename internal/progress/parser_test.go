package progress

import (
	"testing"
	"time"
)

func TestParseLine_DownloadGrammar(t *testing.T) {
	ev, ok := ParseLine("[download]  45.2% of 10MiB at 500KiB/s ETA 00:30")
	if !ok {
		t.Fatalf("expected download line to match")
	}
	if ev.Percent != 45.2 {
		t.Fatalf("percent = %v, want 45.2", ev.Percent)
	}
	if ev.Speed != "500KiB/s" {
		t.Fatalf("speed = %q, want 500KiB/s", ev.Speed)
	}
	if ev.ETA != "00:30" {
		t.Fatalf("eta = %q, want 00:30", ev.ETA)
	}
	if ev.Stage != StageDownloading {
		t.Fatalf("stage = %q, want %q", ev.Stage, StageDownloading)
	}
}

func TestParseLine_DownloadWithoutSpeedOrETA(t *testing.T) {
	ev, ok := ParseLine("[download] 100% of 10.00MiB in 00:00:12")
	if !ok {
		t.Fatalf("expected completed download line to match")
	}
	if ev.Percent != 100 {
		t.Fatalf("percent = %v, want 100", ev.Percent)
	}
	if ev.ETA != "" {
		t.Fatalf("eta = %q, want empty", ev.ETA)
	}
}

func TestParseLine_TranscodeGrammar(t *testing.T) {
	line := "frame=  120 fps= 30 q=28.0 size=     512KiB time=00:00:04.00 bitrate=1048.6kbits/s speed=1.21x"
	ev, ok := ParseLine(line)
	if !ok {
		t.Fatalf("expected transcode line to match")
	}
	if ev.Frame != 120 {
		t.Fatalf("frame = %d, want 120", ev.Frame)
	}
	if ev.OutTime != 4*time.Second {
		t.Fatalf("out time = %v, want 4s", ev.OutTime)
	}
	if ev.Speed != "1.21x" {
		t.Fatalf("speed = %q, want 1.21x", ev.Speed)
	}
	if ev.Stage != StageProcessing {
		t.Fatalf("stage = %q, want %q", ev.Stage, StageProcessing)
	}
}

func TestParseLine_BarePercent(t *testing.T) {
	cases := []struct {
		line string
		want float64
	}{
		{"37.50%", 37.5},
		{"37,50%", 37.5},
		{"  0% ", 0},
		{"100%", 100},
	}
	for _, tc := range cases {
		ev, ok := ParseLine(tc.line)
		if !ok {
			t.Fatalf("expected %q to match bare percent grammar", tc.line)
		}
		if ev.Percent != tc.want {
			t.Fatalf("percent for %q = %v, want %v", tc.line, ev.Percent, tc.want)
		}
		if ev.Stage != StageEnhancing {
			t.Fatalf("stage = %q, want %q", ev.Stage, StageEnhancing)
		}
	}
}

func TestParseLine_NoMatchIsNotAnError(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"[youtube] abc123: Downloading webpage",
		"Deleting original file video.f137.mp4",
		"[download] Destination: out.mp4",
		"frame garbage without fields",
		"50% off sale", // percent not alone on the line
	}
	for _, line := range lines {
		if ev, ok := ParseLine(line); ok {
			t.Fatalf("expected no event for %q, got %+v", line, ev)
		}
	}
}

func TestParse_ChunkWithMultipleLines(t *testing.T) {
	chunk := "[download] Destination: out.mp4\r\n[download]  10.0% of 5MiB at 1.2MiB/s ETA 00:40\r[download]  12.5% of 5MiB at 1.3MiB/s ETA 00:35\n"
	ev, ok := Parse(chunk)
	if !ok {
		t.Fatalf("expected chunk to yield an event")
	}
	if ev.Percent != 12.5 {
		t.Fatalf("percent = %v, want 12.5 (last matching line wins)", ev.Percent)
	}
}

func TestParse_InterleavedGrammars(t *testing.T) {
	// A clip job pipes the downloader through the transcoder; both grammars
	// appear in one stream and each must keep matching.
	down, ok := Parse("[download]  50.0% of 8MiB at 900KiB/s ETA 00:10")
	if !ok || down.Stage != StageDownloading {
		t.Fatalf("download grammar no longer matches: %+v ok=%v", down, ok)
	}
	proc, ok := Parse("frame=  150 fps= 25 q=28.0 size=256KiB time=00:00:05.00 bitrate=419.4kbits/s speed=0.98x")
	if !ok || proc.Stage != StageProcessing {
		t.Fatalf("transcode grammar no longer matches: %+v ok=%v", proc, ok)
	}
}
