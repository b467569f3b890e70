package tool

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "forbidden characters stripped", in: `My <Great> "Video": 50% off?`, want: "My-Great-Video-50-off"},
		{name: "whitespace collapsed", in: "a   b\tc", want: "a-b-c"},
		{name: "plain title unchanged", in: "plain-title", want: "plain-title"},
		{name: "slashes removed", in: "a/b\\c", want: "abc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeTitle(tc.in); got != tc.want {
				t.Fatalf("SanitizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTimeToSeconds(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:30", want: 30},
		{in: "01:05", want: 65},
		{in: "01:00:00", want: 3600},
		{in: "1:02:03", want: 3723},
		{in: "noon", wantErr: true},
		{in: "10", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := TimeToSeconds(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("TimeToSeconds(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("TimeToSeconds(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestOutputName_Shape(t *testing.T) {
	got := OutputName("Cool Song", "audio", "job-1", testNow, "mp3")
	want := "Cool-Song__2026-03-01T12-30-45__job-1.mp3"
	if got != want {
		t.Fatalf("OutputName = %q, want %q", got, want)
	}

	// Missing title falls back to a kind label.
	got = OutputName("", "audio", "job-2", testNow, "mp3")
	if !strings.HasPrefix(got, "audio__") {
		t.Fatalf("fallback name = %q, want audio__ prefix", got)
	}
}

func TestDownloadAudio_Args(t *testing.T) {
	cmd, err := Binaries{}.DownloadAudio(DownloadOptions{
		SourceURL:    "https://example.com/watch?v=abc",
		OutputDir:    "/out",
		JobID:        "j1",
		Title:        "Mix",
		RateLimitKiB: 256,
		Now:          testNow,
	})
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	if cmd.Bin != "yt-dlp" {
		t.Fatalf("bin = %q, want yt-dlp", cmd.Bin)
	}
	joined := strings.Join(cmd.Args, " ")
	for _, want := range []string{"-x", "--audio-format mp3", "--limit-rate 256K", "--retries 3", "--fragment-retries 3"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if filepath.Ext(cmd.OutputPath) != ".mp3" {
		t.Fatalf("output path %q, want .mp3 extension", cmd.OutputPath)
	}
}

func TestDownloadVideo_DefaultsRateLimit(t *testing.T) {
	cmd, err := Binaries{}.DownloadVideo(DownloadOptions{
		SourceURL: "https://example.com/watch?v=abc",
		OutputDir: "/out",
		JobID:     "j2",
		Now:       testNow,
	})
	if err != nil {
		t.Fatalf("DownloadVideo: %v", err)
	}
	joined := strings.Join(cmd.Args, " ")
	if !strings.Contains(joined, "--limit-rate 512K") {
		t.Fatalf("args missing default rate limit: %s", joined)
	}
	if !strings.Contains(joined, "-f bv[ext=mp4]+ba[ext=m4a]") {
		t.Fatalf("args missing format selector: %s", joined)
	}
}

func TestClip_BuildsSeekArgsAndDuration(t *testing.T) {
	cmd, duration, err := Binaries{}.Clip(ClipOptions{
		DownloadOptions: DownloadOptions{
			SourceURL: "https://example.com/watch?v=abc",
			OutputDir: "/out",
			JobID:     "j3",
			Title:     "Talk",
			Now:       testNow,
		},
		Start: "00:10",
		End:   "00:40",
	})
	if err != nil {
		t.Fatalf("Clip: %v", err)
	}
	if duration != 30 {
		t.Fatalf("duration = %v, want 30", duration)
	}
	joined := strings.Join(cmd.Args, " ")
	if !strings.Contains(joined, "--external-downloader ffmpeg") {
		t.Fatalf("args missing external downloader: %s", joined)
	}
	if !strings.Contains(joined, "-ss 10 -t 30") {
		t.Fatalf("args missing seek window: %s", joined)
	}
	if !strings.Contains(filepath.Base(cmd.OutputPath), "_clip_00-10-00-40_") {
		t.Fatalf("output name missing clip window: %s", cmd.OutputPath)
	}
}

func TestClip_RejectsInvertedWindow(t *testing.T) {
	_, _, err := Binaries{}.Clip(ClipOptions{
		DownloadOptions: DownloadOptions{
			SourceURL: "https://example.com/v",
			OutputDir: "/out",
			JobID:     "j4",
			Now:       testNow,
		},
		Start: "00:40",
		End:   "00:10",
	})
	if err == nil {
		t.Fatalf("expected error for inverted clip window")
	}
}

func TestConvert_Args(t *testing.T) {
	cmd, err := Binaries{}.Convert("/in/video file.mp4", "/out", "j5", testNow)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if cmd.Bin != "ffmpeg" {
		t.Fatalf("bin = %q, want ffmpeg", cmd.Bin)
	}
	joined := strings.Join(cmd.Args, " ")
	for _, want := range []string{"-vn", "-acodec libmp3lame", "-ab 192k", "-ar 44100", "-y"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if filepath.Ext(cmd.OutputPath) != ".mp3" {
		t.Fatalf("output path %q, want .mp3 extension", cmd.OutputPath)
	}
}

func TestEnhance_KeepsInputExtension(t *testing.T) {
	cmd, err := Binaries{}.Enhance("/in/photo.png", "/out", "j6", testNow)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if cmd.Bin != "realesrgan-ncnn-vulkan" {
		t.Fatalf("bin = %q, want realesrgan-ncnn-vulkan", cmd.Bin)
	}
	if filepath.Ext(cmd.OutputPath) != ".png" {
		t.Fatalf("output path %q, want .png extension", cmd.OutputPath)
	}
}
