package tool

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	reForbiddenChars = regexp.MustCompile(`[<>:"/\\|?*&%=]+`)
	reWhitespace     = regexp.MustCompile(`\s+`)
)

// Binaries names the external executables each command kind shells out
// to. Zero-value fields fall back to the PATH defaults.
type Binaries struct {
	YTDLP    string
	FFmpeg   string
	Upscaler string
}

func DefaultBinaries() Binaries {
	return Binaries{
		YTDLP:    "yt-dlp",
		FFmpeg:   "ffmpeg",
		Upscaler: "realesrgan-ncnn-vulkan",
	}
}

func (b Binaries) withDefaults() Binaries {
	def := DefaultBinaries()
	if strings.TrimSpace(b.YTDLP) == "" {
		b.YTDLP = def.YTDLP
	}
	if strings.TrimSpace(b.FFmpeg) == "" {
		b.FFmpeg = def.FFmpeg
	}
	if strings.TrimSpace(b.Upscaler) == "" {
		b.Upscaler = def.Upscaler
	}
	return b
}

// Command is a fully resolved external invocation: the binary, its
// argument vector, and the artifact path the run is expected to
// produce.
type Command struct {
	Bin        string
	Args       []string
	OutputPath string
}

type DownloadOptions struct {
	SourceURL    string
	OutputDir    string
	JobID        string
	Title        string
	RateLimitKiB int
	Now          time.Time
}

type ClipOptions struct {
	DownloadOptions
	Start string
	End   string
}

func (b Binaries) DownloadAudio(opts DownloadOptions) (Command, error) {
	b = b.withDefaults()
	if strings.TrimSpace(opts.SourceURL) == "" {
		return Command{}, fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return Command{}, fmt.Errorf("output directory is required")
	}

	outputPath := filepath.Join(opts.OutputDir, OutputName(opts.Title, "audio", opts.JobID, opts.Now, "mp3"))
	args := []string{
		opts.SourceURL,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"-o", outputPath,
		"--user-agent", browserUserAgent,
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Accept:text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"--no-check-certificates",
		"--prefer-insecure",
		"--force-ipv4",
		"--retries", "3",
		"--fragment-retries", "3",
		"--progress",
		"-v",
		"--limit-rate", formatRateLimitKiB(opts.RateLimitKiB),
		"--no-warnings",
		"--no-abort-on-error",
	}
	return Command{Bin: b.YTDLP, Args: args, OutputPath: outputPath}, nil
}

func (b Binaries) DownloadVideo(opts DownloadOptions) (Command, error) {
	b = b.withDefaults()
	if strings.TrimSpace(opts.SourceURL) == "" {
		return Command{}, fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return Command{}, fmt.Errorf("output directory is required")
	}

	outputPath := filepath.Join(opts.OutputDir, OutputName(opts.Title, "video", opts.JobID, opts.Now, "mp4"))
	args := []string{
		opts.SourceURL,
		"-o", outputPath,
		"-f", "bv[ext=mp4]+ba[ext=m4a]",
		"--merge-output-format", "mp4",
		"--user-agent", browserUserAgent,
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Accept:text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"--no-check-certificates",
		"--prefer-insecure",
		"--force-ipv4",
		"--retries", "3",
		"--fragment-retries", "3",
		"--progress",
		"-v",
		"--limit-rate", formatRateLimitKiB(opts.RateLimitKiB),
		"--no-warnings",
		"--no-abort-on-error",
	}
	return Command{Bin: b.YTDLP, Args: args, OutputPath: outputPath}, nil
}

// Clip downloads only the requested window of the source, delegating
// the seek to ffmpeg as yt-dlp's external downloader. The returned
// duration feeds transcode progress estimation.
func (b Binaries) Clip(opts ClipOptions) (Command, float64, error) {
	b = b.withDefaults()
	if strings.TrimSpace(opts.SourceURL) == "" {
		return Command{}, 0, fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return Command{}, 0, fmt.Errorf("output directory is required")
	}
	startSec, err := TimeToSeconds(opts.Start)
	if err != nil {
		return Command{}, 0, fmt.Errorf("clip start: %w", err)
	}
	endSec, err := TimeToSeconds(opts.End)
	if err != nil {
		return Command{}, 0, fmt.Errorf("clip end: %w", err)
	}
	duration := endSec - startSec
	if duration <= 0 {
		return Command{}, 0, fmt.Errorf("clip end %s must be after start %s", opts.End, opts.Start)
	}

	stamp := formatStamp(opts.Now)
	safeTitle := SanitizeTitle(firstNonEmpty(opts.Title, "clip"))
	name := fmt.Sprintf("%s_clip_%s-%s_%s_%s.mp4",
		safeTitle,
		strings.ReplaceAll(opts.Start, ":", "-"),
		strings.ReplaceAll(opts.End, ":", "-"),
		stamp, opts.JobID,
	)
	outputPath := filepath.Join(opts.OutputDir, name)

	args := []string{
		opts.SourceURL,
		"-o", outputPath,
		"-f", "bestvideo[ext=mp4][height<=1080]+bestaudio[ext=m4a]/best[ext=mp4][height<=1080]/best",
		"--merge-output-format", "mp4",
		"--external-downloader", "ffmpeg",
		"--external-downloader-args",
		fmt.Sprintf("ffmpeg:-ss %d -t %d -c:v libx264 -preset slow -crf 18 -c:a aac -b:a 320k -avoid_negative_ts make_zero", startSec, duration),
		"--user-agent", browserUserAgent,
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Accept:text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"--no-check-certificates",
		"--prefer-insecure",
		"--force-ipv4",
		"--retries", "3",
		"--fragment-retries", "3",
		"--progress",
		"-v",
		"--no-warnings",
		"--no-abort-on-error",
		"--embed-metadata",
		"--write-thumbnail",
		"--no-overwrites",
	}
	return Command{Bin: b.YTDLP, Args: args, OutputPath: outputPath}, float64(duration), nil
}

func (b Binaries) Convert(inputPath, outputDir, jobID string, now time.Time) (Command, error) {
	b = b.withDefaults()
	if strings.TrimSpace(inputPath) == "" {
		return Command{}, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return Command{}, fmt.Errorf("output directory is required")
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, OutputName(base, "audio", jobID, now, "mp3"))
	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "192k",
		"-ar", "44100",
		"-y",
		outputPath,
	}
	return Command{Bin: b.FFmpeg, Args: args, OutputPath: outputPath}, nil
}

func (b Binaries) Enhance(inputPath, outputDir, jobID string, now time.Time) (Command, error) {
	b = b.withDefaults()
	if strings.TrimSpace(inputPath) == "" {
		return Command{}, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return Command{}, fmt.Errorf("output directory is required")
	}

	ext := strings.TrimPrefix(filepath.Ext(inputPath), ".")
	if ext == "" {
		ext = "png"
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, OutputName(base, "enhanced", jobID, now, ext))
	args := []string{
		"-i", inputPath,
		"-o", outputPath,
		"-n", "realesrgan-x4plus",
	}
	return Command{Bin: b.Upscaler, Args: args, OutputPath: outputPath}, nil
}

// OutputName builds the collision-safe artifact filename
// <safeTitle>__<stamp>__<id>.<ext>.
func OutputName(title, fallback, jobID string, now time.Time, ext string) string {
	safeTitle := SanitizeTitle(firstNonEmpty(title, fallback))
	return fmt.Sprintf("%s__%s__%s.%s", safeTitle, formatStamp(now), jobID, ext)
}

func SanitizeTitle(title string) string {
	cleaned := reForbiddenChars.ReplaceAllString(title, "")
	return reWhitespace.ReplaceAllString(cleaned, "-")
}

func TimeToSeconds(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q (expected MM:SS or HH:MM:SS)", raw)
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 2:
		return nums[0]*60 + nums[1], nil
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2], nil
	default:
		return 0, fmt.Errorf("invalid time %q (expected MM:SS or HH:MM:SS)", raw)
	}
}

func formatStamp(now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	return now.UTC().Format("2006-01-02T15-04-05")
}

func formatRateLimitKiB(n int) string {
	if n <= 0 {
		n = 512
	}
	return fmt.Sprintf("%dK", n)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
