package tool

import (
	"fmt"
	"os/exec"
)

type DependencyReport struct {
	YTDLPFound    bool   `json:"yt_dlp_found"`
	YTDLPPath     string `json:"yt_dlp_path,omitempty"`
	FFmpegFound   bool   `json:"ffmpeg_found"`
	FFmpegPath    string `json:"ffmpeg_path,omitempty"`
	UpscalerFound bool   `json:"upscaler_found"`
	UpscalerPath  string `json:"upscaler_path,omitempty"`
}

func (b Binaries) DependencyStatus() DependencyReport {
	b = b.withDefaults()
	report := DependencyReport{}
	if path, err := exec.LookPath(b.YTDLP); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath(b.FFmpeg); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	if path, err := exec.LookPath(b.Upscaler); err == nil {
		report.UpscalerFound = true
		report.UpscalerPath = path
	}
	return report
}

// CheckDependencies fails only on the binaries every workflow needs.
// The upscaler is optional: enhance jobs report it missing at run time.
func (b Binaries) CheckDependencies() error {
	report := b.DependencyStatus()
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is required for merging and transcoding and was not found on PATH")
	}
	return nil
}
