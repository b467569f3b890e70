package model

import (
	"strings"
	"time"
)

// JobKind selects which external operation a job invokes.
type JobKind string

const (
	KindDownloadAudio JobKind = "download-audio"
	KindDownloadVideo JobKind = "download-video"
	KindConvert       JobKind = "convert"
	KindClip          JobKind = "clip"
	KindEnhance       JobKind = "enhance"
)

func ParseJobKind(raw string) (JobKind, bool) {
	switch JobKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindDownloadAudio:
		return KindDownloadAudio, true
	case KindDownloadVideo:
		return KindDownloadVideo, true
	case KindConvert:
		return KindConvert, true
	case KindClip:
		return KindClip, true
	case KindEnhance:
		return KindEnhance, true
	default:
		return "", false
	}
}

// FetchesRemote reports whether the job pulls its input from a URL
// (as opposed to operating on a local file).
func (k JobKind) FetchesRemote() bool {
	switch k {
	case KindDownloadAudio, KindDownloadVideo, KindClip:
		return true
	default:
		return false
	}
}

// Job is one requested unit of work tracked through its whole lifecycle.
// The queue manager owns it; snapshots hand out copies.
type Job struct {
	ID          string  `json:"id"`
	SourceRef   string  `json:"source_ref"`
	Kind        JobKind `json:"kind"`
	Destination string  `json:"destination,omitempty"`
	Title       string  `json:"title,omitempty"`

	// Clip jobs only: time range as MM:SS or HH:MM:SS.
	ClipStart string `json:"clip_start,omitempty"`
	ClipEnd   string `json:"clip_end,omitempty"`

	// Download rate limit handed to the downloader, 0 means unlimited.
	RateLimitKiB int `json:"rate_limit_kib,omitempty"`

	Status     JobStatus `json:"status"`
	Percent    float64   `json:"percent"`
	RetryCount int       `json:"retry_count"`

	Speed string `json:"speed,omitempty"`
	ETA   string `json:"eta,omitempty"`
	Stage string `json:"stage,omitempty"`

	OutputPath   string `json:"output_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}
