package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Stage labels attached to parsed events. A clip job sees "downloading"
// followed by "processing" in the same stream.
const (
	StageDownloading = "downloading"
	StageProcessing  = "processing"
	StageEnhancing   = "enhancing"
)

// Event is one structured progress report extracted from a raw output line.
// Percent is the raw value the grammar carried; composition across phases
// happens in Composer, not here.
type Event struct {
	Percent float64
	Speed   string
	ETA     string
	Stage   string

	// Transcoder grammar only.
	Frame   int
	OutTime time.Duration
}

var (
	// yt-dlp: "[download]  45.2% of 10MiB at 500KiB/s ETA 00:30"
	reDownloadPct = regexp.MustCompile(`\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed       = regexp.MustCompile(`\bat\s+([^\s]+)`)
	reETA         = regexp.MustCompile(`\bETA\s+([0-9:]+)`)

	// ffmpeg: "frame=  120 fps= 30 q=28.0 size=512KiB time=00:00:04.00 bitrate=1048.6kbits/s speed=1.2x"
	reFrame   = regexp.MustCompile(`\bframe=\s*([0-9]+)`)
	reOutTime = regexp.MustCompile(`\btime=\s*([0-9]{2}:[0-9]{2}:[0-9]{2}(?:\.[0-9]+)?)`)
	reFFSpeed = regexp.MustCompile(`\bspeed=\s*([0-9.]+x)`)

	// upscaler: a bare percentage on its own line, e.g. "37.50%" or "37,50%"
	reBarePct = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)%$`)
)

// ParseLine turns one output line into at most one progress event.
// Lines matching no known grammar return ok=false; that is not an error.
func ParseLine(line string) (Event, bool) {
	l := strings.TrimSpace(line)
	if l == "" {
		return Event{}, false
	}

	if m := reDownloadPct.FindStringSubmatch(l); len(m) > 1 {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Event{}, false
		}
		ev := Event{Percent: pct, Stage: StageDownloading}
		if sm := reSpeed.FindStringSubmatch(l); len(sm) > 1 {
			ev.Speed = sm[1]
		}
		if em := reETA.FindStringSubmatch(l); len(em) > 1 {
			ev.ETA = em[1]
		}
		return ev, true
	}

	if fm := reFrame.FindStringSubmatch(l); len(fm) > 1 {
		tm := reOutTime.FindStringSubmatch(l)
		if len(tm) < 2 {
			return Event{}, false
		}
		frame, err := strconv.Atoi(fm[1])
		if err != nil {
			return Event{}, false
		}
		out, err := parseFFTime(tm[1])
		if err != nil {
			return Event{}, false
		}
		ev := Event{Percent: -1, Stage: StageProcessing, Frame: frame, OutTime: out}
		if sm := reFFSpeed.FindStringSubmatch(l); len(sm) > 1 {
			ev.Speed = sm[1]
		}
		return ev, true
	}

	if m := reBarePct.FindStringSubmatch(l); len(m) > 1 {
		pct, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return Event{}, false
		}
		return Event{Percent: pct, Stage: StageEnhancing}, true
	}

	return Event{}, false
}

// Parse turns a raw output chunk, possibly spanning several lines, into at
// most one event: the last line that matches any grammar wins.
func Parse(chunk string) (Event, bool) {
	var (
		last  Event
		found bool
	)
	for _, line := range splitLines(chunk) {
		if ev, ok := ParseLine(line); ok {
			last = ev
			found = true
		}
	}
	return last, found
}

func splitLines(chunk string) []string {
	return strings.FieldsFunc(chunk, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
}

func parseFFTime(raw string) (time.Duration, error) {
	parts := strings.SplitN(raw, ":", 3)
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	total := float64(hours*3600+minutes*60) + seconds
	return time.Duration(total * float64(time.Second)), nil
}
