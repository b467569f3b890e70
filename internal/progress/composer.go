package progress

import (
	"math"
	"time"
)

const (
	// A clip job is a download piped into a transcode; the download phase
	// maps to the first 70% of overall progress, processing to the rest.
	downloadPhaseWeight = 0.70

	// When the processing duration is unknown, assume a nominal frame
	// ceiling so the bar still moves instead of sitting at zero.
	fallbackFrameCeiling = 300
)

// Composer folds raw grammar events into a single overall percent for one
// job attempt. The output is clamped to [0,100] and never decreases.
type Composer struct {
	twoPhase bool
	total    time.Duration
	last     float64
}

// NewDownloadComposer passes download percentages through unchanged.
func NewDownloadComposer() *Composer {
	return &Composer{}
}

// NewClipComposer composes a download phase and a processing phase of known
// duration into one 0-100 scale.
func NewClipComposer(total time.Duration) *Composer {
	return &Composer{twoPhase: true, total: total}
}

// NewProcessingComposer maps transcoder events onto 0-100 directly, using
// the frame-ceiling heuristic when total is zero.
func NewProcessingComposer(total time.Duration) *Composer {
	return &Composer{total: total}
}

// Apply folds one event in and returns the overall percent so far.
func (c *Composer) Apply(ev Event) float64 {
	var pct float64
	switch ev.Stage {
	case StageProcessing:
		frac := c.processedFraction(ev)
		if c.twoPhase {
			pct = math.Round(downloadPhaseWeight*100 + frac*(1-downloadPhaseWeight)*100)
		} else {
			pct = math.Round(frac * 100)
		}
	case StageDownloading:
		if c.twoPhase {
			pct = math.Round(math.Min(ev.Percent*downloadPhaseWeight, downloadPhaseWeight*100))
		} else {
			pct = ev.Percent
		}
	default:
		pct = ev.Percent
	}

	pct = math.Min(math.Max(pct, 0), 100)
	if pct < c.last {
		return c.last
	}
	c.last = pct
	return pct
}

func (c *Composer) processedFraction(ev Event) float64 {
	var frac float64
	if c.total > 0 {
		frac = ev.OutTime.Seconds() / c.total.Seconds()
	} else {
		frac = float64(ev.Frame) / fallbackFrameCeiling
	}
	return math.Min(frac, 1)
}
