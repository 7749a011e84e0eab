package ui

import (
	"fmt"
	"sync"
	"time"
)

const (
	// etaSmoothing weights new ETA estimates against the running average.
	etaSmoothing = 0.3
	// speedSmoothing weights new speed samples against the running average.
	speedSmoothing = 0.2
	// speedSampleInterval is the minimum gap between speed samples.
	speedSampleInterval = 500 * time.Millisecond
	// sparklineCapacity is how many speed samples the chart retains.
	sparklineCapacity = 30
)

// ProgressTracker accumulates progress updates and derives smoothed speed
// and ETA estimates for display. Safe for concurrent use.
type ProgressTracker struct {
	mu sync.Mutex

	stage       Stage
	current     int
	total       int
	currentFile string

	startedAt    time.Time
	lastSample   time.Time
	lastCount    int
	speed        float64 // documents per second, smoothed
	etaSmoothed  float64 // seconds remaining, smoothed
	hasSpeed     bool
	hasETA       bool
	sparkline    *Sparkline
	errorCount   int
	warningCount int
}

// NewProgressTracker returns a tracker ready for Start.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stage:     StageScanning,
		sparkline: NewSparkline(sparklineCapacity),
	}
}

// Start resets the tracker for a new run of total documents.
func (p *ProgressTracker) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.stage = StageScanning
	p.current = 0
	p.total = total
	p.currentFile = ""
	p.startedAt = now
	p.lastSample = now
	p.lastCount = 0
	p.speed = 0
	p.etaSmoothed = 0
	p.hasSpeed = false
	p.hasETA = false
	p.errorCount = 0
	p.warningCount = 0
	p.sparkline.Clear()
}

// Update folds a progress event into the tracker, sampling speed at most
// once per speedSampleInterval.
func (p *ProgressTracker) Update(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Stage != p.stage {
		// New stage, new baseline: stale samples from the previous stage
		// would skew the speed estimate.
		p.stage = ev.Stage
		p.lastSample = time.Now()
		p.lastCount = ev.Current
	}
	p.current = ev.Current
	if ev.Total > 0 {
		p.total = ev.Total
	}
	if ev.CurrentFile != "" {
		p.currentFile = ev.CurrentFile
	}

	now := time.Now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < speedSampleInterval {
		return
	}

	delta := p.current - p.lastCount
	instant := float64(delta) / elapsed.Seconds()
	if p.hasSpeed {
		p.speed = speedSmoothing*instant + (1-speedSmoothing)*p.speed
	} else {
		p.speed = instant
		p.hasSpeed = true
	}
	p.sparkline.Add(instant)
	p.lastSample = now
	p.lastCount = p.current

	if p.speed > 0 && p.total > p.current {
		remaining := float64(p.total-p.current) / p.speed
		if p.hasETA {
			p.etaSmoothed = etaSmoothing*remaining + (1-etaSmoothing)*p.etaSmoothed
		} else {
			p.etaSmoothed = remaining
			p.hasETA = true
		}
	}
}

// RecordError counts a failure or warning for the status line.
func (p *ProgressTracker) RecordError(isWarn bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if isWarn {
		p.warningCount++
	} else {
		p.errorCount++
	}
}

// Stage returns the current pipeline stage.
func (p *ProgressTracker) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// Counts returns current progress as (done, total).
func (p *ProgressTracker) Counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.total
}

// CurrentFile returns the most recently reported document path.
func (p *ProgressTracker) CurrentFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentFile
}

// Percent returns completion as a fraction in [0, 1].
func (p *ProgressTracker) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total <= 0 {
		return 0
	}
	f := float64(p.current) / float64(p.total)
	if f > 1 {
		f = 1
	}
	return f
}

// Speed returns the smoothed documents-per-second rate, and whether enough
// samples exist for it to mean anything.
func (p *ProgressTracker) Speed() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed, p.hasSpeed
}

// ETA returns the smoothed estimate of time remaining.
func (p *ProgressTracker) ETA() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasETA {
		return 0, false
	}
	return time.Duration(p.etaSmoothed * float64(time.Second)), true
}

// Elapsed returns time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		return 0
	}
	return time.Since(p.startedAt)
}

// ErrorCounts returns accumulated (errors, warnings).
func (p *ProgressTracker) ErrorCounts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errorCount, p.warningCount
}

// SpeedChart renders the recent speed samples as a sparkline at most width
// runes wide.
func (p *ProgressTracker) SpeedChart(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sparkline.Render(width)
}

// FormatSpeed renders a documents-per-second rate for display.
func FormatSpeed(docsPerSec float64) string {
	if docsPerSec >= 10 {
		return fmt.Sprintf("%.0f docs/s", docsPerSec)
	}
	return fmt.Sprintf("%.1f docs/s", docsPerSec)
}
