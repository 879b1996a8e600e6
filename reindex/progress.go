package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how many records have been indexed.
type ProgressTracker struct {
	mu             sync.Mutex
	writer         io.Writer
	total          int
	done           int
	reportInterval int
	lastReported   int
	startTime      time.Time
	running        bool
}

// NewProgressTracker creates a tracker expecting total records and
// reporting every reportInterval of them.
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.running = true
	p.done = 0
	p.lastReported = 0
}

// Update records that done records have been indexed so far.
// Its signature matches the progress callback of storage.Repository.Rebuild.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.done = min(done, p.total)
	if p.done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.done
	}
}

// Done returns the last recorded count.
func (p *ProgressTracker) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish prints the final count followed by a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startTime.IsZero() {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f records/s",
		p.done, p.total, percentage, rate)
}
