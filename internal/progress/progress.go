// Package progress renders terminal progress for a sample-generation run. It
// tracks not just a unit count but the mean per-sample signing duration and
// the resulting signing rate, since each unit here is a timed RSA signature
// rather than a generic byte or operation count.
package progress

import (
	"fmt"
	"time"
)

// Bar tracks progress toward a fixed sample total, accumulating the signing
// duration of each completed sample so it can report a running mean and
// throughput alongside the usual percentage/ETA. It throttles its own
// redraws.
type Bar struct {
	total       uint64
	current     uint64
	sumDuration time.Duration
	observed    uint64
	startTime   time.Time
	lastPrint   time.Time
	width       int
}

// NewBar creates a Bar for the given total sample count.
func NewBar(total uint64) *Bar {
	return &Bar{
		total:     total,
		startTime: time.Now(),
		lastPrint: time.Now(),
		width:     50,
	}
}

// Observe records one completed sample's signing duration and advances the
// bar to current, redrawing at most once per 100ms.
func (b *Bar) Observe(current uint64, sampleElapsed time.Duration) {
	b.current = current
	b.sumDuration += sampleElapsed
	b.observed++

	now := time.Now()
	if now.Sub(b.lastPrint) < 100*time.Millisecond && current < b.total {
		return
	}
	b.lastPrint = now
	b.print()
}

// Finish draws the bar at 100% and moves to a fresh line.
func (b *Bar) Finish() {
	b.current = b.total
	b.print()
	fmt.Println()
}

// meanSignDuration is the mean signing duration across all observed
// samples, or zero if none have been observed yet.
func (b *Bar) meanSignDuration() time.Duration {
	if b.observed == 0 {
		return 0
	}
	return b.sumDuration / time.Duration(b.observed)
}

// signRate is the signing throughput implied by meanSignDuration, in
// samples per second.
func (b *Bar) signRate() float64 {
	mean := b.meanSignDuration()
	if mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(mean)
}

func (b *Bar) print() {
	if b.total == 0 {
		return
	}
	percentage := float64(b.current) / float64(b.total) * 100
	filled := int(float64(b.width) * float64(b.current) / float64(b.total))

	elapsed := time.Since(b.startTime)
	var eta time.Duration
	if b.current > 0 {
		eta = time.Duration(float64(elapsed)*(float64(b.total)/float64(b.current)) - float64(elapsed))
	}

	bar := "["
	for i := 0; i < b.width; i++ {
		switch {
		case i < filled:
			bar += "="
		case i == filled && filled < b.width:
			bar += ">"
		default:
			bar += " "
		}
	}
	bar += "]"

	fmt.Printf("\r%s %.1f%% (%d/%d) mean=%v rate=%.0f/s Elapsed: %v ETA: %v",
		bar, percentage, b.current, b.total,
		b.meanSignDuration().Round(time.Microsecond), b.signRate(),
		elapsed.Round(time.Second), eta.Round(time.Second))
}

// EstimateTime projects how long operations will take at opsPerSecond.
func EstimateTime(operations uint64, opsPerSecond float64) time.Duration {
	if opsPerSecond <= 0 {
		return 0
	}
	seconds := float64(operations) / opsPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// FormatDuration renders d at a resolution matching its magnitude.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}
