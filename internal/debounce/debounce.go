// Package debounce coalesces bursts of selection events into one effect per
// settle period.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the settle period for selection changes.
const DefaultDelay = 300 * time.Millisecond

// Debouncer holds at most one pending effect. Every Schedule call bumps a
// generation counter; a timer only runs its effect if its generation is
// still current when it fires.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// New returns a Debouncer. A non-positive delay uses DefaultDelay.
func New(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Delay returns the settle period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Schedule cancels any pending effect and arms effect to run after the
// settle delay. The effect receives its generation so it can re-check
// IsCurrent before applying results.
func (d *Debouncer) Schedule(effect func(gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := gen == d.gen
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			effect(gen)
		}
	})
	return gen
}

// CancelPending drops the pending effect, if any. An effect that already
// started keeps running but is no longer current.
func (d *Debouncer) CancelPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
}

// IsCurrent reports whether gen is the latest scheduled generation.
func (d *Debouncer) IsCurrent(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}

// Pending reports whether an effect is waiting for its timer.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
