package session

import (
	"sync"
	"time"
)

// ewmaSamples sets how quickly the items/minute estimate reacts to a
// changing throughput: the exponential smoothing factor alpha is derived
// from it so that a rate which has been constant for this many samples
// dominates the estimate.
const ewmaSamples = 5.0

// ewmaAlpha is the smoothing factor for the exponential moving average of
// items/minute: newSample*alpha + oldEstimate*(1-alpha).
const ewmaAlpha = 2.0 / (ewmaSamples + 1.0)

// throughputTracker maintains an EWMA of items/minute from item-completion
// timestamps, used to compute the ETA reported in SystemState.
type throughputTracker struct {
	mu           sync.Mutex
	lastTick     time.Time
	itemsPerMin  float64
	initialized  bool
}

func newThroughputTracker() *throughputTracker {
	return &throughputTracker{lastTick: time.Now()}
}

// RecordItems folds count items completed since the last call into the
// EWMA, using the elapsed wall-clock time to normalize to items/minute.
func (t *throughputTracker) RecordItems(count int) {
	if count <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastTick)
	t.lastTick = now
	if elapsed <= 0 {
		return
	}

	sampleRate := float64(count) / elapsed.Minutes()
	if !t.initialized {
		t.itemsPerMin = sampleRate
		t.initialized = true
		return
	}
	t.itemsPerMin = ewmaAlpha*sampleRate + (1-ewmaAlpha)*t.itemsPerMin
}

// ItemsPerMinute returns the current EWMA throughput estimate.
func (t *throughputTracker) ItemsPerMinute() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.itemsPerMin
}

// ETASeconds estimates the remaining time to process remainingItems at the
// current throughput, or 0 if throughput hasn't been established yet.
func (t *throughputTracker) ETASeconds(remainingItems int) float64 {
	rate := t.ItemsPerMinute()
	if rate <= 0 || remainingItems <= 0 {
		return 0
	}
	return float64(remainingItems) / rate * 60
}
