// internal/search/debounce.go
//
// Debounce bookkeeping for the search reconciler. The timer holds no
// goroutine of its own: callers schedule the real delay (the TUI uses
// tea.Tick) and hand the generation back when it fires. Each Reset
// invalidates every earlier firing by advancing the generation; the same
// generation then tags the in-flight request, so one counter answers both
// "did a newer keystroke supersede this firing" and "did a newer request
// supersede this response".

package search

import "time"

// Timer collapses bursts of input into a single live firing.
type Timer struct {
	window time.Duration
	gen    uint64
}

// NewTimer creates a timer with a fixed quiescence window.
func NewTimer(window time.Duration) *Timer {
	if window <= 0 {
		window = 300 * time.Millisecond
	}
	return &Timer{window: window}
}

// Window returns the quiescence window callers must schedule.
func (t *Timer) Window() time.Duration { return t.window }

// Reset arms the timer and returns the generation the eventual firing must
// carry. Any earlier generation is dead from this point on.
func (t *Timer) Reset() uint64 {
	t.gen++
	return t.gen
}

// Cancel invalidates all outstanding firings without arming a new one.
func (t *Timer) Cancel() {
	t.gen++
}

// Live reports whether gen is still the current generation.
func (t *Timer) Live(gen uint64) bool {
	return gen == t.gen
}

// Generation returns the current generation.
func (t *Timer) Generation() uint64 { return t.gen }
