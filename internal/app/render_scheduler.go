package app

import "time"

// renderScheduler rate-limits transcript re-renders while a stream is
// hot. A request landing inside the throttle window is remembered and
// released on a later tick once the window has passed, so the final
// state of a burst always reaches the screen.
type renderScheduler struct {
	minInterval  time.Duration
	lastRendered time.Time
	pending      bool
}

func newRenderScheduler(minInterval time.Duration) *renderScheduler {
	if minInterval < 0 {
		minInterval = 0
	}
	return &renderScheduler{minInterval: minInterval}
}

// Request asks to render now. False means the request was deferred.
func (s *renderScheduler) Request(now time.Time) bool {
	if s == nil || s.minInterval <= 0 || s.ready(now) {
		return true
	}
	s.pending = true
	return false
}

// Due reports whether a deferred request can be served now.
func (s *renderScheduler) Due(now time.Time) bool {
	if s == nil || !s.pending {
		return false
	}
	return s.minInterval <= 0 || s.ready(now)
}

func (s *renderScheduler) MarkRendered(now time.Time) {
	if s == nil {
		return
	}
	if now.IsZero() {
		now = time.Now()
	}
	s.pending = false
	s.lastRendered = now
}

func (s *renderScheduler) ready(now time.Time) bool {
	if now.IsZero() {
		now = time.Now()
	}
	if s.lastRendered.IsZero() {
		return true
	}
	return now.Sub(s.lastRendered) >= s.minInterval
}
