package render

import "time"

// Throttle limits redraws to a target rate. A tick is allowed when at least
// 1/rate has elapsed since the last allowed tick; the first tick is always
// allowed.
type Throttle struct {
	last    time.Time
	started bool
}

func (t *Throttle) Allow(now time.Time, rate float64) bool {
	if rate <= 0 {
		return false
	}
	if t.started && now.Sub(t.last) < time.Duration(float64(time.Second)/rate) {
		return false
	}
	t.last = now
	t.started = true
	return true
}

func (t *Throttle) Reset() { *t = Throttle{} }
