package stream

import "time"

// Pacer caps the loop rate by sleeping out the rest of a fixed frame
// interval. It does not compensate for slow iterations.
type Pacer struct {
	interval time.Duration
	start    time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewPacer creates a pacer for fps frames per second. fps <= 0 disables
// pacing.
func NewPacer(fps int) *Pacer {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &Pacer{interval: interval, now: time.Now, sleep: time.Sleep}
}

// Interval returns the target iteration duration
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// MarkStart records the start of an iteration
func (p *Pacer) MarkStart() {
	p.start = p.now()
}

// MarkEndAndSleep sleeps for whatever is left of the interval and returns
// the time slept. time.Now carries a monotonic reading, so Sub is immune
// to wall clock steps.
func (p *Pacer) MarkEndAndSleep() time.Duration {
	if p.interval <= 0 {
		return 0
	}
	remaining := p.interval - p.now().Sub(p.start)
	if remaining <= 0 {
		return 0
	}
	p.sleep(remaining)
	return remaining
}
