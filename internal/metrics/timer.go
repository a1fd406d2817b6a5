package metrics

import "time"

// Observer receives a histogram observation.
type Observer interface {
	Observe(float64)
}

// Setter receives a gauge value.
type Setter interface {
	Set(float64)
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Timer measures one scoped operation. Create it before the operation and
// call ObserveDuration in a deferred step so the elapsed time is recorded
// whether or not the operation fails.
type Timer struct {
	now   Clock
	start time.Time
	hist  Observer
	last  Setter
}

// NewTimer starts a timer that records into hist and last. Either may be nil.
func NewTimer(now Clock, hist Observer, last Setter) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, start: now(), hist: hist, last: last}
}

// ObserveDuration records the seconds elapsed since NewTimer and returns
// the duration.
func (t *Timer) ObserveDuration() time.Duration {
	d := t.now().Sub(t.start)
	if d < 0 {
		d = 0
	}
	s := d.Seconds()
	if t.hist != nil {
		t.hist.Observe(s)
	}
	if t.last != nil {
		t.last.Set(s)
	}
	return d
}
