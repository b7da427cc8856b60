package snowflake

import "time"

// Clock reports wall-clock time in Unix milliseconds.
//
// The generator reads the clock once per ID and repeatedly while waiting for
// the next millisecond. Tests substitute a fake to drive rollback and
// sequence-exhaustion paths deterministically.
type Clock interface {
	NowMillis() int64
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() int64

// NowMillis calls f.
func (f ClockFunc) NowMillis() int64 { return f() }

// systemClock derives wall time from a monotonic reference captured at
// construction, so NTP slews after start do not move it backwards.
type systemClock struct {
	start time.Time
}

// SystemClock returns a Clock backed by time.Now with monotonic protection.
func SystemClock() Clock {
	return systemClock{start: time.Now()}
}

func (c systemClock) NowMillis() int64 {
	return c.start.Add(time.Since(c.start)).UnixMilli()
}

// WallClock returns a Clock that reads time.Now directly. Unlike SystemClock
// it follows NTP steps, so a backwards step surfaces as a ClockError.
func WallClock() Clock {
	return ClockFunc(func() int64 { return time.Now().UnixMilli() })
}
