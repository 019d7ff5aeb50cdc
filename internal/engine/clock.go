package engine

import "time"

// Clock supplies commit timestamps when the caller does not.
//
// The engine reads the clock only while holding the key's lock, so with a
// monotonic clock a key's timestamps never decrease.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
