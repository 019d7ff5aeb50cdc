package ir

import (
	"fmt"
	"time"
)

// TimestampLayout is the single timestamp profile used in hash inputs and
// persisted rows: UTC, fixed nanosecond precision, trailing Z.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses any RFC 3339 timestamp and normalizes it to UTC.
// The canonical layout is a valid RFC 3339 form, so persisted values
// round-trip exactly.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return NormalizeTimestamp(t), nil
}

// NormalizeTimestamp converts t to UTC and strips the monotonic reading so
// that values compare equal after a storage round-trip.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Round(0)
}
