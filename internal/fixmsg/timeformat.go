package fixmsg

import (
	"fmt"
	"time"
)

// Precision selects the sub-second resolution used when formatting
// SendingTime/OrigSendingTime (spec.md §6: "precision configurable (second,
// millisecond, microsecond, nanosecond) but only FIX >= 4.2 may use
// sub-second").
type Precision uint8

const (
	PrecisionSecond Precision = iota
	PrecisionMillis
	PrecisionMicros
	PrecisionNanos
)

const (
	layoutSeconds = "20060102-15:04:05"
	layoutMillis  = "20060102-15:04:05.000"
	layoutMicros  = "20060102-15:04:05.000000"
	layoutNanos   = "20060102-15:04:05.000000000"
)

// FormatSendingTime renders t (which must be UTC) in the FIX UTCTimestamp
// format at the given precision.
func FormatSendingTime(t time.Time, p Precision) string {
	t = t.UTC()
	switch p {
	case PrecisionMillis:
		return t.Format(layoutMillis)
	case PrecisionMicros:
		return t.Format(layoutMicros)
	case PrecisionNanos:
		return t.Format(layoutNanos)
	default:
		return t.Format(layoutSeconds)
	}
}

// ParseSendingTime parses a FIX UTCTimestamp string at any of the four
// supported precisions, returning UTC time.
func ParseSendingTime(raw string) (time.Time, error) {
	layouts := []string{layoutNanos, layoutMicros, layoutMillis, layoutSeconds}
	var lastErr error
	for _, layout := range layouts {
		if len(raw) != len(layout) {
			continue
		}
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("unrecognized timestamp length %d", len(raw))
	}
	return time.Time{}, fmt.Errorf("parse sending time %q: %w", raw, lastErr)
}

// AllowsSubSecond reports whether beginString permits sub-second precision
// in SendingTime/OrigSendingTime (spec.md §6: "only FIX >= 4.2 ... and
// FIXT.1.1").
func AllowsSubSecond(beginString string) bool {
	switch beginString {
	case "FIX.4.0", "FIX.4.1":
		return false
	default:
		return true
	}
}
