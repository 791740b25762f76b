package database

import (
	"fmt"
	"time"
)

// TimeLayout is the stored timestamp format: UTC with fixed microsecond
// precision, so lexical order matches chronological order in both dialects.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Now returns the current UTC time truncated to the stored precision, so a
// value handed back on create equals the one read later.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ParseTime parses a stored timestamp. RFC 3339 values written by hand
// (seed files, manual fixes) are accepted too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// NullableTime returns nil for a nil pointer, else the formatted time.
func NullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

// NullableString returns nil for a nil pointer, else the string.
func NullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// NullableInt returns nil for a nil pointer, else the value as int64.
func NullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

// BoolToInt converts a bool to the 0/1 integer stored in both dialects.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
