package helpers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DateFormat is the wire/storage format for calendar dates.
const DateFormat = "2006-01-02"

// ClockFormat is the format for configured clock times such as the
// auto-mark cutoff.
const ClockFormat = "15:04"

// ParseDuration parses a duration string, returns default duration on error.
func ParseDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		log.Warn().Err(err).Str("durationStr", durationStr).Dur("defaultDuration", defaultDuration).Msg("Failed to parse duration string, using default")
		return defaultDuration
	}
	return duration
}

// ParseDate parses a YYYY-MM-DD calendar date. The result carries no time
// component beyond midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// DateOnly strips the time-of-day component, keeping the calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseClockTime parses an HH:MM clock time and anchors it on the given date.
func ParseClockTime(s string, on time.Time) (time.Time, error) {
	c, err := time.Parse(ClockFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	y, m, d := on.UTC().Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, time.UTC), nil
}
