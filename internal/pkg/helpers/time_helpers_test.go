package helpers

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	if err != nil {
		t.Fatalf("ParseDate error = %v", err)
	}
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Errorf("ParseDate = %s, want %s", d, want)
	}

	for _, bad := range []string{"", "10/03/2025", "2025-13-01"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) accepted invalid input", bad)
		}
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	in := time.Date(2025, 3, 10, 7, 45, 12, 999, loc)
	got := DateOnly(in)
	// 07:45 CST is 23:45 the previous day in UTC.
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly = %s, want %s", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("DateOnly location = %s, want UTC", got.Location())
	}
}

func TestParseClockTime(t *testing.T) {
	on := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	got, err := ParseClockTime("16:30", on)
	if err != nil {
		t.Fatalf("ParseClockTime error = %v", err)
	}
	want := time.Date(2025, 3, 10, 16, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseClockTime = %s, want %s", got, want)
	}

	if _, err := ParseClockTime("half past four", on); err == nil {
		t.Error("ParseClockTime accepted invalid input")
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("90s", time.Minute); got != 90*time.Second {
		t.Errorf("ParseDuration(90s) = %s", got)
	}
	if got := ParseDuration("not-a-duration", time.Minute); got != time.Minute {
		t.Errorf("ParseDuration fallback = %s, want 1m", got)
	}
}
