package utils

import (
	"testing"
	"time"
)

func TestTimeOrDash(t *testing.T) {
	tests := []struct {
		name   string
		t      time.Time
		layout string
		want   string
	}{
		{"zero time", time.Time{}, DateTime, "-"},
		{"valid date", time.Date(2026, 2, 25, 14, 30, 0, 0, time.UTC), DateTime, "2026-02-25 14:30"},
		{"date only", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), DateOnly, "2026-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeOrDash(tt.t, tt.layout); got != tt.want {
				t.Errorf("TimeOrDash() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOrDash(t *testing.T) {
	if OrDash("") != "-" || OrDash("x") != "x" {
		t.Error("OrDash mismatch")
	}
	if JoinOrDash(nil) != "-" || JoinOrDash([]string{"a", "b"}) != "a, b" {
		t.Error("JoinOrDash mismatch")
	}
}

func TestShortDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
		{time.Hour + 2*time.Minute + 30*time.Second, "1h2m"},
		{1400 * time.Millisecond, "1s"},
	}
	for _, tt := range tests {
		if got := ShortDuration(tt.d); got != tt.want {
			t.Errorf("ShortDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
