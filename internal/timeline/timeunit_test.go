package timeline

import "testing"

func TestDetectTimeUnit(t *testing.T) {
	tests := []struct {
		min, max float64
		want     TimeUnit
	}{
		{0, 0, Nanoseconds},
		{0, 999, Nanoseconds},
		{0, 1000, Microseconds},
		{0, 5e6, Milliseconds},
		{0, 2e9, Seconds},
		{0, 120e9, Minutes},
		{0, 7200e9, Hours},
		{-5e6, 10, Milliseconds},
	}
	for _, tt := range tests {
		if got := DetectTimeUnit(tt.min, tt.max); got != tt.want {
			t.Errorf("DetectTimeUnit(%v, %v) = %v, want %v", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		ns   float64
		unit TimeUnit
		want string
	}{
		{500, Microseconds, "0.500 us"},
		{2500, Microseconds, "2.50 us"},
		{25000, Microseconds, "25.0 us"},
		{1.5e9, Seconds, "1.50 s"},
		{90e9, Minutes, "1.50 min"},
		{0, Nanoseconds, "0.000 ns"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.ns, tt.unit); got != tt.want {
			t.Errorf("FormatTime(%v, %v) = %q, want %q", tt.ns, tt.unit, got, tt.want)
		}
	}
}

func TestParseTimeUnit(t *testing.T) {
	if u, ok := ParseTimeUnit("MS"); !ok || u != Milliseconds {
		t.Errorf("ParseTimeUnit(MS) = %v, %v", u, ok)
	}
	if u, ok := ParseTimeUnit("minutes"); !ok || u != Minutes {
		t.Errorf("ParseTimeUnit(minutes) = %v, %v", u, ok)
	}
	if _, ok := ParseTimeUnit("fortnights"); ok {
		t.Error("unknown unit should not parse")
	}
}
