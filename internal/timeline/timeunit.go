package timeline

import (
	"fmt"
	"math"
	"strings"
)

// TimeUnit selects how nanosecond values are displayed.
type TimeUnit int

const (
	Nanoseconds TimeUnit = iota
	Microseconds
	Milliseconds
	Seconds
	Minutes
	Hours
)

// TimeUnitInfo describes a unit and the magnitude range it is chosen for.
type TimeUnitInfo struct {
	Unit   TimeUnit
	Symbol string
	Name   string
	Factor float64 // nanoseconds per unit
	Min    float64 // inclusive lower bound in ns for auto-detection
	Max    float64 // exclusive upper bound in ns
}

var timeUnits = []TimeUnitInfo{
	{Nanoseconds, "ns", "Nanoseconds", 1, 0, 1e3},
	{Microseconds, "us", "Microseconds", 1e3, 1e3, 1e6},
	{Milliseconds, "ms", "Milliseconds", 1e6, 1e6, 1e9},
	{Seconds, "s", "Seconds", 1e9, 1e9, 60e9},
	{Minutes, "min", "Minutes", 60e9, 60e9, 3600e9},
	{Hours, "h", "Hours", 3600e9, 3600e9, math.MaxFloat64},
}

// Info returns the table entry for u, falling back to nanoseconds.
func (u TimeUnit) Info() TimeUnitInfo {
	for _, info := range timeUnits {
		if info.Unit == u {
			return info
		}
	}
	return timeUnits[0]
}

func (u TimeUnit) String() string { return u.Info().Symbol }

// ParseTimeUnit accepts a unit symbol or name, case-insensitively.
func ParseTimeUnit(s string) (TimeUnit, bool) {
	for _, info := range timeUnits {
		if strings.EqualFold(s, info.Symbol) || strings.EqualFold(s, info.Name) {
			return info.Unit, true
		}
	}
	return Nanoseconds, false
}

// DetectTimeUnit picks the unit whose range contains the larger magnitude
// of min and max.
func DetectTimeUnit(minNanos, maxNanos float64) TimeUnit {
	v := max(math.Abs(minNanos), math.Abs(maxNanos))
	for _, info := range timeUnits {
		if v >= info.Min && v < info.Max {
			return info.Unit
		}
	}
	return Hours
}

// FormatTime renders ns in unit u with 3, 2 or 1 decimals depending on
// magnitude, followed by the unit symbol.
func FormatTime(ns float64, u TimeUnit) string {
	info := u.Info()
	v := ns / info.Factor
	prec := 1
	switch {
	case v < 1:
		prec = 3
	case v < 10:
		prec = 2
	}
	return fmt.Sprintf("%.*f %s", prec, v, info.Symbol)
}
