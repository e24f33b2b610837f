// Package clock implements wall-clock time algebra for prayer schedules.
//
// All values are local wall-clock times with second resolution. Arithmetic
// never converts to UTC; intervals that cross midnight are handled with
// wrap-aware comparison.
package clock

import (
	"fmt"
	"strconv"
	"strings"
)

// SecondsPerDay is the length of one wall-clock day.
const SecondsPerDay = 24 * 60 * 60

// Time is a wall-clock time of day, stored as seconds since midnight
// in [0, SecondsPerDay).
type Time struct {
	secs int
}

// FromSeconds builds a Time from seconds since midnight, wrapping into
// a single day.
func FromSeconds(secs int) Time {
	secs %= SecondsPerDay
	if secs < 0 {
		secs += SecondsPerDay
	}
	return Time{secs: secs}
}

// Parse accepts "HH:MM" and "HH:MM:SS" clock strings and rejects anything
// else. Provider suffixes like "05:17 (IST)" are not accepted here; strip
// them before calling.
func Parse(s string) (Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Time{}, fmt.Errorf("invalid clock string %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return Time{}, fmt.Errorf("invalid clock string %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Time{}, fmt.Errorf("invalid clock string %q", s)
		}
		nums[i] = n
	}
	h, m := nums[0], nums[1]
	sec := 0
	if len(nums) == 3 {
		sec = nums[2]
	}
	if h > 23 || m > 59 || sec > 59 {
		return Time{}, fmt.Errorf("clock string %q out of range", s)
	}
	return Time{secs: h*3600 + m*60 + sec}, nil
}

// ParseLenient parses a clock string that may carry a provider timezone
// suffix, e.g. "05:17 (IST)". Only the leading clock token is used.
func ParseLenient(s string) (Time, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return Time{}, fmt.Errorf("empty clock string")
	}
	return Parse(fields[0])
}

// Hour returns the hour component in [0, 23].
func (t Time) Hour() int { return t.secs / 3600 }

// Minute returns the minute component in [0, 59].
func (t Time) Minute() int { return (t.secs % 3600) / 60 }

// Second returns the second component in [0, 59].
func (t Time) Second() int { return t.secs % 60 }

// Seconds returns seconds since midnight.
func (t Time) Seconds() int { return t.secs }

// String formats the time back to "HH:MM", dropping seconds.
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// StringSeconds formats the time as "HH:MM:SS".
func (t Time) StringSeconds() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// AddMinutes returns the time shifted by the given number of minutes,
// which may be negative. The result wraps across midnight.
func (t Time) AddMinutes(m int) Time {
	return FromSeconds(t.secs + m*60)
}

// AddSeconds returns the time shifted by the given number of seconds,
// which may be negative. The result wraps across midnight.
func (t Time) AddSeconds(s int) Time {
	return FromSeconds(t.secs + s)
}

// Before reports whether t is strictly earlier than u on the same day.
func (t Time) Before(u Time) bool { return t.secs < u.secs }

// Equal reports whether t and u are the same instant of the day.
func (t Time) Equal(u Time) bool { return t.secs == u.secs }

// AbsDiffSeconds returns |t - u| in seconds on the plain same-day axis.
func (t Time) AbsDiffSeconds(u Time) int {
	d := t.secs - u.secs
	if d < 0 {
		d = -d
	}
	return d
}

// SinceWrap returns the number of seconds from start forward to t,
// wrapping across midnight, in [0, SecondsPerDay).
func (t Time) SinceWrap(start Time) int {
	d := t.secs - start.secs
	if d < 0 {
		d += SecondsPerDay
	}
	return d
}

// WrapContains reports whether t lies inside the half-open interval
// [start, end). When end < start the interval wraps across midnight,
// e.g. Isha 20:00 to tomorrow's Fajr 05:00.
func WrapContains(start, end, t Time) bool {
	if start.Equal(end) {
		return false
	}
	if start.Before(end) {
		return !t.Before(start) && t.Before(end)
	}
	return !t.Before(start) || t.Before(end)
}

// Midpoint returns the wall-clock midpoint of [a, b], treating b as
// belonging to the next day when it precedes a.
func Midpoint(a, b Time) Time {
	span := b.SinceWrap(a)
	return a.AddSeconds(span / 2)
}
