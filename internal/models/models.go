// Package models holds the engine's domain entities: timing records,
// yearly calendars, owner settings, monthly schedules and zone aliases.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/clock"
)

// Canonical timing keys as returned by the prayer adapters.
const (
	KeyFajr     = "Fajr"
	KeySunrise  = "Sunrise"
	KeyDhuhr    = "Dhuhr"
	KeyAsr      = "Asr"
	KeySunset   = "Sunset"
	KeyMaghrib  = "Maghrib"
	KeyIsha     = "Isha"
	KeyImsak    = "Imsak"
	KeyMidnight = "Midnight"
)

// CanonicalTimingKeys is the mandated daily shape; adapters must not emit
// anything outside this set.
var CanonicalTimingKeys = []string{
	KeyFajr, KeySunrise, KeyDhuhr, KeyAsr, KeySunset,
	KeyMaghrib, KeyIsha, KeyImsak, KeyMidnight,
}

// DailyPrayers are the five prayers in day order.
var DailyPrayers = []string{KeyFajr, KeyDhuhr, KeyAsr, KeyMaghrib, KeyIsha}

// ComparedPrayers are the keys used when deciding whether two zones share
// a calendar.
var ComparedPrayers = []string{KeyFajr, KeyDhuhr, KeyAsr, KeyMaghrib, KeyIsha}

// NextPrayerBoundary maps a prayer to the timing key that ends its natural
// interval. Isha's boundary is tomorrow's Fajr.
var NextPrayerBoundary = map[string]string{
	KeyFajr:    KeySunrise,
	KeyDhuhr:   KeyAsr,
	KeyAsr:     KeyMaghrib,
	KeyMaghrib: KeyIsha,
	KeyIsha:    KeyFajr, // tomorrow
}

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// DailyTimings is one day's raw adapter record: date-indexed clock strings
// for the canonical timing keys. Absent keys mean the provider did not
// supply that timing.
type DailyTimings struct {
	Date    string            `json:"date"`
	Hijri   string            `json:"hijri,omitempty"`
	Timings map[string]string `json:"timings"`
}

// Time parses the clock value for a timing key. The second return is false
// when the key is absent or unparseable.
func (d DailyTimings) Time(key string) (clock.Time, bool) {
	raw, ok := d.Timings[key]
	if !ok {
		return clock.Time{}, false
	}
	t, err := clock.ParseLenient(raw)
	if err != nil {
		return clock.Time{}, false
	}
	return t, true
}

// YearlyCalendar is one zone's full-year calendar for one method key.
// Days are date-indexed: Days[k] is day-of-year k+1.
type YearlyCalendar struct {
	ZoneID        string         `json:"zone_id"`
	Year          int            `json:"year"`
	MethodKey     string         `json:"method_key"`
	SchemaVersion string         `json:"schema_version"`
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	Days          []DailyTimings `json:"days"`
	ContentHash   string         `json:"content_hash"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Day returns the entry for a calendar date.
func (c *YearlyCalendar) Day(date time.Time) (DailyTimings, bool) {
	if date.Year() != c.Year {
		return DailyTimings{}, false
	}
	idx := date.YearDay() - 1
	if idx < 0 || idx >= len(c.Days) {
		return DailyTimings{}, false
	}
	return c.Days[idx], true
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

// HashDays computes the SHA-256 of the canonical JSON encoding of the
// daily entries. encoding/json sorts map keys, so equal content always
// hashes equal.
func HashDays(days []DailyTimings) string {
	b, _ := json.Marshal(days)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MethodKey is the immutable calculation profile:
// calculation method, Asr juristic school, and high-latitude rule.
type MethodKey struct {
	Method  int
	Asr     int
	HighLat int
}

// String renders the composite form used in every cache key,
// e.g. "3-0-1".
func (k MethodKey) String() string {
	return fmt.Sprintf("%d-%d-%d", k.Method, k.Asr, k.HighLat)
}

// ParseMethodKey parses the composite "<method>-<asr>-<high_lat>" form.
func ParseMethodKey(s string) (MethodKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return MethodKey{}, fmt.Errorf("invalid method key %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return MethodKey{}, fmt.Errorf("invalid method key %q", s)
		}
		nums[i] = n
	}
	return MethodKey{Method: nums[0], Asr: nums[1], HighLat: nums[2]}, nil
}

// ZoneAlias records that the source zone was found empirically equivalent
// to the target zone for a given method key.
type ZoneAlias struct {
	SourceZoneID string    `json:"source_zone_id"`
	TargetZoneID string    `json:"target_zone_id"`
	MethodKey    string    `json:"method_key"`
	CreatedAt    time.Time `json:"created_at"`
}

// Announcement is a collective owner's published notice, surfaced
// read-only on the initial prayer response.
type Announcement struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerInfo is the minimal public identity of a collective owner.
type OwnerInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}
