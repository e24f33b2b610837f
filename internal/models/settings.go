package models

import (
	"fmt"
	"time"
)

// RuleMode discriminates how an owner publishes a prayer's times.
type RuleMode string

const (
	// RuleFixed publishes the configured clock strings verbatim.
	RuleFixed RuleMode = "fixed"
	// RuleOffset derives times from the raw adapter start plus offsets.
	RuleOffset RuleMode = "offset"
)

// Offset bounds for offset-mode rules, in minutes.
const (
	MinOffsetMinutes = -120
	MaxOffsetMinutes = 180
)

// PrayerRule is one prayer's publication rule. Exactly one of the two
// blocks is meaningful, selected by Mode.
type PrayerRule struct {
	Mode RuleMode `json:"mode"`

	// Fixed mode.
	FixedAzan   string `json:"fixed_azan,omitempty"`
	FixedJamaat string `json:"fixed_jamaat,omitempty"`

	// Offset mode, minutes relative to the raw start (azan) and to the
	// computed azan (jamaat).
	AzanOffset   int `json:"azan_offset,omitempty"`
	JamaatOffset int `json:"jamaat_offset,omitempty"`
}

// JummahRule configures Friday's Jummah block. Offset mode derives all
// three times from the day's raw Dhuhr start.
type JummahRule struct {
	Mode RuleMode `json:"mode"`

	FixedAzan    string `json:"fixed_azan,omitempty"`
	FixedKhutbah string `json:"fixed_khutbah,omitempty"`
	FixedJamaat  string `json:"fixed_jamaat,omitempty"`

	AzanOffset    int `json:"azan_offset,omitempty"`
	KhutbahOffset int `json:"khutbah_offset,omitempty"`
	JamaatOffset  int `json:"jamaat_offset,omitempty"`
}

// OwnerSettings is the full per-owner configuration the calculator and
// materializer consume. The owner may be an individual subject or a
// followed collective owner (masjid).
type OwnerSettings struct {
	OwnerID   int64   `json:"owner_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CityName  string  `json:"city_name,omitempty"`

	// MethodKey is the concrete composite key. AUTOMATIC must have been
	// resolved before the settings are stored.
	MethodKey MethodKey `json:"method_key"`

	Rules            map[string]PrayerRule `json:"rules"`
	Jummah           JummahRule            `json:"jummah"`
	ThresholdMinutes int                   `json:"threshold_minutes"`
	HijriOffset      int                   `json:"hijri_offset"`
	Timezone         string                `json:"timezone"`
	TimeFormat       string                `json:"time_format"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Rule returns the rule for a prayer, defaulting to offset mode with zero
// offsets when unset.
func (s *OwnerSettings) Rule(prayer string) PrayerRule {
	if r, ok := s.Rules[prayer]; ok {
		return r
	}
	return PrayerRule{Mode: RuleOffset}
}

// Validate enforces the rule-block invariants: a known mode per prayer and
// offset bounds for offset mode.
func (s *OwnerSettings) Validate() error {
	for _, prayer := range DailyPrayers {
		r := s.Rule(prayer)
		switch r.Mode {
		case RuleFixed, RuleOffset:
		default:
			return fmt.Errorf("%s: unknown rule mode %q", prayer, r.Mode)
		}
		if r.Mode == RuleOffset {
			for _, off := range []int{r.AzanOffset, r.JamaatOffset} {
				if off < MinOffsetMinutes || off > MaxOffsetMinutes {
					return fmt.Errorf("%s: offset %d out of range [%d, %d]",
						prayer, off, MinOffsetMinutes, MaxOffsetMinutes)
				}
			}
		}
	}
	if s.ThresholdMinutes < 0 {
		return fmt.Errorf("threshold_minutes must not be negative")
	}
	if s.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return nil
}

// PrayerRuleFieldsChanged reports whether the prayer-related rule blocks
// differ between two settings values. Display-only fields such as the time
// format do not count.
func PrayerRuleFieldsChanged(old, new *OwnerSettings) bool {
	if old.MethodKey != new.MethodKey ||
		old.ThresholdMinutes != new.ThresholdMinutes ||
		old.Jummah != new.Jummah ||
		old.Latitude != new.Latitude ||
		old.Longitude != new.Longitude {
		return true
	}
	for _, prayer := range DailyPrayers {
		if old.Rule(prayer) != new.Rule(prayer) {
			return true
		}
	}
	return false
}
