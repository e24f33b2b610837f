package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// IntervalKind is the state a client should be in during an interval of
// the director's script.
type IntervalKind string

const (
	KindPrePrayerIdle  IntervalKind = "pre_prayer_idle"
	KindPreAzanWindow  IntervalKind = "pre_azan_window"
	KindPreJamaatAlert IntervalKind = "pre_jamaat_alert"
	KindJamaat         IntervalKind = "jamaat"
	KindPostJamaatInfo IntervalKind = "post_jamaat_info"
	KindPostPrayerIdle IntervalKind = "post_prayer_idle"
	KindJummah         IntervalKind = "jummah"
)

// ScriptInterval is one state interval of a monthly script. Start and End
// are local wall-clock "HH:MM:SS"; End "24:00:00" closes the day.
// Intervals cover [00:00, 24:00) per day with no gap and no overlap.
type ScriptInterval struct {
	Date   string       `json:"date"`
	Kind   IntervalKind `json:"kind"`
	Prayer string       `json:"prayer,omitempty"`
	Start  string       `json:"start"`
	End    string       `json:"end"`
}

// MonthlySchedule is the cached director's script for one owner-month.
type MonthlySchedule struct {
	OwnerID     int64            `json:"owner_id"`
	Year        int              `json:"year"`
	Month       int              `json:"month"`
	Version     int              `json:"version"`
	GeneratedAt time.Time        `json:"generated_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Warnings    []string         `json:"warnings"`
	Script      []ScriptInterval `json:"script"`
	ScriptHash  string           `json:"script_hash"`
}

// HashScript computes the SHA-256 of the canonical JSON of the script.
// Equal hashes imply byte-identical canonical scripts.
func HashScript(script []ScriptInterval) string {
	b, _ := json.Marshal(script)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PrayerDisplay is one prayer's published azan/jamaat pair. "N/A" is a
// presentation convention produced only by the formatter.
type PrayerDisplay struct {
	Azan   string `json:"azan"`
	Jamaat string `json:"jamaat"`
}

// JummahDisplay is Friday's three published times.
type JummahDisplay struct {
	Azan    string `json:"azan"`
	Khutbah string `json:"khutbah"`
	Jamaat  string `json:"jamaat"`
}

// WindowDisplay is a start/end pair such as the Zohwa-e-Kubra window.
type WindowDisplay struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimeDisplay wraps a single informational time such as Iftari.
type TimeDisplay struct {
	Time string `json:"time"`
}

// DisplayTimes is the personal calculator's output for one date.
type DisplayTimes struct {
	Prayers    map[string]PrayerDisplay `json:"prayers"`
	Jummah     JummahDisplay            `json:"jummah"`
	Chasht     string                   `json:"chasht"`
	Iftari     TimeDisplay              `json:"iftari"`
	SehriEnd   TimeDisplay              `json:"sehri_end"`
	ZohwaKubra WindowDisplay            `json:"zohwa_kubra"`
	Warnings   []string                 `json:"warnings,omitempty"`

	// NeedsPersist signals that RawToPersist supersedes the owner's stored
	// last-raw-times blob and should be written back.
	NeedsPersist bool              `json:"-"`
	RawToPersist map[string]string `json:"-"`
}
