package services

import (
	"github.com/Quraeshi99/NoorTime/internal/clock"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// PrayerPeriod names the interval of the day the clock currently sits in.
type PrayerPeriod struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// NextPrayerDisplay is the convenience "first prayer of tomorrow" block.
type NextPrayerDisplay struct {
	Name   string `json:"name"`
	Azan   string `json:"azan"`
	Jamaat string `json:"jamaat"`
}

// dayMarkers are the raw timings that partition the day into named
// periods, in order. The stretch between Sunrise and Dhuhr is the
// forenoon; Isha runs through midnight to tomorrow's Fajr.
var dayMarkers = []struct {
	key  string
	name string
}{
	{models.KeyFajr, "Fajr"},
	{models.KeySunrise, "Ishraq"},
	{models.KeyDhuhr, "Dhuhr"},
	{models.KeyAsr, "Asr"},
	{models.KeyMaghrib, "Maghrib"},
	{models.KeyIsha, "Isha"},
}

// CurrentPeriod locates now within the day's raw markers. Before Fajr the
// night still belongs to Isha, bounded by today's Fajr.
func CurrentPeriod(now clock.Time, today, tomorrow models.DailyTimings) PrayerPeriod {
	type marker struct {
		name  string
		start clock.Time
	}
	var markers []marker
	for _, m := range dayMarkers {
		if t, ok := today.Time(m.key); ok {
			markers = append(markers, marker{name: m.name, start: t})
		}
	}
	if len(markers) == 0 {
		return PrayerPeriod{Name: "Unknown", Start: NotAvailable, End: NotAvailable}
	}

	ishaEnd := markers[0].start // today's Fajr bounds the pre-dawn night
	if t, ok := tomorrow.Time(models.KeyFajr); ok {
		ishaEnd = t
	}

	for i, m := range markers {
		end := ishaEnd
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		if clock.WrapContains(m.start, end, now) {
			return PrayerPeriod{Name: m.name, Start: m.start.String(), End: end.String()}
		}
	}
	// Now precedes today's Fajr: the tail of last night's Isha.
	return PrayerPeriod{Name: "Isha", Start: NotAvailable, End: markers[0].start.String()}
}

// NextDayPrayer computes tomorrow's leading display block (Fajr) under
// the owner's rules.
func NextDayPrayer(tomorrow, dayAfter models.DailyTimings, settings *models.OwnerSettings, lastRaw map[string]string) NextPrayerDisplay {
	in := CalcInput{
		Today:    tomorrow,
		Tomorrow: dayAfter,
		Settings: settings,
		LastRaw:  lastRaw,
	}
	display, _, _, _ := computePrayer(models.KeyFajr, in)
	return NextPrayerDisplay{Name: "Fajr", Azan: display.Azan, Jamaat: display.Jamaat}
}
