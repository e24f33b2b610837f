package services

import (
	"fmt"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/clock"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// NotAvailable is the presentation value for a timing the provider did
// not supply. Only the formatter produces it; internal math never does.
const NotAvailable = "N/A"

// jamaatSafetyBufferSeconds is subtracted from the next prayer's raw
// start to form the effective upper bound for jamaat.
const jamaatSafetyBufferSeconds = 8 * 60

// chashtOffsetSeconds places the chasht marker after sunrise.
const chashtOffsetSeconds = 20*60 + 30

// CalcInput is everything the calculator needs for one local date.
type CalcInput struct {
	Date     time.Time
	Today    models.DailyTimings
	Tomorrow models.DailyTimings
	Settings *models.OwnerSettings
	// LastRaw is the owner's last published raw starts, keyed by prayer.
	LastRaw map[string]string
}

// ComputeDisplayTimes applies the owner's rules to one day's raw record.
// It never fails outright: unusable inputs degrade to "N/A" entries plus
// warnings so a single bad timing cannot blank the whole day.
func ComputeDisplayTimes(in CalcInput) models.DisplayTimes {
	out := models.DisplayTimes{
		Prayers:      make(map[string]models.PrayerDisplay, len(models.DailyPrayers)),
		RawToPersist: make(map[string]string, len(models.DailyPrayers)),
	}

	for _, p := range models.DailyPrayers {
		display, effectiveRaw, warnings, usedNewRaw := computePrayer(p, in)
		out.Prayers[p] = display
		out.Warnings = append(out.Warnings, warnings...)
		if usedNewRaw {
			out.NeedsPersist = true
		}
		// Persist the raw each prayer actually published: prayers held by
		// the stability threshold keep their old baseline.
		out.RawToPersist[p] = effectiveRaw
	}

	if in.Date.Weekday() == time.Friday {
		out.Jummah, out.Warnings = computeJummah(in, out.Warnings)
	}

	if sunrise, ok := in.Today.Time(models.KeySunrise); ok {
		out.Chasht = sunrise.AddSeconds(chashtOffsetSeconds).StringSeconds()
	} else {
		out.Chasht = NotAvailable
	}

	out.Iftari = models.TimeDisplay{Time: rawOrNA(in.Today, models.KeyMaghrib)}
	out.SehriEnd = models.TimeDisplay{Time: rawOrNA(in.Today, models.KeyImsak)}
	out.ZohwaKubra = computeZohwaKubra(in.Today)

	return out
}

func rawOrNA(day models.DailyTimings, key string) string {
	if t, ok := day.Time(key); ok {
		return t.String()
	}
	return NotAvailable
}

// computePrayer evaluates one prayer's rule. usedNewRaw reports that the
// offset branch consumed a raw value different from the persisted one,
// which obliges the caller to persist the new blob. effectiveRaw is the
// raw value the prayer was published against.
func computePrayer(prayer string, in CalcInput) (models.PrayerDisplay, string, []string, bool) {
	rawStart, ok := in.Today.Time(prayer)
	if !ok {
		return models.PrayerDisplay{Azan: NotAvailable, Jamaat: NotAvailable}, "",
			[]string{fmt.Sprintf("%s: no raw time from provider", prayer)}, false
	}

	nextStart, ok := boundaryStart(prayer, in)
	if !ok {
		return models.PrayerDisplay{Azan: rawStart.String(), Jamaat: rawStart.String()}, rawStart.String(),
			[]string{fmt.Sprintf("%s: no interval boundary available", prayer)}, false
	}

	rule := in.Settings.Rule(prayer)
	switch rule.Mode {
	case models.RuleFixed:
		d, warnings := applyFixed(prayer, rule, rawStart, nextStart)
		return d, rawStart.String(), warnings, false
	default:
		return applyOffset(prayer, rule, rawStart, nextStart, in)
	}
}

// boundaryStart returns the raw start that closes the prayer's natural
// interval: the next timing today, or tomorrow's Fajr for Isha.
func boundaryStart(prayer string, in CalcInput) (clock.Time, bool) {
	boundaryKey := models.NextPrayerBoundary[prayer]
	if prayer == models.KeyIsha {
		return in.Tomorrow.Time(boundaryKey)
	}
	return in.Today.Time(boundaryKey)
}

func applyFixed(prayer string, rule models.PrayerRule, rawStart, nextStart clock.Time) (models.PrayerDisplay, []string) {
	var warnings []string

	azan, err := clock.Parse(rule.FixedAzan)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("%s: fixed azan %q unparseable, using raw start", prayer, rule.FixedAzan))
		azan = rawStart
	}
	jamaat, err := clock.Parse(rule.FixedJamaat)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("%s: fixed jamaat %q unparseable, using azan", prayer, rule.FixedJamaat))
		jamaat = azan
	}

	azan, jamaat, clampWarnings := enforceBoundaries(prayer, rawStart, nextStart,
		azan.SinceWrap(rawStart), jamaat.SinceWrap(rawStart))
	return models.PrayerDisplay{Azan: azan.String(), Jamaat: jamaat.String()}, append(warnings, clampWarnings...)
}

func applyOffset(prayer string, rule models.PrayerRule, rawStart, nextStart clock.Time, in CalcInput) (models.PrayerDisplay, string, []string, bool) {
	var warnings []string

	// Threshold stability: a small provider jitter keeps the previously
	// published raw; a real shift adopts the new raw and asks the caller
	// to persist it.
	effective := rawStart
	usedNewRaw := true
	if prevStr, ok := in.LastRaw[prayer]; ok && prevStr != "" {
		prev, err := clock.ParseLenient(prevStr)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("%s: stored raw %q unparseable, resetting", prayer, prevStr))
		case rawStart.AbsDiffSeconds(prev) < in.Settings.ThresholdMinutes*60:
			effective = prev
			usedNewRaw = false
		}
	}

	// Offsets anchor on the effective raw: a prayer held by the threshold
	// keeps publishing against its old baseline.
	azanRel := rule.AzanOffset * 60
	jamaatRel := azanRel + rule.JamaatOffset*60

	azan, jamaat, clampWarnings := enforceBoundaries(prayer, effective, nextStart, azanRel, jamaatRel)
	return models.PrayerDisplay{Azan: azan.String(), Jamaat: jamaat.String()},
		effective.String(), append(warnings, clampWarnings...), usedNewRaw
}

// enforceBoundaries clamps azan and jamaat into the prayer's interval.
// Positions are in seconds relative to the raw start (the unwrapped
// domain), so Isha's wrap past midnight needs no special casing: the
// interval is [0, span-8min] where span is the wrap-aware distance to the
// next raw start.
func enforceBoundaries(prayer string, rawStart, nextStart clock.Time, azanRel, jamaatRel int) (clock.Time, clock.Time, []string) {
	span := nextStart.SinceWrap(rawStart)
	upper := span - jamaatSafetyBufferSeconds
	if upper < 0 {
		upper = 0
	}

	var warnings []string
	if adjusted, clamped := clampRel(azanRel, span, upper); clamped {
		warnings = append(warnings, fmt.Sprintf("%s: azan adjusted to stay within the prayer window", prayer))
		azanRel = adjusted
	}
	if jamaatRel < azanRel {
		warnings = append(warnings, fmt.Sprintf("%s: jamaat adjusted to follow azan", prayer))
		jamaatRel = azanRel
	}
	if adjusted, clamped := clampRel(jamaatRel, span, upper); clamped {
		warnings = append(warnings, fmt.Sprintf("%s: jamaat adjusted to stay within the prayer window", prayer))
		jamaatRel = adjusted
	}

	return rawStart.AddSeconds(azanRel), rawStart.AddSeconds(jamaatRel), warnings
}

// clampRel pushes a relative position into [0, upper]. A position beyond
// the interval is pulled to whichever edge is nearer in wrap distance.
func clampRel(rel, span, upper int) (int, bool) {
	if rel < 0 {
		return 0, true
	}
	if rel <= upper {
		return rel, false
	}
	// Wrap-parsed fixed times land in [0, 86400); decide the nearer edge.
	if rel > (span+clock.SecondsPerDay)/2 {
		return 0, true
	}
	return upper, true
}

// computeJummah produces Friday's block. Offset mode anchors azan on the
// day's raw Dhuhr; khutbah and jamaat are offsets from the azan.
func computeJummah(in CalcInput, warnings []string) (models.JummahDisplay, []string) {
	rule := in.Settings.Jummah

	if rule.Mode == models.RuleFixed {
		return models.JummahDisplay{
			Azan:    fixedOrNA(rule.FixedAzan),
			Khutbah: fixedOrNA(rule.FixedKhutbah),
			Jamaat:  fixedOrNA(rule.FixedJamaat),
		}, warnings
	}

	dhuhr, ok := in.Today.Time(models.KeyDhuhr)
	if !ok {
		return models.JummahDisplay{Azan: NotAvailable, Khutbah: NotAvailable, Jamaat: NotAvailable},
			append(warnings, "Jummah: no raw Dhuhr to offset from")
	}
	azan := dhuhr.AddMinutes(rule.AzanOffset)
	return models.JummahDisplay{
		Azan:    azan.String(),
		Khutbah: azan.AddMinutes(rule.KhutbahOffset).String(),
		Jamaat:  azan.AddMinutes(rule.JamaatOffset).String(),
	}, warnings
}

func fixedOrNA(s string) string {
	if t, err := clock.Parse(s); err == nil {
		return t.String()
	}
	return NotAvailable
}

// computeZohwaKubra derives the window from the day's solar markers:
// start at the Fajr-to-Sunset midpoint, end at the Sunrise-to-Sunset
// midpoint.
func computeZohwaKubra(day models.DailyTimings) models.WindowDisplay {
	fajr, okF := day.Time(models.KeyFajr)
	sunrise, okR := day.Time(models.KeySunrise)
	sunset, okS := day.Time(models.KeySunset)
	if !okF || !okR || !okS {
		return models.WindowDisplay{Start: NotAvailable, End: NotAvailable}
	}
	return models.WindowDisplay{
		Start: clock.Midpoint(fajr, sunset).String(),
		End:   clock.Midpoint(sunrise, sunset).String(),
	}
}
