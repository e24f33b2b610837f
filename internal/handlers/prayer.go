package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/clock"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/middleware"
	"github.com/Quraeshi99/NoorTime/internal/models"
	"github.com/Quraeshi99/NoorTime/internal/services"
)

// prayerInitialResponse is the fixed shape of GET /prayer/initial.
type prayerInitialResponse struct {
	CurrentLocationName string                     `json:"currentLocationName"`
	CurrentPrayerPeriod services.PrayerPeriod      `json:"currentPrayerPeriod"`
	PrayerTimes         prayerTimesBlock           `json:"prayerTimes"`
	DateInfo            dateInfo                   `json:"dateInfo"`
	NextDayPrayer       services.NextPrayerDisplay `json:"nextDayPrayerDisplay"`
	UserPreferences     userPreferences            `json:"userPreferences"`
	Warnings            []string                   `json:"warnings"`
	IsFollowingMasjid   bool                       `json:"is_following_default_masjid"`
	MasjidInfo          *models.OwnerInfo          `json:"default_masjid_info"`
	Announcements       []models.Announcement      `json:"announcements"`
	NextScheduleURL     string                     `json:"next_schedule_url,omitempty"`
}

type prayerTimesBlock struct {
	Fajr       models.PrayerDisplay `json:"fajr"`
	Dhuhr      models.PrayerDisplay `json:"dhuhr"`
	Asr        models.PrayerDisplay `json:"asr"`
	Maghrib    models.PrayerDisplay `json:"maghrib"`
	Isha       models.PrayerDisplay `json:"isha"`
	Jummah     models.JummahDisplay `json:"jummah"`
	Chasht     string               `json:"chasht"`
	Iftari     models.TimeDisplay   `json:"iftari"`
	SehriEnd   models.TimeDisplay   `json:"sehri_end"`
	ZohwaKubra models.WindowDisplay `json:"zohwa_kubra"`
}

type dateInfo struct {
	Gregorian string `json:"gregorian"`
	Hijri     string `json:"hijri"`
}

type userPreferences struct {
	TimeFormat        string  `json:"timeFormat"`
	CalculationMethod string  `json:"calculationMethod"`
	HomeLatitude      float64 `json:"homeLatitude"`
	HomeLongitude     float64 `json:"homeLongitude"`
}

// PrayerInitial serves the full first-screen payload: today's display
// times, the current period, tomorrow's lead prayer and follow context.
func (h *Handlers) PrayerInitial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	lat, lon, err := h.parseCoords(q.Get("lat"), q.Get("lon"))
	if err != nil {
		RespondBadRequest(w, err.Error())
		return
	}
	methodKey, err := h.parseMethodKey(q.Get("method"), q.Get("asr"), q.Get("high_lat"))
	if err != nil {
		RespondBadRequest(w, err.Error())
		return
	}

	subjectID := middleware.SubjectID(r)

	// A follow pins everything to the masjid's settings and location.
	var (
		settings    *models.OwnerSettings
		lastRaw     map[string]string
		masjidInfo  *models.OwnerInfo
		annlist     []models.Announcement
		following   bool
		followOwner int64
	)
	if subjectID != "" {
		followOwner, following, err = h.settings.IsFollowingCollective(ctx, subjectID)
		if err != nil {
			RespondError(w, r, err)
			return
		}
	}
	if following {
		settings, err = h.setRepo.Get(ctx, followOwner)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if lastRaw, err = h.setRepo.LastRaw(ctx, followOwner); err != nil {
			RespondError(w, r, err)
			return
		}
		if masjidInfo, err = h.owners.Info(ctx, followOwner); err != nil && errs.KindOf(err) != errs.NotFound {
			RespondError(w, r, err)
			return
		}
		if list, annErr := h.owners.Announcements(ctx, followOwner, 5); annErr == nil {
			annlist = list
		}
		lat, lon = settings.Latitude, settings.Longitude
		methodKey = settings.MethodKey
	} else {
		settings = h.guestSettings(lat, lon, methodKey, q.Get("city"))
		lastRaw = map[string]string{}
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := h.clock.Now().In(loc)

	res, err := h.resolver.Resolve(ctx, lat, lon, methodKey, now.Year())
	if err != nil {
		RespondError(w, r, err)
		return
	}

	mk := res.MethodKey.String()
	today, err := h.calendars.GetDay(ctx, res.ZoneID, lat, lon, now, mk)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	tomorrow, err := h.calendars.GetDay(ctx, res.ZoneID, lat, lon, now.AddDate(0, 0, 1), mk)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	dayAfter, err := h.calendars.GetDay(ctx, res.ZoneID, lat, lon, now.AddDate(0, 0, 2), mk)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	display := services.ComputeDisplayTimes(services.CalcInput{
		Date:     now,
		Today:    today,
		Tomorrow: tomorrow,
		Settings: settings,
		LastRaw:  lastRaw,
	})
	if display.NeedsPersist && following {
		if err := h.setRepo.PutLastRaw(ctx, followOwner, display.RawToPersist); err != nil {
			h.logger.Warn("last-raw persist failed", "owner", followOwner, "err", err)
		}
	}

	nowClock := clock.FromSeconds(now.Hour()*3600 + now.Minute()*60 + now.Second())

	resp := prayerInitialResponse{
		CurrentLocationName: h.locationName(settings, res, q.Get("city")),
		CurrentPrayerPeriod: services.CurrentPeriod(nowClock, today, tomorrow),
		PrayerTimes: prayerTimesBlock{
			Fajr:       display.Prayers[models.KeyFajr],
			Dhuhr:      display.Prayers[models.KeyDhuhr],
			Asr:        display.Prayers[models.KeyAsr],
			Maghrib:    display.Prayers[models.KeyMaghrib],
			Isha:       display.Prayers[models.KeyIsha],
			Jummah:     display.Jummah,
			Chasht:     display.Chasht,
			Iftari:     display.Iftari,
			SehriEnd:   display.SehriEnd,
			ZohwaKubra: display.ZohwaKubra,
		},
		DateInfo: dateInfo{
			Gregorian: now.Format(models.DateLayout),
			Hijri:     hijriWithOffset(today.Hijri, settings.HijriOffset),
		},
		NextDayPrayer:     services.NextDayPrayer(tomorrow, dayAfter, settings, lastRaw),
		UserPreferences:   h.preferences(settings),
		Warnings:          display.Warnings,
		IsFollowingMasjid: following,
		MasjidInfo:        masjidInfo,
		Announcements:     annlist,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if resp.Announcements == nil {
		resp.Announcements = []models.Announcement{}
	}
	if following {
		resp.NextScheduleURL = fmt.Sprintf("/schedule/monthly?year=%d&month=%d", now.Year(), int(now.Month()))
	}

	RespondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) parseCoords(latStr, lonStr string) (float64, float64, error) {
	if latStr == "" && lonStr == "" {
		return h.cfg.DefaultLatitude, h.cfg.DefaultLongitude, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid lat %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("invalid lon %q", lonStr)
	}
	return lat, lon, nil
}

func (h *Handlers) parseMethodKey(method, asr, highLat string) (models.MethodKey, error) {
	def, err := models.ParseMethodKey(h.cfg.DefaultMethodKey)
	if err != nil {
		return models.MethodKey{}, fmt.Errorf("bad default method key configured: %w", err)
	}

	key := def
	switch {
	case method == "":
	case strings.EqualFold(method, "AUTOMATIC"):
		key.Method = h.cfg.AutomaticMethodID
	default:
		m, err := strconv.Atoi(method)
		if err != nil {
			return models.MethodKey{}, fmt.Errorf("invalid method %q", method)
		}
		key.Method = m
	}
	if asr != "" {
		a, err := strconv.Atoi(asr)
		if err != nil {
			return models.MethodKey{}, fmt.Errorf("invalid asr %q", asr)
		}
		key.Asr = a
	}
	if highLat != "" {
		hl, err := strconv.Atoi(highLat)
		if err != nil {
			return models.MethodKey{}, fmt.Errorf("invalid high_lat %q", highLat)
		}
		key.HighLat = hl
	}
	return key, nil
}

// guestSettings builds an ephemeral zero-offset profile for a caller with
// no stored owner: query coordinates, inferred timezone, no thresholds.
func (h *Handlers) guestSettings(lat, lon float64, key models.MethodKey, city string) *models.OwnerSettings {
	return &models.OwnerSettings{
		Latitude:  lat,
		Longitude: lon,
		CityName:  city,
		MethodKey: key,
		Rules:     map[string]models.PrayerRule{},
		Timezone:  h.tzfinder.Lookup(lat, lon, "UTC"),
	}
}

func (h *Handlers) locationName(settings *models.OwnerSettings, res services.Resolution, queryCity string) string {
	if queryCity != "" {
		return queryCity
	}
	if settings.CityName != "" {
		return settings.CityName
	}
	if res.Place.City != "" {
		return res.Place.City
	}
	return res.ZoneID
}

func (h *Handlers) preferences(settings *models.OwnerSettings) userPreferences {
	format := settings.TimeFormat
	if format == "" {
		format = "24h"
	}
	return userPreferences{
		TimeFormat:        format,
		CalculationMethod: settings.MethodKey.String(),
		HomeLatitude:      settings.Latitude,
		HomeLongitude:     settings.Longitude,
	}
}

// hijriWithOffset shifts the day component of a provider hijri date
// string ("DD-MM-YYYY"). The shift stays within the month, clamped to
// [1, 30]; a real lunar calendar adjustment is the provider's job.
func hijriWithOffset(hijri string, offset int) string {
	if offset == 0 || hijri == "" {
		return hijri
	}
	parts := strings.Split(hijri, "-")
	if len(parts) != 3 {
		return hijri
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return hijri
	}
	day += offset
	if day < 1 {
		day = 1
	}
	if day > 30 {
		day = 30
	}
	return fmt.Sprintf("%02d-%s-%s", day, parts[1], parts[2])
}
