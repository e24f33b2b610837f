package prayer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/clock"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// AlAdhan fetches timings from the AlAdhan calendar API.
type AlAdhan struct {
	baseURL string
	hc      *http.Client
	retry   RetryPolicy
}

// NewAlAdhan builds the adapter. The client should carry a timeout; a nil
// client gets a 30s default.
func NewAlAdhan(baseURL string, hc *http.Client, retry RetryPolicy) *AlAdhan {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &AlAdhan{baseURL: baseURL, hc: hc, retry: retry}
}

func (a *AlAdhan) Name() string { return "aladhan" }

type alAdhanDay struct {
	Timings map[string]string `json:"timings"`
	Date    struct {
		Gregorian struct {
			Date string `json:"date"` // DD-MM-YYYY
		} `json:"gregorian"`
		Hijri struct {
			Date string `json:"date"` // DD-MM-YYYY hijri
		} `json:"hijri"`
	} `json:"date"`
}

type alAdhanCalendarResponse struct {
	Code   int                     `json:"code"`
	Status string                  `json:"status"`
	Data   map[string][]alAdhanDay `json:"data"`
}

type alAdhanTimingsResponse struct {
	Code   int        `json:"code"`
	Status string     `json:"status"`
	Data   alAdhanDay `json:"data"`
}

func (a *AlAdhan) query(lat, lon float64, key models.MethodKey) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("method", strconv.Itoa(key.Method))
	q.Set("school", strconv.Itoa(key.Asr))
	q.Set("latitudeAdjustmentMethod", strconv.Itoa(key.HighLat))
	return q
}

// FetchYear pulls the annual calendar in one request and flattens the
// per-month groups into a date-indexed slice.
func (a *AlAdhan) FetchYear(ctx context.Context, lat, lon float64, year int, key models.MethodKey) ([]models.DailyTimings, error) {
	q := a.query(lat, lon, key)
	q.Set("annual", "true")
	u := fmt.Sprintf("%s/calendar/%d?%s", a.baseURL, year, q.Encode())

	var resp alAdhanCalendarResponse
	err := withRetry(ctx, a.retry, func() error {
		resp = alAdhanCalendarResponse{}
		return doJSON(ctx, a.hc, a.Name(), "calendar", u, &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusOK {
		return nil, errs.Newf(errs.Permanent, "aladhan: calendar response code %d (%s)", resp.Code, resp.Status)
	}

	months := make([]int, 0, len(resp.Data))
	for m := range resp.Data {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			return nil, errs.Newf(errs.Permanent, "aladhan: unexpected month key %q", m)
		}
		months = append(months, n)
	}
	sort.Ints(months)

	days := make([]models.DailyTimings, 0, models.DaysInYear(year))
	for _, m := range months {
		for _, d := range resp.Data[strconv.Itoa(m)] {
			day, err := normalizeAlAdhanDay(d, year)
			if err != nil {
				return nil, err
			}
			days = append(days, day)
		}
	}
	if len(days) != models.DaysInYear(year) {
		return nil, errs.Newf(errs.Permanent, "aladhan: calendar for %d has %d days, want %d",
			year, len(days), models.DaysInYear(year))
	}
	return days, nil
}

// FetchDay pulls a single day's timings.
func (a *AlAdhan) FetchDay(ctx context.Context, lat, lon float64, date time.Time, key models.MethodKey) (models.DailyTimings, error) {
	u := fmt.Sprintf("%s/timings/%s?%s", a.baseURL, date.Format("02-01-2006"), a.query(lat, lon, key).Encode())

	var resp alAdhanTimingsResponse
	err := withRetry(ctx, a.retry, func() error {
		resp = alAdhanTimingsResponse{}
		return doJSON(ctx, a.hc, a.Name(), "timings", u, &resp)
	})
	if err != nil {
		return models.DailyTimings{}, err
	}
	if resp.Code != http.StatusOK {
		return models.DailyTimings{}, errs.Newf(errs.Permanent, "aladhan: timings response code %d (%s)", resp.Code, resp.Status)
	}
	return normalizeAlAdhanDay(resp.Data, date.Year())
}

// normalizeAlAdhanDay converts one provider day into the canonical shape:
// ISO date, canonical keys only, plain "HH:MM" values with the provider's
// timezone annotations stripped.
func normalizeAlAdhanDay(d alAdhanDay, year int) (models.DailyTimings, error) {
	date, err := time.Parse("02-01-2006", d.Date.Gregorian.Date)
	if err != nil {
		return models.DailyTimings{}, errs.Wrapf(errs.Permanent, err, "aladhan: bad gregorian date %q", d.Date.Gregorian.Date)
	}
	if date.Year() != year {
		return models.DailyTimings{}, errs.Newf(errs.Permanent, "aladhan: date %s outside year %d", d.Date.Gregorian.Date, year)
	}

	out := models.DailyTimings{
		Date:    date.Format(models.DateLayout),
		Hijri:   d.Date.Hijri.Date,
		Timings: make(map[string]string, len(models.CanonicalTimingKeys)),
	}
	for _, k := range models.CanonicalTimingKeys {
		raw, ok := d.Timings[k]
		if !ok {
			continue
		}
		t, err := clock.ParseLenient(raw)
		if err != nil {
			return models.DailyTimings{}, errs.Wrapf(errs.Permanent, err, "aladhan: bad %s value %q on %s", k, raw, out.Date)
		}
		out.Timings[k] = t.String()
	}
	for _, k := range models.DailyPrayers {
		if _, ok := out.Timings[k]; !ok {
			return models.DailyTimings{}, errs.Newf(errs.Permanent, "aladhan: missing %s on %s", k, out.Date)
		}
	}
	return out, nil
}
