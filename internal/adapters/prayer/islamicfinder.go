package prayer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/clock"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// IslamicFinder is the secondary provider. Its API is day- and
// month-oriented, so a yearly fetch issues twelve monthly requests.
type IslamicFinder struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	retry   RetryPolicy
}

func NewIslamicFinder(baseURL, apiKey string, hc *http.Client, retry RetryPolicy) *IslamicFinder {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &IslamicFinder{baseURL: baseURL, apiKey: apiKey, hc: hc, retry: retry}
}

func (f *IslamicFinder) Name() string { return "islamicfinder" }

type islamicFinderDay struct {
	Date   string            `json:"date"` // ISO
	Hijri  string            `json:"hijri_date"`
	Times  map[string]string `json:"times"`
}

type islamicFinderMonthResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Results []islamicFinderDay `json:"results"`
}

// islamicFinderKeyMap translates provider timing names onto the canonical
// keys. Unmapped provider keys are dropped.
var islamicFinderKeyMap = map[string]string{
	"Fajr":     models.KeyFajr,
	"Duha":     models.KeySunrise,
	"Sunrise":  models.KeySunrise,
	"Dhuhr":    models.KeyDhuhr,
	"Asr":      models.KeyAsr,
	"Sunset":   models.KeySunset,
	"Maghrib":  models.KeyMaghrib,
	"Isha":     models.KeyIsha,
	"Imsak":    models.KeyImsak,
	"Midnight": models.KeyMidnight,
}

func (f *IslamicFinder) query(lat, lon float64, key models.MethodKey) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("method", strconv.Itoa(key.Method))
	q.Set("juristic", strconv.Itoa(key.Asr))
	q.Set("high_latitude", strconv.Itoa(key.HighLat))
	q.Set("time_format", "0")
	if f.apiKey != "" {
		q.Set("key", f.apiKey)
	}
	return q
}

func (f *IslamicFinder) fetchMonth(ctx context.Context, lat, lon float64, year, month int, key models.MethodKey) ([]models.DailyTimings, error) {
	q := f.query(lat, lon, key)
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))
	u := fmt.Sprintf("%s/prayer_times/monthly?%s", f.baseURL, q.Encode())

	var resp islamicFinderMonthResponse
	err := withRetry(ctx, f.retry, func() error {
		resp = islamicFinderMonthResponse{}
		return doJSON(ctx, f.hc, f.Name(), "monthly", u, &resp)
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errs.Newf(errs.Permanent, "islamicfinder: monthly request rejected: %s", resp.Message)
	}

	days := make([]models.DailyTimings, 0, len(resp.Results))
	for _, d := range resp.Results {
		day, err := normalizeIslamicFinderDay(d)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

func (f *IslamicFinder) FetchYear(ctx context.Context, lat, lon float64, year int, key models.MethodKey) ([]models.DailyTimings, error) {
	days := make([]models.DailyTimings, 0, models.DaysInYear(year))
	for month := 1; month <= 12; month++ {
		monthDays, err := f.fetchMonth(ctx, lat, lon, year, month, key)
		if err != nil {
			return nil, err
		}
		days = append(days, monthDays...)
	}
	if len(days) != models.DaysInYear(year) {
		return nil, errs.Newf(errs.Permanent, "islamicfinder: calendar for %d has %d days, want %d",
			year, len(days), models.DaysInYear(year))
	}
	return days, nil
}

func (f *IslamicFinder) FetchDay(ctx context.Context, lat, lon float64, date time.Time, key models.MethodKey) (models.DailyTimings, error) {
	q := f.query(lat, lon, key)
	q.Set("date", date.Format(models.DateLayout))
	u := fmt.Sprintf("%s/prayer_times/daily?%s", f.baseURL, q.Encode())

	var resp struct {
		Success bool             `json:"success"`
		Message string           `json:"message"`
		Result  islamicFinderDay `json:"result"`
	}
	err := withRetry(ctx, f.retry, func() error {
		resp.Success, resp.Message, resp.Result = false, "", islamicFinderDay{}
		return doJSON(ctx, f.hc, f.Name(), "daily", u, &resp)
	})
	if err != nil {
		return models.DailyTimings{}, err
	}
	if !resp.Success {
		return models.DailyTimings{}, errs.Newf(errs.Permanent, "islamicfinder: daily request rejected: %s", resp.Message)
	}
	return normalizeIslamicFinderDay(resp.Result)
}

func normalizeIslamicFinderDay(d islamicFinderDay) (models.DailyTimings, error) {
	if _, err := time.Parse(models.DateLayout, d.Date); err != nil {
		return models.DailyTimings{}, errs.Wrapf(errs.Permanent, err, "islamicfinder: bad date %q", d.Date)
	}
	out := models.DailyTimings{
		Date:    d.Date,
		Hijri:   d.Hijri,
		Timings: make(map[string]string, len(models.CanonicalTimingKeys)),
	}
	for raw, canonical := range islamicFinderKeyMap {
		v, ok := d.Times[raw]
		if !ok {
			continue
		}
		t, err := clock.ParseLenient(v)
		if err != nil {
			return models.DailyTimings{}, errs.Wrapf(errs.Permanent, err, "islamicfinder: bad %s value %q on %s", canonical, v, d.Date)
		}
		out.Timings[canonical] = t.String()
	}
	for _, k := range models.DailyPrayers {
		if _, ok := out.Timings[k]; !ok {
			return models.DailyTimings{}, errs.Newf(errs.Permanent, "islamicfinder: missing %s on %s", k, d.Date)
		}
	}
	return out, nil
}
