package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Quraeshi99/NoorTime/internal/adapters/prayer"
	"github.com/Quraeshi99/NoorTime/internal/cache"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/metrics"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// Job names the calendar service enqueues through the Dispatcher.
const JobFetchYearly = "fetch_and_cache_yearly"

// FetchYearlyPayload is the JSON payload of a JobFetchYearly task.
type FetchYearlyPayload struct {
	ZoneID    string  `json:"zone_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Year      int     `json:"year"`
	MethodKey string  `json:"method_key"`
}

// CalendarService is the tiered calendar cache: hot Redis in front of the
// cold store, with single-flight coordination for yearly fetches.
type CalendarService struct {
	hot        cache.Store
	repo       CalendarRepo
	adapter    prayer.Client
	dispatcher Dispatcher
	cfg        *config.Config
	clock      Clock
	logger     *slog.Logger

	// sf collapses concurrent in-process daily fetches for the same key;
	// the Redis lease handles cross-process coordination.
	sf singleflight.Group
}

func NewCalendarService(
	hot cache.Store,
	repo CalendarRepo,
	adapter prayer.Client,
	dispatcher Dispatcher,
	cfg *config.Config,
	clk Clock,
	logger *slog.Logger,
) *CalendarService {
	return &CalendarService{
		hot:        hot,
		repo:       repo,
		adapter:    adapter,
		dispatcher: dispatcher,
		cfg:        cfg,
		clock:      clk,
		logger:     logger,
	}
}

// GetCalendar reads a yearly calendar through the tiers: hot, then cold
// with hot backfill. A miss on both is NotFound; it never fetches.
func (s *CalendarService) GetCalendar(ctx context.Context, zoneID string, year int, methodKey string) (*models.YearlyCalendar, error) {
	yearLabel := strconv.Itoa(year)
	hotKey := cache.CalendarKey(s.cfg.CacheSchemaVersion, zoneID, year, methodKey)

	if raw, ok, err := s.hot.Get(ctx, hotKey); err == nil && ok {
		var cal models.YearlyCalendar
		if err := json.Unmarshal([]byte(raw), &cal); err == nil {
			metrics.CacheHits.WithLabelValues("hot", zoneID, yearLabel).Inc()
			return &cal, nil
		}
		s.logger.Warn("corrupt hot calendar entry", "key", hotKey)
	}

	cal, err := s.repo.Get(ctx, zoneID, year, methodKey, s.cfg.CacheSchemaVersion)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			metrics.CacheMisses.WithLabelValues(zoneID, yearLabel).Inc()
		}
		return nil, err
	}
	metrics.CacheHits.WithLabelValues("cold", zoneID, yearLabel).Inc()
	s.backfillHot(ctx, hotKey, cal)
	return cal, nil
}

// GetDay returns one day's raw timings for a zone. On a full miss it
// claims the single-flight lock, enqueues the yearly fetch when it wins,
// and serves today's data through a synchronous daily fetch either way.
func (s *CalendarService) GetDay(ctx context.Context, zoneID string, lat, lon float64, date time.Time, methodKey string) (models.DailyTimings, error) {
	cal, err := s.GetCalendar(ctx, zoneID, date.Year(), methodKey)
	if err == nil {
		if day, ok := cal.Day(date); ok {
			s.checkGracePeriod(ctx, zoneID, cal.Latitude, cal.Longitude, methodKey)
			return day, nil
		}
		return models.DailyTimings{}, errs.Newf(errs.Internal, "calendar %s/%d/%s missing day %s",
			zoneID, date.Year(), methodKey, date.Format(models.DateLayout))
	}
	if errs.KindOf(err) != errs.NotFound {
		return models.DailyTimings{}, err
	}

	// Full miss: claim the fetch lock. Winning means this process is
	// responsible for enqueueing the yearly fetch; everyone serves the
	// day synchronously.
	lockKey := cache.FetchLockKey(zoneID, date.Year(), methodKey)
	won, lockErr := s.hot.SetNX(ctx, lockKey, s.adapter.Name(), s.cfg.FetchLockTTL)
	if lockErr != nil {
		s.logger.Warn("fetch lock unavailable", "key", lockKey, "err", lockErr)
	}
	if won {
		if err := s.enqueueYearlyFetch(ctx, zoneID, lat, lon, date.Year(), methodKey); err != nil {
			// Free the claim so another caller can retry the enqueue.
			_ = s.hot.Del(ctx, lockKey)
			s.logger.Error("yearly fetch enqueue failed", "zone", zoneID, "err", err)
		}
	}

	return s.fetchDaySynchronous(ctx, zoneID, lat, lon, date, methodKey)
}

func (s *CalendarService) enqueueYearlyFetch(ctx context.Context, zoneID string, lat, lon float64, year int, methodKey string) error {
	payload, err := json.Marshal(FetchYearlyPayload{
		ZoneID: zoneID, Latitude: lat, Longitude: lon, Year: year, MethodKey: methodKey,
	})
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encode fetch payload")
	}
	if err := s.dispatcher.Delay(ctx, JobFetchYearly, payload); err != nil {
		return err
	}
	s.logger.Info("yearly fetch enqueued", "zone", zoneID, "year", year, "method", methodKey)
	return nil
}

// fetchDaySynchronous serves a single day through the short-TTL daily hot
// key, hitting the adapter on a cold key. Concurrent in-process callers
// share one adapter call.
func (s *CalendarService) fetchDaySynchronous(ctx context.Context, zoneID string, lat, lon float64, date time.Time, methodKey string) (models.DailyTimings, error) {
	dateStr := date.Format(models.DateLayout)
	dailyKey := cache.DailyKey(s.cfg.CacheSchemaVersion, zoneID, dateStr, methodKey)

	if raw, ok, err := s.hot.Get(ctx, dailyKey); err == nil && ok {
		var day models.DailyTimings
		if err := json.Unmarshal([]byte(raw), &day); err == nil {
			metrics.CacheHits.WithLabelValues("daily", zoneID, strconv.Itoa(date.Year())).Inc()
			return day, nil
		}
	}

	v, err, _ := s.sf.Do(dailyKey, func() (any, error) {
		key, err := models.ParseMethodKey(methodKey)
		if err != nil {
			return nil, errs.Wrapf(errs.Internal, err, "stored method key %q", methodKey)
		}
		day, err := s.adapter.FetchDay(ctx, lat, lon, date, key)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(day); err == nil {
			if err := s.hot.Set(ctx, dailyKey, string(raw), s.cfg.TTLDailyCache); err != nil {
				s.logger.Warn("daily hot write failed", "key", dailyKey, "err", err)
			}
		}
		return day, nil
	})
	if err != nil {
		return models.DailyTimings{}, err
	}
	return v.(models.DailyTimings), nil
}

// FetchAndCacheYearly performs the actual yearly fetch: adapter call,
// cold upsert (hash-compared), hot refresh. Workers run this.
func (s *CalendarService) FetchAndCacheYearly(ctx context.Context, p FetchYearlyPayload) error {
	key, err := models.ParseMethodKey(p.MethodKey)
	if err != nil {
		return errs.Wrapf(errs.Permanent, err, "payload method key %q", p.MethodKey)
	}

	days, err := s.adapter.FetchYear(ctx, p.Latitude, p.Longitude, p.Year, key)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	cal := &models.YearlyCalendar{
		ZoneID:        p.ZoneID,
		Year:          p.Year,
		MethodKey:     p.MethodKey,
		SchemaVersion: s.cfg.CacheSchemaVersion,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Days:          days,
		ContentHash:   models.HashDays(days),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	changed, err := s.repo.Upsert(ctx, cal)
	if err != nil {
		return err
	}
	hotKey := cache.CalendarKey(s.cfg.CacheSchemaVersion, p.ZoneID, p.Year, p.MethodKey)
	s.backfillHot(ctx, hotKey, cal)

	// The claim outlives the fetch otherwise; clear it so a content
	// change can be picked up before the lease expires.
	_ = s.hot.Del(ctx, cache.FetchLockKey(p.ZoneID, p.Year, p.MethodKey))

	s.logger.Info("yearly calendar cached",
		"zone", p.ZoneID, "year", p.Year, "method", p.MethodKey, "changed", changed)
	return nil
}

// checkGracePeriod spawns the next-year fetch when the grace window is
// open and next year's calendar is absent. The single-flight lock keeps
// this from colliding with the rolling wave.
func (s *CalendarService) checkGracePeriod(ctx context.Context, zoneID string, lat, lon float64, methodKey string) {
	now := s.clock.Now()
	graceStart := time.Date(now.Year(), time.Month(s.cfg.GracePeriodStartMonth), s.cfg.GracePeriodStartDay,
		0, 0, 0, 0, now.Location())
	if now.Before(graceStart) {
		return
	}

	nextYear := now.Year() + 1
	if _, err := s.GetCalendar(ctx, zoneID, nextYear, methodKey); err == nil {
		return
	} else if errs.KindOf(err) != errs.NotFound {
		return
	}

	lockKey := cache.FetchLockKey(zoneID, nextYear, methodKey)
	won, err := s.hot.SetNX(ctx, lockKey, "grace", s.cfg.FetchLockTTL)
	if err != nil || !won {
		return
	}
	if err := s.enqueueYearlyFetch(ctx, zoneID, lat, lon, nextYear, methodKey); err != nil {
		_ = s.hot.Del(ctx, lockKey)
		s.logger.Error("grace-period enqueue failed", "zone", zoneID, "err", err)
	}
}

func (s *CalendarService) backfillHot(ctx context.Context, hotKey string, cal *models.YearlyCalendar) {
	raw, err := json.Marshal(cal)
	if err != nil {
		return
	}
	if err := s.hot.Set(ctx, hotKey, string(raw), s.cfg.TTLYearlyCalendar); err != nil {
		s.logger.Warn("calendar hot write failed", "key", hotKey, "err", err)
	}
}
