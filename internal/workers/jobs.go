package workers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Quraeshi99/NoorTime/internal/cache"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/metrics"
	"github.com/Quraeshi99/NoorTime/internal/models"
	"github.com/Quraeshi99/NoorTime/internal/services"
)

// Jobs wires the background tasks to the services they drive.
type Jobs struct {
	calendars  *services.CalendarService
	schedules  *services.ScheduleService
	calRepo    services.CalendarRepo
	schedRepo  services.ScheduleRepo
	settings   services.SettingsRepo
	dispatcher services.Dispatcher
	hot        cache.Store
	cfg        *config.Config
	clock      services.Clock
	logger     *slog.Logger
}

func NewJobs(
	calendars *services.CalendarService,
	schedules *services.ScheduleService,
	calRepo services.CalendarRepo,
	schedRepo services.ScheduleRepo,
	settings services.SettingsRepo,
	dispatcher services.Dispatcher,
	hot cache.Store,
	cfg *config.Config,
	clk services.Clock,
	logger *slog.Logger,
) *Jobs {
	return &Jobs{
		calendars:  calendars,
		schedules:  schedules,
		calRepo:    calRepo,
		schedRepo:  schedRepo,
		settings:   settings,
		dispatcher: dispatcher,
		hot:        hot,
		cfg:        cfg,
		clock:      clk,
		logger:     logger,
	}
}

// Registrar is the subset of the pool the jobs need for wiring.
type Registrar interface {
	Register(name string, h Handler)
}

// RegisterHandlers binds the queue-consumed job names.
func (j *Jobs) RegisterHandlers(r Registrar) {
	r.Register(services.JobFetchYearly, func(ctx context.Context, payload []byte) error {
		var p services.FetchYearlyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return errs.Wrap(errs.Permanent, err, "decode yearly fetch payload")
		}
		return j.calendars.FetchAndCacheYearly(ctx, p)
	})
	r.Register(services.JobGenerateSchedule, func(ctx context.Context, payload []byte) error {
		var p services.GenerateSchedulePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return errs.Wrap(errs.Permanent, err, "decode schedule payload")
		}
		_, err := j.schedules.Materialize(ctx, p.OwnerID, p.Year, p.Month)
		return err
	})
}

// waveHash spreads a zone-method pair over the year's days.
func waveHash(zoneID, methodKey string) uint64 {
	sum := sha256.Sum256([]byte(zoneID + "-" + methodKey))
	return binary.BigEndian.Uint64(sum[:8])
}

// YearlyWave is the daily rolling fetch of next year's calendars: each
// (zone, method) pair is assigned one day of the current year by hash,
// and on its day gets a fetch enqueued unless next year's calendar
// already exists. The single-flight lock makes same-day repeats no-ops.
func (j *Jobs) YearlyWave(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveTask("proactive_yearly_calendar_fetcher", start, err) }()

	now := j.clock.Now()
	year := now.Year()
	waveSize := uint64(models.DaysInYear(year))
	today := uint64(now.YearDay()) % waveSize

	var cals []models.YearlyCalendar
	cals, err = j.calRepo.ListForYear(ctx, year, j.cfg.CacheSchemaVersion)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, cal := range cals {
		if waveHash(cal.ZoneID, cal.MethodKey)%waveSize != today {
			continue
		}
		if _, getErr := j.calRepo.Get(ctx, cal.ZoneID, year+1, cal.MethodKey, j.cfg.CacheSchemaVersion); getErr == nil {
			continue
		} else if errs.KindOf(getErr) != errs.NotFound {
			j.logger.Warn("next-year probe failed", "zone", cal.ZoneID, "err", getErr)
			continue
		}

		lat, lon, coordErr := calendarCoordinates(cal, j.cfg.ZoneGridSize)
		if coordErr != nil {
			j.logger.Warn("cannot recover coordinates", "zone", cal.ZoneID, "err", coordErr)
			continue
		}

		lockKey := cache.FetchLockKey(cal.ZoneID, year+1, cal.MethodKey)
		won, lockErr := j.hot.SetNX(ctx, lockKey, "yearly_wave", j.cfg.FetchLockTTL)
		if lockErr != nil || !won {
			continue
		}

		payload, _ := json.Marshal(services.FetchYearlyPayload{
			ZoneID:    cal.ZoneID,
			Latitude:  lat,
			Longitude: lon,
			Year:      year + 1,
			MethodKey: cal.MethodKey,
		})
		if delayErr := j.dispatcher.Delay(ctx, services.JobFetchYearly, payload); delayErr != nil {
			_ = j.hot.Del(ctx, lockKey)
			j.logger.Error("yearly wave enqueue failed", "zone", cal.ZoneID, "err", delayErr)
			continue
		}
		enqueued++
	}

	j.logger.Info("yearly wave complete",
		"candidates", humanize.Comma(int64(len(cals))),
		"enqueued", humanize.Comma(int64(enqueued)),
		"took", time.Since(start))
	return nil
}

// calendarCoordinates recovers the fetch coordinate for a stored
// calendar: the recorded coordinate, or the cell center for grid zones
// that predate coordinate recording.
func calendarCoordinates(cal models.YearlyCalendar, gridSize float64) (float64, float64, error) {
	if cal.Latitude != 0 || cal.Longitude != 0 {
		return cal.Latitude, cal.Longitude, nil
	}
	if models.IsGridZone(cal.ZoneID) {
		return models.GridZoneCenter(cal.ZoneID, gridSize)
	}
	return 0, 0, errs.Newf(errs.Permanent, "calendar %s has no coordinates", cal.ZoneID)
}

// MonthlyWave is the daily rolling schedule builder: owners are striped
// across SCHEDULE_GENERATION_DAYS buckets by id; an owner's day enqueues
// next month's materialization when no script exists yet.
func (j *Jobs) MonthlyWave(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveTask("master_schedule_generator", start, err) }()

	now := j.clock.Now()
	bucket := int64(now.Day()-1) % int64(j.cfg.ScheduleGenerationDays)
	nextMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	year, month := nextMonth.Year(), int(nextMonth.Month())

	var owners []int64
	owners, err = j.settings.ListOwnerIDs(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, id := range owners {
		if id%int64(j.cfg.ScheduleGenerationDays) != bucket {
			continue
		}
		if _, getErr := j.schedRepo.Get(ctx, id, year, month); getErr == nil {
			continue
		} else if errs.KindOf(getErr) != errs.NotFound {
			j.logger.Warn("schedule probe failed", "owner", id, "err", getErr)
			continue
		}

		payload, _ := json.Marshal(services.GenerateSchedulePayload{OwnerID: id, Year: year, Month: month})
		if delayErr := j.dispatcher.Delay(ctx, services.JobGenerateSchedule, payload); delayErr != nil {
			j.logger.Error("monthly wave enqueue failed", "owner", id, "err", delayErr)
			continue
		}
		enqueued++
	}

	j.logger.Info("monthly wave complete",
		"owners", humanize.Comma(int64(len(owners))),
		"enqueued", humanize.Comma(int64(enqueued)),
		"took", time.Since(start))
	return nil
}

// Cleanup purges cold calendars from past years and scripts older than
// last month. Hot entries expire on their own.
func (j *Jobs) Cleanup(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveTask("cleanup_old_calendars", start, err) }()

	now := j.clock.Now()
	var calendars int64
	calendars, err = j.calRepo.DeleteBefore(ctx, now.Year())
	if err != nil {
		return err
	}

	prevMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	schedules, err := j.schedRepo.DeleteBefore(ctx, prevMonth.Year(), int(prevMonth.Month()))
	if err != nil {
		return err
	}

	j.logger.Info("cleanup complete",
		"calendars", humanize.Comma(calendars),
		"schedules", humanize.Comma(schedules),
		"took", time.Since(start))
	return nil
}
