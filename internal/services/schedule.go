package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/clock"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// JobGenerateSchedule is the per-owner materialization task name.
const JobGenerateSchedule = "generate_schedule_for_single_user"

// GenerateSchedulePayload is the JSON payload of a JobGenerateSchedule
// task.
type GenerateSchedulePayload struct {
	OwnerID int64 `json:"owner_id"`
	Year    int   `json:"year"`
	Month   int   `json:"month"`
}

const (
	preJamaatAlertSeconds = 120
	postJamaatInfoSeconds = 600
	dayEnd                = "24:00:00"
)

// ScheduleService materializes and serves monthly director's scripts.
type ScheduleService struct {
	calendars *CalendarService
	resolver  *Resolver
	repo      ScheduleRepo
	settings  SettingsRepo
	owners    OwnerRepo
	cfg       *config.Config
	clock     Clock
	logger    *slog.Logger
}

func NewScheduleService(
	calendars *CalendarService,
	resolver *Resolver,
	repo ScheduleRepo,
	settings SettingsRepo,
	owners OwnerRepo,
	cfg *config.Config,
	clk Clock,
	logger *slog.Logger,
) *ScheduleService {
	return &ScheduleService{
		calendars: calendars,
		resolver:  resolver,
		repo:      repo,
		settings:  settings,
		owners:    owners,
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
	}
}

// EffectiveOwner maps a subject onto the owner whose schedule it reads:
// the followed collective owner when a follow exists, otherwise the
// subject's own owner id.
func (s *ScheduleService) EffectiveOwner(ctx context.Context, subjectID string, ownOwnerID int64) (int64, bool, error) {
	followed, err := s.owners.FollowedOwner(ctx, subjectID)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return ownOwnerID, false, nil
		}
		return 0, false, err
	}
	return followed, true, nil
}

// GetMonthly serves an owner-month script, materializing on a miss.
func (s *ScheduleService) GetMonthly(ctx context.Context, ownerID int64, year, month int) (*models.MonthlySchedule, error) {
	if sched, err := s.repo.Get(ctx, ownerID, year, month); err == nil {
		return sched, nil
	} else if errs.KindOf(err) != errs.NotFound {
		return nil, err
	}
	return s.Materialize(ctx, ownerID, year, month)
}

// Materialize builds the full month's script and stores it with
// compare-before-write: an unchanged hash is a no-op, a changed one
// replaces the record and bumps its version.
func (s *ScheduleService) Materialize(ctx context.Context, ownerID int64, year, month int) (*models.MonthlySchedule, error) {
	settings, err := s.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	lastRaw, err := s.settings.LastRaw(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, errs.Wrapf(errs.Permanent, err, "owner %d timezone %q", ownerID, settings.Timezone)
	}

	res, err := s.resolver.Resolve(ctx, settings.Latitude, settings.Longitude, settings.MethodKey, year)
	if err != nil {
		return nil, err
	}
	methodKey := res.MethodKey.String()

	var script []models.ScriptInterval
	warningSet := map[string]struct{}{}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	for date := first; date.Month() == time.Month(month); date = date.AddDate(0, 0, 1) {
		today, err := s.calendars.GetDay(ctx, res.ZoneID, settings.Latitude, settings.Longitude, date, methodKey)
		if err != nil {
			return nil, err
		}
		tomorrow, err := s.calendars.GetDay(ctx, res.ZoneID, settings.Latitude, settings.Longitude, date.AddDate(0, 0, 1), methodKey)
		if err != nil {
			return nil, err
		}

		display := ComputeDisplayTimes(CalcInput{
			Date:     date,
			Today:    today,
			Tomorrow: tomorrow,
			Settings: settings,
			LastRaw:  lastRaw,
		})
		for _, w := range display.Warnings {
			warningSet[w] = struct{}{}
		}

		dayScript, err := buildDayScript(date, display)
		if err != nil {
			return nil, err
		}
		script = append(script, dayScript...)
	}

	warnings := make([]string, 0, len(warningSet))
	for w := range warningSet {
		warnings = append(warnings, w)
	}
	sort.Strings(warnings)

	now := s.clock.Now().UTC()
	sched := &models.MonthlySchedule{
		OwnerID:     ownerID,
		Year:        year,
		Month:       month,
		Version:     1,
		GeneratedAt: now,
		UpdatedAt:   now,
		Warnings:    warnings,
		Script:      script,
		ScriptHash:  models.HashScript(script),
	}

	changed, err := s.repo.Upsert(ctx, sched)
	if err != nil {
		return nil, err
	}
	s.logger.Info("monthly schedule materialized",
		"owner", ownerID, "year", year, "month", month, "changed", changed)

	// Read back so version reflects what the store decided.
	return s.repo.Get(ctx, ownerID, year, month)
}

// jamaatEvent is one congregational event of a day, sorted by azan.
type jamaatEvent struct {
	prayer string
	kind   models.IntervalKind
	azan   clock.Time
	jamaat clock.Time
}

// buildDayScript emits the day's intervals: idle until azan, the
// azan-to-jamaat window with a 120s alert tail, the 1s jamaat point, a
// 600s info window, then idle until the next azan. Coverage of
// [00:00, 24:00) is exact with no gaps or overlaps.
func buildDayScript(date time.Time, display models.DisplayTimes) ([]models.ScriptInterval, error) {
	events, err := collectJamaatEvents(date, display)
	if err != nil {
		return nil, err
	}

	dateStr := date.Format(models.DateLayout)
	var out []models.ScriptInterval
	emit := func(kind models.IntervalKind, prayer string, start, end int) {
		if end <= start {
			return
		}
		out = append(out, models.ScriptInterval{
			Date:   dateStr,
			Kind:   kind,
			Prayer: prayer,
			Start:  secsToScript(start),
			End:    secsToScript(end),
		})
	}

	cursor := 0
	idleKind := models.KindPrePrayerIdle
	for _, ev := range events {
		azan := ev.azan.Seconds()
		jamaat := ev.jamaat.Seconds()
		// A display pair that the boundary check wrapped past midnight
		// (Isha) is pinned to the end of the day for scripting purposes.
		if azan < cursor {
			azan = cursor
		}
		if jamaat < azan {
			jamaat = azan
		}
		if jamaat >= clock.SecondsPerDay {
			jamaat = clock.SecondsPerDay - 1
		}

		alertStart := jamaat - preJamaatAlertSeconds
		if alertStart < azan {
			alertStart = azan
		}

		emit(idleKind, ev.prayer, cursor, azan)
		emit(models.KindPreAzanWindow, ev.prayer, azan, alertStart)
		emit(models.KindPreJamaatAlert, ev.prayer, alertStart, jamaat)
		emit(ev.kind, ev.prayer, jamaat, jamaat+1)
		infoEnd := jamaat + 1 + postJamaatInfoSeconds
		if infoEnd > clock.SecondsPerDay {
			infoEnd = clock.SecondsPerDay
		}
		emit(models.KindPostJamaatInfo, ev.prayer, jamaat+1, infoEnd)

		cursor = infoEnd
		idleKind = models.KindPostPrayerIdle
	}
	emit(idleKind, "", cursor, clock.SecondsPerDay)

	return out, nil
}

// collectJamaatEvents gathers the day's congregational events in time
// order, with Jummah replacing Dhuhr on Fridays.
func collectJamaatEvents(date time.Time, display models.DisplayTimes) ([]jamaatEvent, error) {
	friday := date.Weekday() == time.Friday

	var events []jamaatEvent
	for _, prayer := range models.DailyPrayers {
		if friday && prayer == models.KeyDhuhr {
			if ev, ok := jummahEvent(display.Jummah); ok {
				events = append(events, ev)
			}
			continue
		}
		d := display.Prayers[prayer]
		azan, errA := clock.Parse(d.Azan)
		jamaat, errJ := clock.Parse(d.Jamaat)
		if errA != nil || errJ != nil {
			// "N/A" entries simply have no congregational event.
			continue
		}
		events = append(events, jamaatEvent{
			prayer: prayer,
			kind:   models.KindJamaat,
			azan:   azan,
			jamaat: jamaat,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].azan.Before(events[j].azan)
	})
	return events, nil
}

func jummahEvent(j models.JummahDisplay) (jamaatEvent, bool) {
	azan, errA := clock.Parse(j.Azan)
	jamaat, errJ := clock.Parse(j.Jamaat)
	if errA != nil || errJ != nil {
		return jamaatEvent{}, false
	}
	return jamaatEvent{prayer: "Jummah", kind: models.KindJummah, azan: azan, jamaat: jamaat}, true
}

// secsToScript renders a seconds-since-midnight position, with 86400
// rendered as the day-closing "24:00:00".
func secsToScript(secs int) string {
	if secs >= clock.SecondsPerDay {
		return dayEnd
	}
	return clock.FromSeconds(secs).StringSeconds()
}
