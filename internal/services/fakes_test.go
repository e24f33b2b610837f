package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

type fakeCalendarRepo struct {
	mu        sync.Mutex
	calendars map[string]*models.YearlyCalendar
	upserts   int
}

func newFakeCalendarRepo() *fakeCalendarRepo {
	return &fakeCalendarRepo{calendars: map[string]*models.YearlyCalendar{}}
}

func calKey(zoneID string, year int, methodKey, schema string) string {
	return fmt.Sprintf("%s|%d|%s|%s", zoneID, year, methodKey, schema)
}

func (r *fakeCalendarRepo) Get(_ context.Context, zoneID string, year int, methodKey, schema string) (*models.YearlyCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[calKey(zoneID, year, methodKey, schema)]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "calendar %s/%d/%s not stored", zoneID, year, methodKey)
	}
	cp := *cal
	return &cp, nil
}

func (r *fakeCalendarRepo) Upsert(_ context.Context, cal *models.YearlyCalendar) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	key := calKey(cal.ZoneID, cal.Year, cal.MethodKey, cal.SchemaVersion)
	if prev, ok := r.calendars[key]; ok && prev.ContentHash == cal.ContentHash {
		prev.UpdatedAt = cal.UpdatedAt
		return false, nil
	}
	cp := *cal
	r.calendars[key] = &cp
	return true, nil
}

func (r *fakeCalendarRepo) ListForYear(_ context.Context, year int, schema string) ([]models.YearlyCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.YearlyCalendar
	for _, cal := range r.calendars {
		if cal.Year == year && cal.SchemaVersion == schema {
			out = append(out, *cal)
		}
	}
	return out, nil
}

func (r *fakeCalendarRepo) DeleteBefore(_ context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, cal := range r.calendars {
		if cal.Year < year {
			delete(r.calendars, key)
			n++
		}
	}
	return n, nil
}

type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*models.MonthlySchedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: map[string]*models.MonthlySchedule{}}
}

func schedKey(ownerID int64, year, month int) string {
	return fmt.Sprintf("%d|%d|%d", ownerID, year, month)
}

func (r *fakeScheduleRepo) Get(_ context.Context, ownerID int64, year, month int) (*models.MonthlySchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[schedKey(ownerID, year, month)]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "no schedule for owner %d %d-%02d", ownerID, year, month)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeScheduleRepo) Upsert(_ context.Context, s *models.MonthlySchedule) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := schedKey(s.OwnerID, s.Year, s.Month)
	if prev, ok := r.schedules[key]; ok {
		if prev.ScriptHash == s.ScriptHash {
			prev.UpdatedAt = s.UpdatedAt
			return false, nil
		}
		cp := *s
		cp.Version = prev.Version + 1
		r.schedules[key] = &cp
		return true, nil
	}
	cp := *s
	cp.Version = 1
	r.schedules[key] = &cp
	return true, nil
}

func (r *fakeScheduleRepo) Delete(_ context.Context, ownerID int64, year, month int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, schedKey(ownerID, year, month))
	return nil
}

func (r *fakeScheduleRepo) DeleteBefore(_ context.Context, year, month int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, s := range r.schedules {
		if s.Year < year || (s.Year == year && s.Month < month) {
			delete(r.schedules, key)
			n++
		}
	}
	return n, nil
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[int64]*models.OwnerSettings
	lastRaw  map[int64]map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings: map[int64]*models.OwnerSettings{},
		lastRaw:  map[int64]map[string]string{},
	}
}

func (r *fakeSettingsRepo) Get(_ context.Context, ownerID int64) (*models.OwnerSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[ownerID]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "owner %d has no settings", ownerID)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSettingsRepo) Put(_ context.Context, s *models.OwnerSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.settings[s.OwnerID] = &cp
	return nil
}

func (r *fakeSettingsRepo) LastRaw(_ context.Context, ownerID int64) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.lastRaw[ownerID]
	if !ok {
		return map[string]string{}, nil
	}
	return raw, nil
}

func (r *fakeSettingsRepo) PutLastRaw(_ context.Context, ownerID int64, rawTimes map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRaw[ownerID] = rawTimes
	return nil
}

func (r *fakeSettingsRepo) ListOwnerIDs(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id := range r.settings {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeAliasRepo struct {
	mu      sync.Mutex
	aliases map[string]*models.ZoneAlias
}

func newFakeAliasRepo() *fakeAliasRepo {
	return &fakeAliasRepo{aliases: map[string]*models.ZoneAlias{}}
}

func (r *fakeAliasRepo) Get(_ context.Context, sourceZoneID, methodKey string) (*models.ZoneAlias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.aliases[sourceZoneID+"|"+methodKey]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "no alias for %s/%s", sourceZoneID, methodKey)
	}
	return a, nil
}

func (r *fakeAliasRepo) Put(_ context.Context, alias *models.ZoneAlias) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias.SourceZoneID+"|"+alias.MethodKey] = alias
	return nil
}

type fakeOwnerRepo struct {
	mu         sync.Mutex
	owners     map[int64]*models.OwnerInfo
	collective map[int64]bool
	follows    map[string]int64
	notices    map[int64][]models.Announcement
}

func newFakeOwnerRepo() *fakeOwnerRepo {
	return &fakeOwnerRepo{
		owners:     map[int64]*models.OwnerInfo{},
		collective: map[int64]bool{},
		follows:    map[string]int64{},
		notices:    map[int64][]models.Announcement{},
	}
}

func (r *fakeOwnerRepo) Info(_ context.Context, ownerID int64) (*models.OwnerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.owners[ownerID]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "owner %d not found", ownerID)
	}
	return info, nil
}

func (r *fakeOwnerRepo) IsCollective(_ context.Context, ownerID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[ownerID]; !ok {
		return false, errs.Newf(errs.NotFound, "owner %d not found", ownerID)
	}
	return r.collective[ownerID], nil
}

func (r *fakeOwnerRepo) Follow(_ context.Context, subjectID string, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.follows[subjectID] = ownerID
	return nil
}

func (r *fakeOwnerRepo) FollowedOwner(_ context.Context, subjectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.follows[subjectID]
	if !ok {
		return 0, errs.Newf(errs.NotFound, "subject %s follows no owner", subjectID)
	}
	return id, nil
}

func (r *fakeOwnerRepo) Announcements(_ context.Context, ownerID int64, limit int) ([]models.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.notices[ownerID]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type fakeGeocodeCache struct {
	mu     sync.Mutex
	places map[string]geocode.Place
}

func newFakeGeocodeCache() *fakeGeocodeCache {
	return &fakeGeocodeCache{places: map[string]geocode.Place{}}
}

func (r *fakeGeocodeCache) Get(_ context.Context, gridKey string) (geocode.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.places[gridKey]
	if !ok {
		return geocode.Place{}, errs.Newf(errs.NotFound, "no cached place for %s", gridKey)
	}
	return p, nil
}

func (r *fakeGeocodeCache) Put(_ context.Context, gridKey string, p geocode.Place) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.places[gridKey] = p
	return nil
}

type fakeGeocoder struct {
	place geocode.Place
	err   error
	calls int
}

func (g *fakeGeocoder) Name() string { return "fake" }

func (g *fakeGeocoder) Reverse(_ context.Context, lat, lon float64) (geocode.Place, error) {
	g.calls++
	if g.err != nil {
		return geocode.Place{}, g.err
	}
	return g.place, nil
}

// recordingDispatcher collects enqueued jobs without running them.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []string
}

func (d *recordingDispatcher) Delay(_ context.Context, name string, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, name)
	return nil
}

func (d *recordingDispatcher) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, j := range d.jobs {
		if j == name {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (n *fakeNotifier) NotifyFollowers(_ context.Context, ownerID int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, ownerID)
	return nil
}

// fakePrayerClient serves synthetic calendars and counts calls.
type fakePrayerClient struct {
	mu          sync.Mutex
	yearlyCalls int
	dailyCalls  int
	timings     map[string]string
}

func (c *fakePrayerClient) Name() string { return "fake" }

func (c *fakePrayerClient) dayTimings() map[string]string {
	if c.timings != nil {
		return c.timings
	}
	return map[string]string{
		models.KeyFajr:    "05:00",
		models.KeySunrise: "06:12",
		models.KeyDhuhr:   "12:30",
		models.KeyAsr:     "16:00",
		models.KeySunset:  "18:20",
		models.KeyMaghrib: "18:20",
		models.KeyIsha:    "20:00",
		models.KeyImsak:   "04:50",
	}
}

func (c *fakePrayerClient) FetchYear(_ context.Context, lat, lon float64, year int, _ models.MethodKey) ([]models.DailyTimings, error) {
	c.mu.Lock()
	c.yearlyCalls++
	c.mu.Unlock()
	days := make([]models.DailyTimings, 0, models.DaysInYear(year))
	for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		days = append(days, models.DailyTimings{
			Date:    d.Format(models.DateLayout),
			Timings: c.dayTimings(),
		})
	}
	return days, nil
}

func (c *fakePrayerClient) FetchDay(_ context.Context, lat, lon float64, date time.Time, _ models.MethodKey) (models.DailyTimings, error) {
	c.mu.Lock()
	c.dailyCalls++
	c.mu.Unlock()
	return models.DailyTimings{
		Date:    date.Format(models.DateLayout),
		Timings: c.dayTimings(),
	}, nil
}
