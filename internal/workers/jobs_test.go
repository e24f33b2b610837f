package workers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quraeshi99/NoorTime/internal/cache"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
	"github.com/Quraeshi99/NoorTime/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		ZoneGridSize:             0.2,
		TimeDiffThresholdSeconds: 50,
		CacheSchemaVersion:       "v1",
		TTLYearlyCalendar:        7 * 24 * time.Hour,
		TTLDailyCache:            2 * time.Hour,
		FetchLockTTL:             10 * time.Minute,
		ScheduleGenerationDays:   28,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHot(t *testing.T) cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewRedisFromClient(rdb)
}

type memCalRepo struct {
	mu   sync.Mutex
	cals map[string]*models.YearlyCalendar
}

func newMemCalRepo() *memCalRepo {
	return &memCalRepo{cals: map[string]*models.YearlyCalendar{}}
}

func calKey(zoneID string, year int, methodKey, schema string) string {
	return fmt.Sprintf("%s|%d|%s|%s", zoneID, year, methodKey, schema)
}

func (r *memCalRepo) Get(_ context.Context, zoneID string, year int, methodKey, schema string) (*models.YearlyCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.cals[calKey(zoneID, year, methodKey, schema)]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "calendar %s/%d/%s not stored", zoneID, year, methodKey)
	}
	return cal, nil
}

func (r *memCalRepo) Upsert(_ context.Context, cal *models.YearlyCalendar) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cals[calKey(cal.ZoneID, cal.Year, cal.MethodKey, cal.SchemaVersion)] = cal
	return true, nil
}

func (r *memCalRepo) ListForYear(_ context.Context, year int, schema string) ([]models.YearlyCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.YearlyCalendar
	for _, cal := range r.cals {
		if cal.Year == year && cal.SchemaVersion == schema {
			out = append(out, *cal)
		}
	}
	return out, nil
}

func (r *memCalRepo) DeleteBefore(_ context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, cal := range r.cals {
		if cal.Year < year {
			delete(r.cals, key)
			n++
		}
	}
	return n, nil
}

type memSchedRepo struct {
	mu        sync.Mutex
	schedules map[string]*models.MonthlySchedule
}

func newMemSchedRepo() *memSchedRepo {
	return &memSchedRepo{schedules: map[string]*models.MonthlySchedule{}}
}

func schedKey(ownerID int64, year, month int) string {
	return fmt.Sprintf("%d|%d|%d", ownerID, year, month)
}

func (r *memSchedRepo) Get(_ context.Context, ownerID int64, year, month int) (*models.MonthlySchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[schedKey(ownerID, year, month)]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "no schedule for owner %d %d-%02d", ownerID, year, month)
	}
	return s, nil
}

func (r *memSchedRepo) Upsert(_ context.Context, s *models.MonthlySchedule) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedKey(s.OwnerID, s.Year, s.Month)] = s
	return true, nil
}

func (r *memSchedRepo) Delete(_ context.Context, ownerID int64, year, month int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, schedKey(ownerID, year, month))
	return nil
}

func (r *memSchedRepo) DeleteBefore(_ context.Context, year, month int) (int64, error) {
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

type memSettingsRepo struct {
	mu     sync.Mutex
	owners []int64
}

func (r *memSettingsRepo) Get(context.Context, int64) (*models.OwnerSettings, error) {
	return nil, errs.New(errs.NotFound, "not stored")
}
func (r *memSettingsRepo) Put(context.Context, *models.OwnerSettings) error { return nil }
func (r *memSettingsRepo) LastRaw(context.Context, int64) (map[string]string, error) {
	return map[string]string{}, nil
}
func (r *memSettingsRepo) PutLastRaw(context.Context, int64, map[string]string) error { return nil }
func (r *memSettingsRepo) ListOwnerIDs(context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners, nil
}

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

type jobsFixture struct {
	jobs     *Jobs
	calRepo  *memCalRepo
	sched    *memSchedRepo
	settings *memSettingsRepo
	disp     *recordingDispatcher
	clk      services.FixedClock
}

func newJobsFixture(t *testing.T, now time.Time) *jobsFixture {
	t.Helper()
	f := &jobsFixture{
		calRepo:  newMemCalRepo(),
		sched:    newMemSchedRepo(),
		settings: &memSettingsRepo{},
		disp:     &recordingDispatcher{},
		clk:      services.FixedClock{T: now},
	}
	f.jobs = NewJobs(nil, nil, f.calRepo, f.sched, f.settings, f.disp, testHot(t), testConfig(), f.clk, testLogger())
	return f
}

func storedCalendar(zoneID string, year int) *models.YearlyCalendar {
	return &models.YearlyCalendar{
		ZoneID:        zoneID,
		Year:          year,
		MethodKey:     "1-0-1",
		SchemaVersion: "v1",
		Latitude:      19.21,
		Longitude:     72.84,
	}
}

// zoneForWaveDay finds a synthetic zone id whose wave assignment is the
// given day, so the tests control which side of the selection a calendar
// falls on.
func zoneForWaveDay(day uint64, waveSize uint64, match bool) string {
	for i := 0; ; i++ {
		zone := fmt.Sprintf("adm2:IN/MH/Zone%d", i)
		if (waveHash(zone, "1-0-1")%waveSize == day) == match {
			return zone
		}
	}
}

func TestYearlyWaveEnqueuesOnlyAssignedZones(t *testing.T) {
	now := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	ctx := context.Background()

	waveSize := uint64(models.DaysInYear(2025))
	today := uint64(now.YearDay()) % waveSize
	onZone := zoneForWaveDay(today, waveSize, true)
	offZone := zoneForWaveDay(today, waveSize, false)

	_, err := f.calRepo.Upsert(ctx, storedCalendar(onZone, 2025))
	require.NoError(t, err)
	_, err = f.calRepo.Upsert(ctx, storedCalendar(offZone, 2025))
	require.NoError(t, err)

	require.NoError(t, f.jobs.YearlyWave(ctx))
	assert.Equal(t, 1, f.disp.count(services.JobFetchYearly))
}

func TestYearlyWaveSkipsExistingNextYear(t *testing.T) {
	now := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	ctx := context.Background()

	waveSize := uint64(models.DaysInYear(2025))
	zone := zoneForWaveDay(uint64(now.YearDay())%waveSize, waveSize, true)
	_, err := f.calRepo.Upsert(ctx, storedCalendar(zone, 2025))
	require.NoError(t, err)
	_, err = f.calRepo.Upsert(ctx, storedCalendar(zone, 2026))
	require.NoError(t, err)

	require.NoError(t, f.jobs.YearlyWave(ctx))
	assert.Zero(t, f.disp.count(services.JobFetchYearly))
}

func TestYearlyWaveSameDayRerunIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	ctx := context.Background()

	waveSize := uint64(models.DaysInYear(2025))
	zone := zoneForWaveDay(uint64(now.YearDay())%waveSize, waveSize, true)
	_, err := f.calRepo.Upsert(ctx, storedCalendar(zone, 2025))
	require.NoError(t, err)

	require.NoError(t, f.jobs.YearlyWave(ctx))
	require.NoError(t, f.jobs.YearlyWave(ctx))
	assert.Equal(t, 1, f.disp.count(services.JobFetchYearly), "the fetch lock dedups reruns")
}

func TestYearlyWaveGridZoneWithoutCoordinates(t *testing.T) {
	now := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	ctx := context.Background()

	waveSize := uint64(models.DaysInYear(2025))
	today := uint64(now.YearDay()) % waveSize

	// A grid zone stored before coordinates were recorded still fetches,
	// using the cell center.
	var zone string
	for lat := 0.0; ; lat += 0.2 {
		zone = models.GridZoneID(lat, 77.2, 0.2)
		if waveHash(zone, "1-0-1")%waveSize == today {
			break
		}
	}
	cal := storedCalendar(zone, 2025)
	cal.Latitude, cal.Longitude = 0, 0
	_, err := f.calRepo.Upsert(ctx, cal)
	require.NoError(t, err)

	require.NoError(t, f.jobs.YearlyWave(ctx))
	assert.Equal(t, 1, f.disp.count(services.JobFetchYearly))
}

func TestMonthlyWaveStripesOwnersAcrossDays(t *testing.T) {
	// Day 3 selects bucket 2: owners 2, 30, 58, ...
	now := time.Date(2025, 6, 3, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	f.settings.owners = []int64{1, 2, 30, 57}

	require.NoError(t, f.jobs.MonthlyWave(context.Background()))
	assert.Equal(t, 2, f.disp.count(services.JobGenerateSchedule))
}

func TestMonthlyWaveSkipsExistingSchedules(t *testing.T) {
	now := time.Date(2025, 6, 3, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	f.settings.owners = []int64{2, 30}
	ctx := context.Background()

	// Owner 2 already has July's script.
	_, err := f.sched.Upsert(ctx, &models.MonthlySchedule{OwnerID: 2, Year: 2025, Month: 7})
	require.NoError(t, err)

	require.NoError(t, f.jobs.MonthlyWave(ctx))
	assert.Equal(t, 1, f.disp.count(services.JobGenerateSchedule))
}

func TestCleanupPurgesPastYearsAndStaleMonths(t *testing.T) {
	now := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
	f := newJobsFixture(t, now)
	ctx := context.Background()

	_, err := f.calRepo.Upsert(ctx, storedCalendar("adm2:IN/MH/Old", 2025))
	require.NoError(t, err)
	_, err = f.calRepo.Upsert(ctx, storedCalendar("adm2:IN/MH/Cur", 2026))
	require.NoError(t, err)

	for _, m := range []struct{ year, month int }{{2025, 11}, {2025, 12}, {2026, 1}} {
		_, err = f.sched.Upsert(ctx, &models.MonthlySchedule{OwnerID: 7, Year: m.year, Month: m.month})
		require.NoError(t, err)
	}

	require.NoError(t, f.jobs.Cleanup(ctx))

	_, err = f.calRepo.Get(ctx, "adm2:IN/MH/Old", 2025, "1-0-1", "v1")
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
	_, err = f.calRepo.Get(ctx, "adm2:IN/MH/Cur", 2026, "1-0-1", "v1")
	assert.NoError(t, err)

	// November 2025 is older than last month and goes; December stays.
	_, err = f.sched.Get(ctx, 7, 2025, 11)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
	_, err = f.sched.Get(ctx, 7, 2025, 12)
	assert.NoError(t, err)
	_, err = f.sched.Get(ctx, 7, 2026, 1)
	assert.NoError(t, err)
}

func TestPoolDelayUnknownJob(t *testing.T) {
	p := NewPool(1, 4, testLogger())
	err := p.Delay(context.Background(), "nope", nil)
	assert.Equal(t, errs.Internal, errs.KindOf(err))
}

func TestPoolQueueFullIsTransient(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	p.Register("job", func(context.Context, []byte) error { return nil })

	// Workers are not started, so the second enqueue finds the queue full.
	require.NoError(t, p.Delay(context.Background(), "job", nil))
	err := p.Delay(context.Background(), "job", nil)
	assert.Equal(t, errs.Transient, errs.KindOf(err))
}

func TestPoolRunsRegisteredHandler(t *testing.T) {
	p := NewPool(2, 4, testLogger())
	done := make(chan []byte, 1)
	p.Register("job", func(_ context.Context, payload []byte) error {
		done <- payload
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	require.NoError(t, p.Delay(ctx, "job", []byte(`{"n":1}`)))
	select {
	case got := <-done:
		assert.JSONEq(t, `{"n":1}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}

	cancel()
	p.Wait()
}

func TestSyncDispatcherRunsInline(t *testing.T) {
	d := NewSyncDispatcher()
	var got []byte
	d.Register("echo", func(_ context.Context, payload []byte) error {
		got = payload
		return nil
	})

	require.NoError(t, d.Delay(context.Background(), "echo", []byte(`{"n":1}`)))
	assert.Equal(t, []string{"echo"}, d.Enqueued)
	assert.JSONEq(t, `{"n":1}`, string(got))

	// Unregistered names only record the enqueue.
	require.NoError(t, d.Delay(context.Background(), "missing", nil))
	assert.Equal(t, []string{"echo", "missing"}, d.Enqueued)
}
