package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quraeshi99/NoorTime/internal/models"
)

type scheduleFixture struct {
	svc      *ScheduleService
	repo     *fakeScheduleRepo
	settings *fakeSettingsRepo
	owners   *fakeOwnerRepo
	client   *fakePrayerClient
	disp     *recordingDispatcher
}

func newScheduleFixture(t *testing.T) *scheduleFixture {
	t.Helper()
	cfg := testConfig()
	logger := testLogger()
	hot := testHot(t)
	clk := FixedClock{T: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}

	client := &fakePrayerClient{}
	disp := &recordingDispatcher{}
	calRepo := newFakeCalendarRepo()
	calendars := NewCalendarService(hot, calRepo, client, disp, cfg, clk, logger)
	resolver := NewResolver(delhiGeocoder(), newFakeGeocodeCache(), calRepo, newFakeAliasRepo(), hot, testMethodMap(t), cfg, logger)

	schedRepo := newFakeScheduleRepo()
	settingsRepo := newFakeSettingsRepo()
	ownerRepo := newFakeOwnerRepo()
	svc := NewScheduleService(calendars, resolver, schedRepo, settingsRepo, ownerRepo, cfg, clk, logger)

	return &scheduleFixture{
		svc:      svc,
		repo:     schedRepo,
		settings: settingsRepo,
		owners:   ownerRepo,
		client:   client,
		disp:     disp,
	}
}

func (f *scheduleFixture) seedOwner(t *testing.T, ownerID int64) {
	t.Helper()
	s := &models.OwnerSettings{
		OwnerID:   ownerID,
		Latitude:  28.60,
		Longitude: 77.20,
		MethodKey: models.MethodKey{Method: 1, HighLat: 1},
		Rules: map[string]models.PrayerRule{
			models.KeyDhuhr: {Mode: models.RuleOffset, AzanOffset: 10, JamaatOffset: 15},
		},
		Jummah:   models.JummahRule{Mode: models.RuleOffset, AzanOffset: 15, KhutbahOffset: 15, JamaatOffset: 15},
		Timezone: "Asia/Kolkata",
	}
	require.NoError(t, f.settings.Put(context.Background(), s))
}

func byDate(script []models.ScriptInterval) map[string][]models.ScriptInterval {
	days := map[string][]models.ScriptInterval{}
	for _, iv := range script {
		days[iv.Date] = append(days[iv.Date], iv)
	}
	return days
}

func TestMaterializeCoversEveryDayWithoutGaps(t *testing.T) {
	f := newScheduleFixture(t)
	f.seedOwner(t, 7)

	sched, err := f.svc.Materialize(context.Background(), 7, 2026, 3)
	require.NoError(t, err)
	require.NotEmpty(t, sched.Script)

	days := byDate(sched.Script)
	assert.Len(t, days, 31)

	for date, ivs := range days {
		assert.Equal(t, "00:00:00", ivs[0].Start, "day %s must open at midnight", date)
		assert.Equal(t, "24:00:00", ivs[len(ivs)-1].End, "day %s must close the day", date)
		for i := 1; i < len(ivs); i++ {
			assert.Equal(t, ivs[i-1].End, ivs[i].Start,
				"day %s interval %d must start where the previous one ends", date, i)
		}
		for _, iv := range ivs {
			assert.Less(t, iv.Start, iv.End, "day %s has an empty or inverted interval", date)
		}
	}
}

func TestMaterializeFridayCarriesJummah(t *testing.T) {
	f := newScheduleFixture(t)
	f.seedOwner(t, 7)

	sched, err := f.svc.Materialize(context.Background(), 7, 2026, 3)
	require.NoError(t, err)

	days := byDate(sched.Script)

	kinds := func(date string) map[models.IntervalKind]int {
		counts := map[models.IntervalKind]int{}
		for _, iv := range days[date] {
			counts[iv.Kind]++
		}
		return counts
	}

	friday := kinds("2026-03-06")
	assert.Equal(t, 1, friday[models.KindJummah])
	for _, iv := range days["2026-03-06"] {
		if iv.Kind == models.KindJamaat {
			assert.NotEqual(t, models.KeyDhuhr, iv.Prayer, "Jummah replaces Friday Dhuhr")
		}
	}

	monday := kinds("2026-03-02")
	assert.Zero(t, monday[models.KindJummah])
	assert.Equal(t, len(models.DailyPrayers), monday[models.KindJamaat])
}

func TestMaterializeIdempotentKeepsVersion(t *testing.T) {
	f := newScheduleFixture(t)
	f.seedOwner(t, 7)
	ctx := context.Background()

	first, err := f.svc.Materialize(ctx, 7, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := f.svc.Materialize(ctx, 7, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Version, "identical content must not bump the version")
	assert.Equal(t, first.ScriptHash, second.ScriptHash)
}

func TestMaterializeRuleChangeBumpsVersion(t *testing.T) {
	f := newScheduleFixture(t)
	f.seedOwner(t, 7)
	ctx := context.Background()

	first, err := f.svc.Materialize(ctx, 7, 2026, 3)
	require.NoError(t, err)

	s, err := f.settings.Get(ctx, 7)
	require.NoError(t, err)
	s.Rules[models.KeyDhuhr] = models.PrayerRule{Mode: models.RuleOffset, AzanOffset: 30, JamaatOffset: 15}
	require.NoError(t, f.settings.Put(ctx, s))

	second, err := f.svc.Materialize(ctx, 7, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, first.Version+1, second.Version)
	assert.NotEqual(t, first.ScriptHash, second.ScriptHash)
}

func TestGetMonthlyServesStoredScript(t *testing.T) {
	f := newScheduleFixture(t)
	f.seedOwner(t, 7)
	ctx := context.Background()

	_, err := f.svc.Materialize(ctx, 7, 2026, 3)
	require.NoError(t, err)
	fetched := f.client.dailyCalls

	sched, err := f.svc.GetMonthly(ctx, 7, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Version)
	assert.Equal(t, fetched, f.client.dailyCalls, "a stored script must not refetch timings")
}

func TestGetMonthlyMaterializesOnMiss(t *testing.T) {
	f := newScheduleFixture(t)
	f.seedOwner(t, 7)

	sched, err := f.svc.GetMonthly(context.Background(), 7, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Version)
	assert.NotEmpty(t, sched.Script)
}

func TestEffectiveOwnerFollowsCollective(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	f.owners.owners[42] = &models.OwnerInfo{ID: 42, Name: "Noor Masjid"}
	f.owners.collective[42] = true
	require.NoError(t, f.owners.Follow(ctx, "device-1", 42))

	owner, following, err := f.svc.EffectiveOwner(ctx, "device-1", 7)
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, int64(42), owner)

	owner, following, err = f.svc.EffectiveOwner(ctx, "device-2", 7)
	require.NoError(t, err)
	assert.False(t, following)
	assert.Equal(t, int64(7), owner)
}
