package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

type settingsFixture struct {
	svc       *SettingsService
	settings  *fakeSettingsRepo
	schedules *fakeScheduleRepo
	owners    *fakeOwnerRepo
	notifier  *fakeNotifier
	clk       FixedClock
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()
	f := &settingsFixture{
		settings:  newFakeSettingsRepo(),
		schedules: newFakeScheduleRepo(),
		owners:    newFakeOwnerRepo(),
		notifier:  &fakeNotifier{},
		clk:       FixedClock{T: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
	}
	f.svc = NewSettingsService(f.settings, f.schedules, f.owners, f.notifier, f.clk, testLogger())
	return f
}

func ownerSettings(ownerID int64) *models.OwnerSettings {
	return &models.OwnerSettings{
		OwnerID:   ownerID,
		Latitude:  19.21,
		Longitude: 72.84,
		MethodKey: models.MethodKey{Method: 1, HighLat: 1},
		Rules: map[string]models.PrayerRule{
			models.KeyFajr: {Mode: models.RuleOffset, AzanOffset: 10, JamaatOffset: 15},
		},
		Timezone:   "Asia/Kolkata",
		TimeFormat: "12h",
	}
}

func TestUpdateRejectsInvalidSettings(t *testing.T) {
	f := newSettingsFixture(t)

	bad := ownerSettings(7)
	bad.Rules[models.KeyFajr] = models.PrayerRule{Mode: models.RuleOffset, AzanOffset: 500}

	err := f.svc.Update(context.Background(), "device-1", bad)
	assert.Equal(t, errs.Permanent, errs.KindOf(err))
}

func TestUpdatePrayerChangeLockedWhileFollowing(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	f.owners.owners[42] = &models.OwnerInfo{ID: 42, Name: "Noor Masjid"}
	f.owners.collective[42] = true
	require.NoError(t, f.owners.Follow(ctx, "device-1", 42))
	require.NoError(t, f.settings.Put(ctx, ownerSettings(7)))

	next := ownerSettings(7)
	next.Rules[models.KeyFajr] = models.PrayerRule{Mode: models.RuleOffset, AzanOffset: 20, JamaatOffset: 15}

	err := f.svc.Update(ctx, "device-1", next)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	// The stored settings are untouched.
	stored, err := f.settings.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Rules[models.KeyFajr].AzanOffset)
}

func TestUpdateDisplayChangeAllowedWhileFollowing(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	f.owners.owners[42] = &models.OwnerInfo{ID: 42, Name: "Noor Masjid"}
	require.NoError(t, f.owners.Follow(ctx, "device-1", 42))
	require.NoError(t, f.settings.Put(ctx, ownerSettings(7)))

	// Pre-seed a schedule to prove display changes leave it alone.
	_, err := f.schedules.Upsert(ctx, &models.MonthlySchedule{
		OwnerID: 7, Year: 2026, Month: 3, ScriptHash: "h1",
	})
	require.NoError(t, err)

	next := ownerSettings(7)
	next.TimeFormat = "24h"
	require.NoError(t, f.svc.Update(ctx, "device-1", next))

	stored, err := f.settings.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "24h", stored.TimeFormat)

	_, err = f.schedules.Get(ctx, 7, 2026, 3)
	assert.NoError(t, err, "display-only changes must not invalidate the script")
}

func TestUpdatePrayerChangeInvalidatesCurrentMonth(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	require.NoError(t, f.settings.Put(ctx, ownerSettings(7)))
	_, err := f.schedules.Upsert(ctx, &models.MonthlySchedule{
		OwnerID: 7, Year: 2026, Month: 3, ScriptHash: "h1",
	})
	require.NoError(t, err)

	next := ownerSettings(7)
	next.Rules[models.KeyFajr] = models.PrayerRule{Mode: models.RuleFixed, FixedAzan: "05:15", FixedJamaat: "05:30"}
	require.NoError(t, f.svc.Update(ctx, "", next))

	_, err = f.schedules.Get(ctx, 7, 2026, 3)
	assert.Equal(t, errs.NotFound, errs.KindOf(err), "the current-month script must be cleared")
}

func TestUpdateCollectiveChangeNotifiesFollowers(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	f.owners.owners[42] = &models.OwnerInfo{ID: 42, Name: "Noor Masjid"}
	f.owners.collective[42] = true
	require.NoError(t, f.settings.Put(ctx, ownerSettings(42)))

	next := ownerSettings(42)
	next.Rules[models.KeyFajr] = models.PrayerRule{Mode: models.RuleOffset, AzanOffset: 25, JamaatOffset: 15}
	require.NoError(t, f.svc.Update(ctx, "", next))

	assert.Equal(t, []int64{42}, f.notifier.calls)
}

func TestUpdateIndividualChangeDoesNotNotify(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	f.owners.owners[7] = &models.OwnerInfo{ID: 7, Name: "someone"}
	require.NoError(t, f.settings.Put(ctx, ownerSettings(7)))

	next := ownerSettings(7)
	next.ThresholdMinutes = 5
	require.NoError(t, f.svc.Update(ctx, "", next))

	assert.Empty(t, f.notifier.calls)
}

func TestUpdateOwnMasjidSettingsWhileFollowingIt(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	// A masjid admin follows their own masjid; its settings stay editable.
	f.owners.owners[42] = &models.OwnerInfo{ID: 42, Name: "Noor Masjid"}
	f.owners.collective[42] = true
	require.NoError(t, f.owners.Follow(ctx, "admin-device", 42))
	require.NoError(t, f.settings.Put(ctx, ownerSettings(42)))

	next := ownerSettings(42)
	next.Rules[models.KeyFajr] = models.PrayerRule{Mode: models.RuleOffset, AzanOffset: 30, JamaatOffset: 15}
	require.NoError(t, f.svc.Update(ctx, "admin-device", next))
}
