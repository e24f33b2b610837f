package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/services"
)

// stepClock is a Clock the test advances by hand.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newSchedulerFixture(t *testing.T, now time.Time) (*Scheduler, *jobsFixture, *stepClock) {
	t.Helper()
	clk := &stepClock{t: now}
	f := &jobsFixture{
		calRepo:  newMemCalRepo(),
		sched:    newMemSchedRepo(),
		settings: &memSettingsRepo{},
		disp:     &recordingDispatcher{},
	}
	cfg := testConfig()
	cfg.CleanupMonth = 1
	cfg.CleanupDay = 5
	f.jobs = NewJobs(nil, nil, f.calRepo, f.sched, f.settings, f.disp, testHot(t), cfg, clk, testLogger())
	return NewScheduler(f.jobs, cfg, clk, testLogger()), f, clk
}

func TestTickRunsWavesOncePerDay(t *testing.T) {
	// June 1st selects bucket 0; owner 28 sits in it.
	sched, f, clk := newSchedulerFixture(t, time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC))
	f.settings.owners = []int64{28}
	ctx := context.Background()

	sched.Tick(ctx)
	sched.Tick(ctx)
	assert.Equal(t, 1, f.disp.count(services.JobGenerateSchedule), "same-day ticks must not rerun the waves")

	// Next day, bucket 1: owner 29.
	f.settings.owners = []int64{29}
	clk.advance(24 * time.Hour)
	sched.Tick(ctx)
	assert.Equal(t, 2, f.disp.count(services.JobGenerateSchedule))
}

func TestTickRunsCleanupOnConfiguredDate(t *testing.T) {
	sched, f, clk := newSchedulerFixture(t, time.Date(2026, 1, 4, 1, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.calRepo.Upsert(ctx, storedCalendar("adm2:IN/MH/Old", 2025))
	require.NoError(t, err)

	sched.Tick(ctx)
	_, err = f.calRepo.Get(ctx, "adm2:IN/MH/Old", 2025, "1-0-1", "v1")
	assert.NoError(t, err, "cleanup must wait for its configured date")

	clk.advance(24 * time.Hour)
	sched.Tick(ctx)
	_, err = f.calRepo.Get(ctx, "adm2:IN/MH/Old", 2025, "1-0-1", "v1")
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}
