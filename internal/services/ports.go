// Package services implements the engine core: zone resolution, the
// tiered calendar cache, the personal calculator, the monthly schedule
// materializer and the settings hook.
package services

import (
	"context"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// CalendarRepo is the cold-tier port for yearly calendars.
type CalendarRepo interface {
	Get(ctx context.Context, zoneID string, year int, methodKey, schemaVersion string) (*models.YearlyCalendar, error)
	// Upsert stores a calendar and reports whether content changed. Equal
	// content hashes must only touch the freshness marker.
	Upsert(ctx context.Context, cal *models.YearlyCalendar) (changed bool, err error)
	ListForYear(ctx context.Context, year int, schemaVersion string) ([]models.YearlyCalendar, error)
	DeleteBefore(ctx context.Context, year int) (int64, error)
}

// ScheduleRepo is the cold-tier port for monthly scripts.
type ScheduleRepo interface {
	Get(ctx context.Context, ownerID int64, year, month int) (*models.MonthlySchedule, error)
	Upsert(ctx context.Context, s *models.MonthlySchedule) (changed bool, err error)
	Delete(ctx context.Context, ownerID int64, year, month int) error
	DeleteBefore(ctx context.Context, year, month int) (int64, error)
}

// SettingsRepo is the port for owner settings and the last published
// raw-time blob.
type SettingsRepo interface {
	Get(ctx context.Context, ownerID int64) (*models.OwnerSettings, error)
	Put(ctx context.Context, s *models.OwnerSettings) error
	LastRaw(ctx context.Context, ownerID int64) (map[string]string, error)
	PutLastRaw(ctx context.Context, ownerID int64, rawTimes map[string]string) error
	ListOwnerIDs(ctx context.Context) ([]int64, error)
}

// AliasRepo is the port for zone-equivalence records.
type AliasRepo interface {
	Get(ctx context.Context, sourceZoneID, methodKey string) (*models.ZoneAlias, error)
	Put(ctx context.Context, alias *models.ZoneAlias) error
}

// OwnerRepo resolves owner identity, follow relations and announcements.
type OwnerRepo interface {
	Info(ctx context.Context, ownerID int64) (*models.OwnerInfo, error)
	IsCollective(ctx context.Context, ownerID int64) (bool, error)
	Follow(ctx context.Context, subjectID string, ownerID int64) error
	FollowedOwner(ctx context.Context, subjectID string) (int64, error)
	Announcements(ctx context.Context, ownerID int64, limit int) ([]models.Announcement, error)
}

// GeocodeCache is the durable reverse-geocode cache keyed by grid cell.
type GeocodeCache interface {
	Get(ctx context.Context, gridKey string) (geocode.Place, error)
	Put(ctx context.Context, gridKey string, p geocode.Place) error
}

// CityGeocodeCache is the durable forward-geocode cache keyed by the
// normalized city name.
type CityGeocodeCache interface {
	GetCity(ctx context.Context, cityKey string) (geocode.CityPlace, error)
	PutCity(ctx context.Context, cityKey string, p geocode.CityPlace) error
}

// Dispatcher enqueues named background jobs. Production wires a worker
// pool; tests wire a synchronous in-memory queue.
type Dispatcher interface {
	Delay(ctx context.Context, name string, payload []byte) error
}

// Notifier posts advisory notices to an owner's followers. Delivery is
// someone else's problem.
type Notifier interface {
	NotifyFollowers(ctx context.Context, ownerID int64, message string) error
}

// Clock abstracts "now" so rolling-wave selection and grace-period logic
// are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a test Clock pinned to one instant.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
