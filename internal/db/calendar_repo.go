package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// CalendarRepo persists yearly calendars in Postgres.
type CalendarRepo struct {
	pool *pgxpool.Pool
}

func NewCalendarRepo(pool *pgxpool.Pool) *CalendarRepo {
	return &CalendarRepo{pool: pool}
}

// Get loads one zone-year-method calendar.
func (r *CalendarRepo) Get(ctx context.Context, zoneID string, year int, methodKey, schemaVersion string) (*models.YearlyCalendar, error) {
	const q = `
		SELECT zone_id, year, method_key, schema_version, latitude, longitude,
		       days, content_hash, created_at, updated_at
		FROM yearly_calendars
		WHERE zone_id = $1 AND year = $2 AND method_key = $3 AND schema_version = $4`

	var cal models.YearlyCalendar
	var daysJSON []byte
	err := r.pool.QueryRow(ctx, q, zoneID, year, methodKey, schemaVersion).Scan(
		&cal.ZoneID, &cal.Year, &cal.MethodKey, &cal.SchemaVersion,
		&cal.Latitude, &cal.Longitude, &daysJSON, &cal.ContentHash,
		&cal.CreatedAt, &cal.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.NotFound, "calendar %s/%d/%s not stored", zoneID, year, methodKey)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load calendar")
	}
	if err := json.Unmarshal(daysJSON, &cal.Days); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode calendar days")
	}
	return &cal, nil
}

// Upsert writes a calendar, but leaves the row untouched (beyond
// updated_at) when the stored content hash already matches. It reports
// whether the content actually changed.
func (r *CalendarRepo) Upsert(ctx context.Context, cal *models.YearlyCalendar) (changed bool, err error) {
	daysJSON, err := json.Marshal(cal.Days)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "encode calendar days")
	}

	prevHash, err := r.contentHash(ctx, cal.ZoneID, cal.Year, cal.MethodKey, cal.SchemaVersion)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "probe calendar hash")
	}
	if prevHash == cal.ContentHash {
		// Same content: only refresh the freshness marker, skip the
		// large JSONB rewrite.
		const touch = `
			UPDATE yearly_calendars SET updated_at = now()
			WHERE zone_id = $1 AND year = $2 AND method_key = $3 AND schema_version = $4`
		if _, err := r.pool.Exec(ctx, touch, cal.ZoneID, cal.Year, cal.MethodKey, cal.SchemaVersion); err != nil {
			return false, errs.Wrap(errs.Internal, err, "touch calendar")
		}
		return false, nil
	}

	const q = `
		INSERT INTO yearly_calendars
			(zone_id, year, method_key, schema_version, latitude, longitude, days, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (zone_id, year, method_key, schema_version) DO UPDATE SET
			latitude     = EXCLUDED.latitude,
			longitude    = EXCLUDED.longitude,
			days         = EXCLUDED.days,
			content_hash = EXCLUDED.content_hash,
			updated_at   = now()`
	if _, err := r.pool.Exec(ctx, q,
		cal.ZoneID, cal.Year, cal.MethodKey, cal.SchemaVersion,
		cal.Latitude, cal.Longitude, daysJSON, cal.ContentHash,
	); err != nil {
		return false, errs.Wrap(errs.Internal, err, "upsert calendar")
	}
	return true, nil
}

func (r *CalendarRepo) contentHash(ctx context.Context, zoneID string, year int, methodKey, schemaVersion string) (string, error) {
	const q = `
		SELECT content_hash FROM yearly_calendars
		WHERE zone_id = $1 AND year = $2 AND method_key = $3 AND schema_version = $4`
	var h string
	err := r.pool.QueryRow(ctx, q, zoneID, year, methodKey, schemaVersion).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return h, err
}

// ListForYear returns the identity of every stored calendar for a year,
// days omitted. The refresh wave iterates this.
func (r *CalendarRepo) ListForYear(ctx context.Context, year int, schemaVersion string) ([]models.YearlyCalendar, error) {
	const q = `
		SELECT zone_id, year, method_key, schema_version, latitude, longitude, content_hash, created_at, updated_at
		FROM yearly_calendars
		WHERE year = $1 AND schema_version = $2
		ORDER BY zone_id, method_key`

	rows, err := r.pool.Query(ctx, q, year, schemaVersion)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list calendars")
	}
	defer rows.Close()

	var out []models.YearlyCalendar
	for rows.Next() {
		var cal models.YearlyCalendar
		if err := rows.Scan(&cal.ZoneID, &cal.Year, &cal.MethodKey, &cal.SchemaVersion,
			&cal.Latitude, &cal.Longitude, &cal.ContentHash, &cal.CreatedAt, &cal.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "scan calendar row")
		}
		out = append(out, cal)
	}
	return out, rows.Err()
}

// DeleteBefore removes calendars for years strictly older than year and
// returns how many rows went away.
func (r *CalendarRepo) DeleteBefore(ctx context.Context, year int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM yearly_calendars WHERE year < $1`, year)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "delete stale calendars")
	}
	return tag.RowsAffected(), nil
}
