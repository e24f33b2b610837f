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

// ScheduleRepo persists materialized monthly scripts.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Get loads one owner-month script.
func (r *ScheduleRepo) Get(ctx context.Context, ownerID int64, year, month int) (*models.MonthlySchedule, error) {
	const q = `
		SELECT owner_id, year, month, version, script, script_hash, warnings, generated_at, updated_at
		FROM monthly_schedules WHERE owner_id = $1 AND year = $2 AND month = $3`

	var s models.MonthlySchedule
	var scriptJSON, warningsJSON []byte
	err := r.pool.QueryRow(ctx, q, ownerID, year, month).Scan(
		&s.OwnerID, &s.Year, &s.Month, &s.Version, &scriptJSON, &s.ScriptHash,
		&warningsJSON, &s.GeneratedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.NotFound, "no schedule for owner %d %d-%02d", ownerID, year, month)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load schedule")
	}
	if err := json.Unmarshal(scriptJSON, &s.Script); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode script")
	}
	if err := json.Unmarshal(warningsJSON, &s.Warnings); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode warnings")
	}
	return &s, nil
}

// Upsert stores a freshly materialized script. When the stored hash
// already matches, only updated_at moves; otherwise the row is replaced
// and its version incremented. It reports whether content changed.
func (r *ScheduleRepo) Upsert(ctx context.Context, s *models.MonthlySchedule) (changed bool, err error) {
	var prevHash string
	err = r.pool.QueryRow(ctx,
		`SELECT script_hash FROM monthly_schedules WHERE owner_id = $1 AND year = $2 AND month = $3`,
		s.OwnerID, s.Year, s.Month).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, errs.Wrap(errs.Internal, err, "probe schedule hash")
	}

	if prevHash == s.ScriptHash {
		const touch = `
			UPDATE monthly_schedules SET updated_at = now()
			WHERE owner_id = $1 AND year = $2 AND month = $3`
		if _, err := r.pool.Exec(ctx, touch, s.OwnerID, s.Year, s.Month); err != nil {
			return false, errs.Wrap(errs.Internal, err, "touch schedule")
		}
		return false, nil
	}

	scriptJSON, err := json.Marshal(s.Script)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "encode script")
	}
	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "encode warnings")
	}

	const q = `
		INSERT INTO monthly_schedules (owner_id, year, month, version, script, script_hash, warnings, generated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6, now())
		ON CONFLICT (owner_id, year, month) DO UPDATE SET
			version      = monthly_schedules.version + 1,
			script       = EXCLUDED.script,
			script_hash  = EXCLUDED.script_hash,
			warnings     = EXCLUDED.warnings,
			generated_at = EXCLUDED.generated_at,
			updated_at   = now()`
	if _, err := r.pool.Exec(ctx, q, s.OwnerID, s.Year, s.Month, scriptJSON, s.ScriptHash, warningsJSON); err != nil {
		return false, errs.Wrap(errs.Internal, err, "upsert schedule")
	}
	return true, nil
}

// Delete removes one owner-month script; missing rows are not an error.
func (r *ScheduleRepo) Delete(ctx context.Context, ownerID int64, year, month int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM monthly_schedules WHERE owner_id = $1 AND year = $2 AND month = $3`,
		ownerID, year, month)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "delete schedule")
	}
	return nil
}

// DeleteBefore drops scripts strictly older than the given year-month.
func (r *ScheduleRepo) DeleteBefore(ctx context.Context, year, month int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM monthly_schedules WHERE (year, month) < ($1, $2)`, year, month)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "delete stale schedules")
	}
	return tag.RowsAffected(), nil
}
