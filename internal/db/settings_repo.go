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

// SettingsRepo persists per-owner configuration and the last published
// raw-time blob the threshold check compares against.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Get loads one owner's settings.
func (r *SettingsRepo) Get(ctx context.Context, ownerID int64) (*models.OwnerSettings, error) {
	const q = `SELECT settings, updated_at FROM owner_settings WHERE owner_id = $1`

	var raw []byte
	var s models.OwnerSettings
	err := r.pool.QueryRow(ctx, q, ownerID).Scan(&raw, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.NotFound, "owner %d has no settings", ownerID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load settings")
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode settings")
	}
	s.OwnerID = ownerID
	return &s, nil
}

// Put stores an owner's settings wholesale.
func (r *SettingsRepo) Put(ctx context.Context, s *models.OwnerSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encode settings")
	}
	const q = `
		INSERT INTO owner_settings (owner_id, settings, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`
	if _, err := r.pool.Exec(ctx, q, s.OwnerID, raw); err != nil {
		return errs.Wrap(errs.Internal, err, "store settings")
	}
	return nil
}

// LastRaw returns the owner's last published raw starts, empty when the
// owner has never published.
func (r *SettingsRepo) LastRaw(ctx context.Context, ownerID int64) (map[string]string, error) {
	const q = `SELECT raw_times FROM owner_last_raw WHERE owner_id = $1`

	var raw []byte
	err := r.pool.QueryRow(ctx, q, ownerID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load last raw times")
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "decode last raw times")
	}
	return out, nil
}

// PutLastRaw replaces the owner's last published raw starts.
func (r *SettingsRepo) PutLastRaw(ctx context.Context, ownerID int64, rawTimes map[string]string) error {
	raw, err := json.Marshal(rawTimes)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encode last raw times")
	}
	const q = `
		INSERT INTO owner_last_raw (owner_id, raw_times, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner_id) DO UPDATE SET raw_times = EXCLUDED.raw_times, updated_at = now()`
	if _, err := r.pool.Exec(ctx, q, ownerID, raw); err != nil {
		return errs.Wrap(errs.Internal, err, "store last raw times")
	}
	return nil
}

// ListOwnerIDs returns every owner that has settings; the monthly wave
// iterates this.
func (r *SettingsRepo) ListOwnerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT owner_id FROM owner_settings ORDER BY owner_id`)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list owners")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "scan owner id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
