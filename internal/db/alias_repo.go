package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// AliasRepo persists zone-equivalence records.
type AliasRepo struct {
	pool *pgxpool.Pool
}

func NewAliasRepo(pool *pgxpool.Pool) *AliasRepo {
	return &AliasRepo{pool: pool}
}

// Get returns the alias for a source zone and method key, NotFound when
// none was recorded.
func (r *AliasRepo) Get(ctx context.Context, sourceZoneID, methodKey string) (*models.ZoneAlias, error) {
	const q = `
		SELECT source_zone_id, method_key, target_zone_id, created_at
		FROM zone_aliases WHERE source_zone_id = $1 AND method_key = $2`

	var a models.ZoneAlias
	err := r.pool.QueryRow(ctx, q, sourceZoneID, methodKey).Scan(
		&a.SourceZoneID, &a.MethodKey, &a.TargetZoneID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.NotFound, "no alias for %s/%s", sourceZoneID, methodKey)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load alias")
	}
	return &a, nil
}

// Put records an alias; repeats are idempotent.
func (r *AliasRepo) Put(ctx context.Context, alias *models.ZoneAlias) error {
	const q = `
		INSERT INTO zone_aliases (source_zone_id, method_key, target_zone_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_zone_id, method_key) DO UPDATE SET target_zone_id = EXCLUDED.target_zone_id`
	if _, err := r.pool.Exec(ctx, q, alias.SourceZoneID, alias.MethodKey, alias.TargetZoneID); err != nil {
		return errs.Wrap(errs.Internal, err, "store alias")
	}
	return nil
}
