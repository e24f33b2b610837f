package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/errs"
)

// GeocodeRepo caches reverse-geocode results keyed by grid cell, so the
// upstream geocoder sees at most one request per cell.
type GeocodeRepo struct {
	pool *pgxpool.Pool
}

func NewGeocodeRepo(pool *pgxpool.Pool) *GeocodeRepo {
	return &GeocodeRepo{pool: pool}
}

// Get returns the cached place for a grid key, NotFound on a cold cell.
func (r *GeocodeRepo) Get(ctx context.Context, gridKey string) (geocode.Place, error) {
	const q = `
		SELECT country_code, adm1, adm2, adm3, city
		FROM geocode_cache WHERE grid_key = $1`

	var p geocode.Place
	err := r.pool.QueryRow(ctx, q, gridKey).Scan(
		&p.Levels.CountryCode, &p.Levels.Adm1, &p.Levels.Adm2, &p.Levels.Adm3, &p.City)
	if errors.Is(err, pgx.ErrNoRows) {
		return geocode.Place{}, errs.Newf(errs.NotFound, "no cached place for %s", gridKey)
	}
	if err != nil {
		return geocode.Place{}, errs.Wrap(errs.Internal, err, "load cached place")
	}
	return p, nil
}

// GetCity returns the cached forward-geocode result for a normalized
// city name, NotFound on a cold name.
func (r *GeocodeRepo) GetCity(ctx context.Context, cityKey string) (geocode.CityPlace, error) {
	const q = `
		SELECT name, country_code, latitude, longitude
		FROM city_geocode_cache WHERE city_key = $1`

	var p geocode.CityPlace
	err := r.pool.QueryRow(ctx, q, cityKey).Scan(&p.Name, &p.CountryCode, &p.Lat, &p.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return geocode.CityPlace{}, errs.Newf(errs.NotFound, "no cached place for city %q", cityKey)
	}
	if err != nil {
		return geocode.CityPlace{}, errs.Wrap(errs.Internal, err, "load cached city")
	}
	return p, nil
}

// PutCity stores a forward-geocode result for a normalized city name.
func (r *GeocodeRepo) PutCity(ctx context.Context, cityKey string, p geocode.CityPlace) error {
	const q = `
		INSERT INTO city_geocode_cache (city_key, name, country_code, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (city_key) DO UPDATE SET
			name = EXCLUDED.name, country_code = EXCLUDED.country_code,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`
	if _, err := r.pool.Exec(ctx, q, cityKey, p.Name, p.CountryCode, p.Lat, p.Lon); err != nil {
		return errs.Wrap(errs.Internal, err, "store cached city")
	}
	return nil
}

// Put stores a reverse-geocode result for a grid key.
func (r *GeocodeRepo) Put(ctx context.Context, gridKey string, p geocode.Place) error {
	const q = `
		INSERT INTO geocode_cache (grid_key, country_code, adm1, adm2, adm3, city)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (grid_key) DO UPDATE SET
			country_code = EXCLUDED.country_code,
			adm1 = EXCLUDED.adm1, adm2 = EXCLUDED.adm2, adm3 = EXCLUDED.adm3,
			city = EXCLUDED.city`
	if _, err := r.pool.Exec(ctx, q, gridKey,
		p.Levels.CountryCode, p.Levels.Adm1, p.Levels.Adm2, p.Levels.Adm3, p.City); err != nil {
		return errs.Wrap(errs.Internal, err, "store cached place")
	}
	return nil
}
