package services

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/cache"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// Resolver maps a coordinate onto the canonical zone id and resolves the
// AUTOMATIC method sentinel. It carries a per-process alias LRU in front
// of the hot and cold alias stores.
type Resolver struct {
	geocoder geocode.Geocoder
	geoCache GeocodeCache
	calRepo  CalendarRepo
	aliases  AliasRepo
	hot      cache.Store
	methods  *MethodMap
	cfg      *config.Config
	logger   *slog.Logger

	aliasLRU *lru.Cache
}

const resolverLRUSize = 4096

func NewResolver(
	geocoder geocode.Geocoder,
	geoCache GeocodeCache,
	calRepo CalendarRepo,
	aliases AliasRepo,
	hot cache.Store,
	methods *MethodMap,
	cfg *config.Config,
	logger *slog.Logger,
) *Resolver {
	l, _ := lru.New(resolverLRUSize)
	return &Resolver{
		geocoder: geocoder,
		geoCache: geoCache,
		calRepo:  calRepo,
		aliases:  aliases,
		hot:      hot,
		methods:  methods,
		cfg:      cfg,
		logger:   logger,
		aliasLRU: l,
	}
}

// Resolution is the resolver's answer for one coordinate.
type Resolution struct {
	ZoneID string
	// MethodKey has the AUTOMATIC sentinel already replaced.
	MethodKey models.MethodKey
	Place     geocode.Place
}

// Resolve returns the canonical zone for a coordinate, method and year.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64, key models.MethodKey, year int) (Resolution, error) {
	place, err := r.reverse(ctx, lat, lon)
	if err != nil && errs.KindOf(err) != errs.NotFound && errs.KindOf(err) != errs.Transient {
		return Resolution{}, err
	}

	resolved := r.methods.Resolve(key, place.Levels.CountryCode, r.cfg.AutomaticMethodID)

	z2 := models.Adm2ZoneID(place.Levels)
	if err != nil || z2 == "" {
		// Geocoder unavailable or no district-level data: grid fallback.
		return Resolution{
			ZoneID:    models.GridZoneID(lat, lon, r.cfg.ZoneGridSize),
			MethodKey: resolved,
			Place:     place,
		}, nil
	}

	z3 := models.Adm3ZoneID(place.Levels)
	if z3 == "" {
		return Resolution{ZoneID: z2, MethodKey: resolved, Place: place}, nil
	}

	zone, err := r.chooseZone(ctx, z2, z3, year, resolved.String())
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ZoneID: zone, MethodKey: resolved, Place: place}, nil
}

// reverse geocodes through the grid-cell cache so each cell hits the
// upstream at most once.
func (r *Resolver) reverse(ctx context.Context, lat, lon float64) (geocode.Place, error) {
	gridKey := models.GridZoneID(lat, lon, r.cfg.ZoneGridSize)
	if p, err := r.geoCache.Get(ctx, gridKey); err == nil {
		return p, nil
	}
	p, err := r.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		return geocode.Place{}, err
	}
	if err := r.geoCache.Put(ctx, gridKey, p); err != nil {
		r.logger.Warn("geocode cache write failed", "grid", gridKey, "err", err)
	}
	return p, nil
}

// chooseZone decides Admin-2 vs Admin-3 by first consulting the alias
// chain and then, when both calendars exist, comparing them day by day.
func (r *Resolver) chooseZone(ctx context.Context, z2, z3 string, year int, methodKey string) (string, error) {
	if target, ok := r.lookupAlias(ctx, z3, methodKey); ok {
		return target, nil
	}

	c2, err2 := r.calRepo.Get(ctx, z2, year, methodKey, r.cfg.CacheSchemaVersion)
	c3, err3 := r.calRepo.Get(ctx, z3, year, methodKey, r.cfg.CacheSchemaVersion)
	if err2 != nil || err3 != nil {
		for _, err := range []error{err2, err3} {
			if err != nil && errs.KindOf(err) != errs.NotFound {
				return "", err
			}
		}
		// No comparative evidence yet: prefer the finer zone.
		return z3, nil
	}

	if !CalendarsEquivalent(c2, c3, r.cfg.TimeDiffThresholdSeconds) {
		return z3, nil
	}

	alias := &models.ZoneAlias{
		SourceZoneID: z3,
		TargetZoneID: z2,
		MethodKey:    methodKey,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.aliases.Put(ctx, alias); err != nil {
		return "", err
	}
	r.storeAliasHot(ctx, z3, methodKey, z2)
	r.logger.Info("zone alias recorded", "source", z3, "target", z2, "method", methodKey)
	return z2, nil
}

func (r *Resolver) lookupAlias(ctx context.Context, source, methodKey string) (string, bool) {
	lruKey := source + "|" + methodKey
	if v, ok := r.aliasLRU.Get(lruKey); ok {
		return v.(string), true
	}
	hotKey := cache.AliasKey(r.cfg.CacheSchemaVersion, source, methodKey)
	if v, ok, err := r.hot.Get(ctx, hotKey); err == nil && ok {
		r.aliasLRU.Add(lruKey, v)
		return v, true
	}
	a, err := r.aliases.Get(ctx, source, methodKey)
	if err != nil {
		return "", false
	}
	r.storeAliasHot(ctx, source, methodKey, a.TargetZoneID)
	return a.TargetZoneID, true
}

func (r *Resolver) storeAliasHot(ctx context.Context, source, methodKey, target string) {
	r.aliasLRU.Add(source+"|"+methodKey, target)
	hotKey := cache.AliasKey(r.cfg.CacheSchemaVersion, source, methodKey)
	if err := r.hot.Set(ctx, hotKey, target, r.cfg.TTLYearlyCalendar); err != nil {
		r.logger.Warn("alias hot write failed", "key", hotKey, "err", err)
	}
}

// CalendarsEquivalent reports whether two calendars never diverge by more
// than thresholdSeconds on any compared prayer of any day. A day missing
// from either side, or an unparseable value, counts as divergence.
func CalendarsEquivalent(a, b *models.YearlyCalendar, thresholdSeconds int) bool {
	if len(a.Days) != len(b.Days) {
		return false
	}
	for i := range a.Days {
		for _, prayer := range models.ComparedPrayers {
			ta, okA := a.Days[i].Time(prayer)
			tb, okB := b.Days[i].Time(prayer)
			if okA != okB {
				return false
			}
			if !okA {
				continue
			}
			if ta.AbsDiffSeconds(tb) > thresholdSeconds {
				return false
			}
		}
	}
	return true
}
