package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

type geoReverseResponse struct {
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Adm1        string `json:"adm1"`
	Adm2        string `json:"adm2"`
	Adm3        string `json:"adm3"`
	ZoneID      string `json:"zone_id"`
	Timezone    string `json:"timezone"`
}

// GeoReverse exposes the resolver's view of a coordinate: administrative
// levels, the canonical zone and the inferred timezone.
func (h *Handlers) GeoReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, lon, err := h.parseCoords(q.Get("lat"), q.Get("lon"))
	if err != nil {
		RespondBadRequest(w, err.Error())
		return
	}

	key, err := models.ParseMethodKey(h.cfg.DefaultMethodKey)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), lat, lon, key, h.clock.Now().Year())
	if err != nil {
		RespondError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, geoReverseResponse{
		City:        res.Place.City,
		CountryCode: res.Place.Levels.CountryCode,
		Adm1:        res.Place.Levels.Adm1,
		Adm2:        res.Place.Levels.Adm2,
		Adm3:        res.Place.Levels.Adm3,
		ZoneID:      res.ZoneID,
		Timezone:    h.tzfinder.Lookup(lat, lon, "UTC"),
	})
}

// GeoCity resolves a city name to coordinates, serving the cold-store
// cache first so the upstream sees each name at most once.
func (h *Handlers) GeoCity(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("city"))
	if name == "" {
		RespondBadRequest(w, "city is required")
		return
	}

	key := geocode.NormalizeCity(name)
	place, err := h.cities.GetCity(r.Context(), key)
	if err != nil {
		if errs.KindOf(err) != errs.NotFound {
			RespondError(w, r, err)
			return
		}
		place, err = h.forward.Forward(r.Context(), name)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if perr := h.cities.PutCity(r.Context(), key, place); perr != nil {
			h.logger.Warn("city cache write failed", "city", key, "err", perr)
		}
	}

	RespondJSON(w, http.StatusOK, place)
}

// GeoAutocomplete passes partial-name suggestions through uncached;
// prefixes are too sparse to be worth a durable tier.
func (h *Handlers) GeoAutocomplete(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		RespondBadRequest(w, "q is required")
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			RespondBadRequest(w, "limit must be a positive integer")
			return
		}
		if n > 10 {
			n = 10
		}
		limit = n
	}

	places, err := h.forward.Autocomplete(r.Context(), query, limit)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if places == nil {
		places = []geocode.CityPlace{}
	}
	RespondJSON(w, http.StatusOK, places)
}
