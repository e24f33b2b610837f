// Package geocode holds the reverse-geocoding adapters used by the zone
// resolver. Each adapter maps a coordinate onto administrative levels;
// missing levels are returned empty, never guessed.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/metrics"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// Place is a normalized reverse-geocode result.
type Place struct {
	Levels models.AdminLevels
	City   string
}

// CityPlace is a normalized forward-geocode result.
type CityPlace struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Geocoder resolves a coordinate to administrative levels.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}

// ForwardGeocoder resolves a free-text city name to coordinates.
type ForwardGeocoder interface {
	Name() string
	Forward(ctx context.Context, city string) (CityPlace, error)
	Autocomplete(ctx context.Context, query string, limit int) ([]CityPlace, error)
}

// NormalizeCity folds a free-text city name into the cache key form:
// lowercase with inner whitespace collapsed.
func NormalizeCity(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// doJSON mirrors the prayer adapters' request helper: transient for
// network and 5xx/429 failures, permanent otherwise.
func doJSON(ctx context.Context, hc *http.Client, adapter, op, url string, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.APIRequests.WithLabelValues(adapter, op, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(adapter, op).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrapf(errs.Permanent, err, "%s: build request", adapter)
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return errs.Wrapf(errs.Transient, err, "%s: request timeout", adapter)
		}
		return errs.Wrapf(errs.Transient, err, "%s: request failed", adapter)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return errs.Newf(errs.Transient, "%s: upstream status %d", adapter, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return errs.Newf(errs.NotFound, "%s: %s found no place", adapter, op)
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return errs.Newf(errs.Permanent, "%s: upstream status %d", adapter, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrapf(errs.Permanent, err, "%s: decode response", adapter)
	}
	return nil
}

func coord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
