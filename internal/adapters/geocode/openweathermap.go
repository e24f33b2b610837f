package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

const openWeatherMapBaseURL = "https://api.openweathermap.org"

// OpenWeatherMap is the fallback geocoder. Its reverse endpoint only
// returns country and state, so results resolved through it usually end
// up on a grid zone.
type OpenWeatherMap struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewOpenWeatherMap(baseURL, apiKey string, hc *http.Client) *OpenWeatherMap {
	if baseURL == "" {
		baseURL = openWeatherMapBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &OpenWeatherMap{baseURL: baseURL, apiKey: apiKey, hc: hc}
}

func (g *OpenWeatherMap) Name() string { return "openweathermap" }

type owmPlace struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (g *OpenWeatherMap) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("lat", coord(lat))
	q.Set("lon", coord(lon))
	q.Set("limit", "1")
	q.Set("appid", g.apiKey)
	u := fmt.Sprintf("%s/geo/1.0/reverse?%s", g.baseURL, q.Encode())

	var resp []owmPlace
	if err := doJSON(ctx, g.hc, g.Name(), "reverse", u, &resp); err != nil {
		return Place{}, err
	}
	if len(resp) == 0 {
		return Place{}, errs.New(errs.NotFound, "openweathermap: no place at coordinate")
	}

	p := resp[0]
	return Place{
		Levels: models.AdminLevels{
			CountryCode: p.Country,
			Adm1:        p.State,
		},
		City: p.Name,
	}, nil
}

func (g *OpenWeatherMap) direct(ctx context.Context, query string, limit int) ([]owmPlace, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("appid", g.apiKey)
	u := fmt.Sprintf("%s/geo/1.0/direct?%s", g.baseURL, q.Encode())

	var resp []owmPlace
	if err := doJSON(ctx, g.hc, g.Name(), "forward", u, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Forward resolves a city name through the direct geocoding endpoint.
func (g *OpenWeatherMap) Forward(ctx context.Context, city string) (CityPlace, error) {
	resp, err := g.direct(ctx, city, 1)
	if err != nil {
		return CityPlace{}, err
	}
	if len(resp) == 0 {
		return CityPlace{}, errs.Newf(errs.NotFound, "openweathermap: no place named %q", city)
	}
	p := resp[0]
	return CityPlace{Name: p.Name, CountryCode: p.Country, Lat: p.Lat, Lon: p.Lon}, nil
}

// Autocomplete reuses the direct endpoint; OpenWeatherMap has no
// dedicated suggestion API.
func (g *OpenWeatherMap) Autocomplete(ctx context.Context, query string, limit int) ([]CityPlace, error) {
	resp, err := g.direct(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	places := make([]CityPlace, 0, len(resp))
	for _, p := range resp {
		places = append(places, CityPlace{Name: p.Name, CountryCode: p.Country, Lat: p.Lat, Lon: p.Lon})
	}
	return places, nil
}

// Chain tries geocoders in order, falling through on transient failures
// and empty results.
type Chain struct {
	geocoders []Geocoder
	forwards  []ForwardGeocoder
}

func NewChain(geocoders ...Geocoder) *Chain {
	c := &Chain{geocoders: geocoders}
	for _, g := range geocoders {
		if f, ok := g.(ForwardGeocoder); ok {
			c.forwards = append(c.forwards, f)
		}
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	var lastErr error
	for _, g := range c.geocoders {
		p, err := g.Reverse(ctx, lat, lon)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errs.New(errs.NotFound, "geocode: no geocoders configured")
	}
	return Place{}, lastErr
}

func (c *Chain) Forward(ctx context.Context, city string) (CityPlace, error) {
	var lastErr error
	for _, g := range c.forwards {
		p, err := g.Forward(ctx, city)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errs.New(errs.NotFound, "geocode: no forward geocoders configured")
	}
	return CityPlace{}, lastErr
}

func (c *Chain) Autocomplete(ctx context.Context, query string, limit int) ([]CityPlace, error) {
	var lastErr error
	for _, g := range c.forwards {
		places, err := g.Autocomplete(ctx, query, limit)
		if err == nil {
			return places, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errs.New(errs.NotFound, "geocode: no forward geocoders configured")
	}
	return nil, lastErr
}
