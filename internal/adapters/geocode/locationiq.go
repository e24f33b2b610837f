package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

const locationIQBaseURL = "https://us1.locationiq.com/v1"

// LocationIQ reverse-geocodes through the LocationIQ Nominatim-style API.
// It is the primary geocoder because it returns district-level fields.
type LocationIQ struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewLocationIQ(baseURL, apiKey string, hc *http.Client) *LocationIQ {
	if baseURL == "" {
		baseURL = locationIQBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &LocationIQ{baseURL: baseURL, apiKey: apiKey, hc: hc}
}

func (g *LocationIQ) Name() string { return "locationiq" }

type locationIQResponse struct {
	Address struct {
		CountryCode   string `json:"country_code"`
		State         string `json:"state"`
		StateDistrict string `json:"state_district"`
		County        string `json:"county"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Suburb        string `json:"suburb"`
	} `json:"address"`
}

func (g *LocationIQ) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("lat", coord(lat))
	q.Set("lon", coord(lon))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	u := fmt.Sprintf("%s/reverse?%s", g.baseURL, q.Encode())

	var resp locationIQResponse
	if err := doJSON(ctx, g.hc, g.Name(), "reverse", u, &resp); err != nil {
		return Place{}, err
	}

	addr := resp.Address
	// The district field varies by country; prefer state_district, then
	// county, then the city itself.
	adm2 := firstNonEmpty(addr.StateDistrict, addr.County, addr.City)
	adm3 := firstNonEmpty(addr.Suburb, addr.Town, addr.Village)
	city := firstNonEmpty(addr.City, addr.Town, addr.Village, adm2)

	return Place{
		Levels: models.AdminLevels{
			CountryCode: strings.ToUpper(addr.CountryCode),
			Adm1:        addr.State,
			Adm2:        adm2,
			Adm3:        adm3,
		},
		City: city,
	}, nil
}

type locationIQSearchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		CountryCode string `json:"country_code"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

func (r locationIQSearchResult) cityPlace() (CityPlace, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return CityPlace{}, errs.Wrap(errs.Permanent, err, "locationiq: parse latitude")
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return CityPlace{}, errs.Wrap(errs.Permanent, err, "locationiq: parse longitude")
	}
	return CityPlace{
		Name:        firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village, r.DisplayName),
		CountryCode: strings.ToUpper(r.Address.CountryCode),
		Lat:         lat,
		Lon:         lon,
	}, nil
}

// Forward resolves a city name to coordinates through the search API.
func (g *LocationIQ) Forward(ctx context.Context, city string) (CityPlace, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("q", city)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")
	u := fmt.Sprintf("%s/search?%s", g.baseURL, q.Encode())

	var resp []locationIQSearchResult
	if err := doJSON(ctx, g.hc, g.Name(), "forward", u, &resp); err != nil {
		return CityPlace{}, err
	}
	if len(resp) == 0 {
		return CityPlace{}, errs.Newf(errs.NotFound, "locationiq: no place named %q", city)
	}
	return resp[0].cityPlace()
}

// Autocomplete returns up to limit place suggestions for a partial name.
func (g *LocationIQ) Autocomplete(ctx context.Context, query string, limit int) ([]CityPlace, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	u := fmt.Sprintf("%s/autocomplete?%s", g.baseURL, q.Encode())

	var resp []locationIQSearchResult
	if err := doJSON(ctx, g.hc, g.Name(), "autocomplete", u, &resp); err != nil {
		return nil, err
	}

	places := make([]CityPlace, 0, len(resp))
	for _, r := range resp {
		p, err := r.cityPlace()
		if err != nil {
			continue
		}
		places = append(places, p)
	}
	return places, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
