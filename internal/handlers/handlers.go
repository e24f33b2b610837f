// Package handlers is the HTTP edge: request parsing, subject identity
// and the response shapes. All engine semantics live in services.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/middleware"
	"github.com/Quraeshi99/NoorTime/internal/services"
	"github.com/Quraeshi99/NoorTime/internal/tz"
)

// Handlers carries the service dependencies of every endpoint.
type Handlers struct {
	cfg       *config.Config
	resolver  *services.Resolver
	calendars *services.CalendarService
	schedules *services.ScheduleService
	settings  *services.SettingsService
	setRepo   services.SettingsRepo
	owners    services.OwnerRepo
	geocoder  geocode.Geocoder
	forward   geocode.ForwardGeocoder
	cities    services.CityGeocodeCache
	tzfinder  *tz.Finder
	clock     services.Clock
	logger    *slog.Logger
}

func NewHandlers(
	cfg *config.Config,
	resolver *services.Resolver,
	calendars *services.CalendarService,
	schedules *services.ScheduleService,
	settings *services.SettingsService,
	setRepo services.SettingsRepo,
	owners services.OwnerRepo,
	geocoder geocode.Geocoder,
	forward geocode.ForwardGeocoder,
	cities services.CityGeocodeCache,
	tzfinder *tz.Finder,
	clk services.Clock,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		resolver:  resolver,
		calendars: calendars,
		schedules: schedules,
		settings:  settings,
		setRepo:   setRepo,
		owners:    owners,
		geocoder:  geocoder,
		forward:   forward,
		cities:    cities,
		tzfinder:  tzfinder,
		clock:     clk,
		logger:    logger,
	}
}

// Router assembles the chi router with the shared middleware stack.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Device-ID", "X-Subject-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/prayer/initial", h.PrayerInitial)
	r.Get("/schedule/monthly", h.ScheduleMonthly)
	r.Post("/guest/follow", h.GuestFollow)
	r.Post("/owner/settings", h.OwnerSettings)
	r.Get("/geo/reverse", h.GeoReverse)
	r.Get("/geo/city", h.GeoCity)
	r.Get("/geo/autocomplete", h.GeoAutocomplete)

	return r
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
