// Command noortime runs the prayer schedule engine: the HTTP API, the
// background worker pool, or the one-shot cleanup.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Quraeshi99/NoorTime/internal/adapters/geocode"
	"github.com/Quraeshi99/NoorTime/internal/adapters/prayer"
	"github.com/Quraeshi99/NoorTime/internal/cache"
	"github.com/Quraeshi99/NoorTime/internal/config"
	"github.com/Quraeshi99/NoorTime/internal/db"
	"github.com/Quraeshi99/NoorTime/internal/handlers"
	"github.com/Quraeshi99/NoorTime/internal/notify"
	"github.com/Quraeshi99/NoorTime/internal/services"
	"github.com/Quraeshi99/NoorTime/internal/tz"
	"github.com/Quraeshi99/NoorTime/internal/workers"
)

func main() {
	root := &cobra.Command{
		Use:           "noortime",
		Short:         "Prayer schedule engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), workerCmd(), cleanupCmd())

	if err := root.Execute(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// app is the wired object graph shared by all commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	hot        cache.Store
	pool       *workers.Pool
	jobs       *workers.Jobs
	handlers   *handlers.Handlers
	instanceID string

	closers []func()
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	instanceID := uuid.NewString()
	logger = logger.With("instance", instanceID)

	hot, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		hot.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	calRepo := db.NewCalendarRepo(pool)
	schedRepo := db.NewScheduleRepo(pool)
	settingsRepo := db.NewSettingsRepo(pool)
	aliasRepo := db.NewAliasRepo(pool)
	ownerRepo := db.NewOwnerRepo(pool)
	geoRepo := db.NewGeocodeRepo(pool)

	retry := prayer.RetryPolicy{
		MaxRetries: uint64(cfg.AdapterRetryMax),
		Base:       cfg.AdapterRetryBase,
		Cap:        cfg.AdapterRetryMaxDelay,
	}
	var prayerClient prayer.Client
	switch cfg.PrayerAPIAdapter {
	case "islamicfinder":
		prayerClient = prayer.NewIslamicFinder(cfg.PrayerAPIBaseURL, cfg.PrayerAPIKey, nil, retry)
	default:
		prayerClient = prayer.NewAlAdhan(cfg.PrayerAPIBaseURL, nil, retry)
	}

	var geocoder geocode.Geocoder
	var forward geocode.ForwardGeocoder
	switch cfg.GeocodingProvider {
	case "openweathermap":
		owm := geocode.NewOpenWeatherMap("", cfg.OpenWeatherMapAPIKey, nil)
		geocoder, forward = owm, owm
	default:
		chain := geocode.NewChain(
			geocode.NewLocationIQ("", cfg.LocationIQAPIKey, nil),
			geocode.NewOpenWeatherMap("", cfg.OpenWeatherMapAPIKey, nil),
		)
		geocoder, forward = chain, chain
	}

	methods, err := services.LoadMethodMap(cfg.CountryMethodMapPath)
	if err != nil {
		return nil, err
	}

	tzfinder, err := tz.NewFinder()
	if err != nil {
		return nil, err
	}

	clk := services.SystemClock{}
	workerPool := workers.NewPool(cfg.WorkerCount, cfg.QueueSize, logger)

	resolver := services.NewResolver(geocoder, geoRepo, calRepo, aliasRepo, hot, methods, cfg, logger)
	calendars := services.NewCalendarService(hot, calRepo, prayerClient, workerPool, cfg, clk, logger)
	schedules := services.NewScheduleService(calendars, resolver, schedRepo, settingsRepo, ownerRepo, cfg, clk, logger)
	settings := services.NewSettingsService(settingsRepo, schedRepo, ownerRepo, &notify.LogNotifier{Logger: logger}, clk, logger)

	jobs := workers.NewJobs(calendars, schedules, calRepo, schedRepo, settingsRepo, workerPool, hot, cfg, clk, logger)
	jobs.RegisterHandlers(workerPool)

	h := handlers.NewHandlers(cfg, resolver, calendars, schedules, settings, settingsRepo, ownerRepo, geocoder, forward, geoRepo, tzfinder, clk, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		hot:        hot,
		pool:       workerPool,
		jobs:       jobs,
		handlers:   h,
		instanceID: instanceID,
		closers:    []func(){pool.Close, func() { _ = hot.Close() }},
	}, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (with an embedded worker pool)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			a.pool.Start(ctx)

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           a.handlers.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.logger.Info("api listening", "addr", a.cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.pool.Wait()
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker pool and the rolling-wave scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			a.pool.Start(ctx)
			a.logger.Info("worker running")

			sched := workers.NewScheduler(a.jobs, a.cfg, services.SystemClock{}, a.logger)
			sched.Run(ctx)

			a.pool.Wait()
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete calendars from past years and stale monthly scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			return a.jobs.Cleanup(ctx)
		},
	}
}
