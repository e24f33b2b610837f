// Package config loads the engine configuration once at process start.
//
// A .env file is honored when present (godotenv), after which plain
// environment variables win. The resulting Config value is immutable and
// passed by reference into every component; nothing reads the environment
// after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	// Server.
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string

	// Zone resolution.
	ZoneGridSize             float64
	TimeDiffThresholdSeconds int

	// Cache keys and TTLs.
	CacheSchemaVersion string
	TTLYearlyCalendar  time.Duration
	TTLDailyCache      time.Duration
	FetchLockTTL       time.Duration

	// Calendar lifecycle.
	GracePeriodStartMonth int
	GracePeriodStartDay   int
	CleanupMonth          int
	CleanupDay            int

	// Rolling-wave schedule builder.
	ScheduleGenerationDays int

	// Automatic method resolution.
	AutomaticMethodID    int
	CountryMethodMapPath string

	// Prayer-time adapter selection.
	PrayerAPIAdapter string
	PrayerAPIBaseURL string
	PrayerAPIKey     string

	// Geocoding adapter selection.
	GeocodingProvider    string
	LocationIQAPIKey     string
	OpenWeatherMapAPIKey string

	// Adapter retry policy for transient failures.
	AdapterRetryMax      int
	AdapterRetryBase     time.Duration
	AdapterRetryMaxDelay time.Duration

	// Defaults used for anonymous requests without coordinates.
	DefaultLatitude  float64
	DefaultLongitude float64
	DefaultMethodKey string

	// Background worker pool.
	WorkerCount int
	QueueSize   int
}

// Load reads configuration from the environment, honoring an optional
// .env file, and validates required settings.
func Load() (*Config, error) {
	// Missing .env is fine; env vars may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:    envStr("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    envStr("REDIS_URL", "redis://localhost:6379/0"),

		ZoneGridSize:             envFloat("PRAYER_ZONE_GRID_SIZE", 0.2),
		TimeDiffThresholdSeconds: envInt("PRAYER_TIME_DIFF_THRESHOLD_SECONDS", 50),

		CacheSchemaVersion: envStr("CACHE_SCHEMA_VERSION", "v1"),
		TTLYearlyCalendar:  envSeconds("REDIS_TTL_YEARLY_CALENDAR", 7*24*time.Hour),
		TTLDailyCache:      envSeconds("REDIS_TTL_DAILY_CACHE", 2*time.Hour),
		FetchLockTTL:       envSeconds("CALENDAR_FETCH_LOCK_TTL", 10*time.Minute),

		GracePeriodStartMonth: envInt("CACHE_GRACE_PERIOD_START_MONTH", 12),
		GracePeriodStartDay:   envInt("CACHE_GRACE_PERIOD_START_DAY", 15),
		CleanupMonth:          envInt("CACHE_CLEANUP_MONTH", 1),
		CleanupDay:            envInt("CACHE_CLEANUP_DAY", 5),

		ScheduleGenerationDays: envInt("SCHEDULE_GENERATION_DAYS", 28),

		AutomaticMethodID:    envInt("AUTOMATIC_METHOD_ID", 99),
		CountryMethodMapPath: envStr("COUNTRY_METHOD_MAP_PATH", ""),

		PrayerAPIAdapter: envStr("PRAYER_API_ADAPTER", "aladhan"),
		PrayerAPIBaseURL: envStr("PRAYER_API_BASE_URL", "https://api.aladhan.com/v1"),
		PrayerAPIKey:     os.Getenv("PRAYER_API_KEY"),

		GeocodingProvider:    envStr("GEOCODING_PROVIDER", "locationiq"),
		LocationIQAPIKey:     os.Getenv("LOCATIONIQ_API_KEY"),
		OpenWeatherMapAPIKey: os.Getenv("OPENWEATHERMAP_API_KEY"),

		AdapterRetryMax:      envInt("ADAPTER_RETRY_MAX", 3),
		AdapterRetryBase:     envMillis("ADAPTER_RETRY_BASE_MS", 250*time.Millisecond),
		AdapterRetryMaxDelay: envMillis("ADAPTER_RETRY_CAP_MS", 4*time.Second),

		DefaultLatitude:  envFloat("DEFAULT_LATITUDE", 19.2183),
		DefaultLongitude: envFloat("DEFAULT_LONGITUDE", 72.8493),
		DefaultMethodKey: envStr("DEFAULT_METHOD_KEY", "1-0-1"),

		WorkerCount: envInt("WORKER_COUNT", 8),
		QueueSize:   envInt("WORKER_QUEUE_SIZE", 1024),
	}

	if cfg.ZoneGridSize <= 0 {
		return nil, fmt.Errorf("PRAYER_ZONE_GRID_SIZE must be positive, got %v", cfg.ZoneGridSize)
	}
	if cfg.ScheduleGenerationDays < 1 || cfg.ScheduleGenerationDays > 28 {
		return nil, fmt.Errorf("SCHEDULE_GENERATION_DAYS must be in [1, 28], got %d", cfg.ScheduleGenerationDays)
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func envMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}
