package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config aggregates application configuration values.
type Config struct {
	Store     StoreConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string // memory|postgres
	PostgresDSN string
}

// SchedulerConfig anchors the cadence boundaries and bounds settlement
// concurrency.
type SchedulerConfig struct {
	Timezone      string
	DailyHour     int
	WeeklyWeekday int // 0 = Sunday
	WeeklyHour    int
	MonthlyDay    int
	MonthlyHour   int
	Workers       int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultStoreDriver   = "memory"
	defaultTimezone      = "UTC"
	defaultDailyHour     = 0
	defaultWeeklyWeekday = 1 // Monday
	defaultWeeklyHour    = 0
	defaultMonthlyDay    = 1
	defaultMonthlyHour   = 0
	defaultWorkers       = 4
	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Store: StoreConfig{
			Driver:      valueOrDefault("STORE_DRIVER", defaultStoreDriver),
			PostgresDSN: os.Getenv("POSTGRES_DSN"),
		},
		Scheduler: SchedulerConfig{
			Timezone:      valueOrDefault("SCHED_TIMEZONE", defaultTimezone),
			DailyHour:     parseIntWithDefault("SCHED_DAILY_HOUR", defaultDailyHour),
			WeeklyWeekday: parseIntWithDefault("SCHED_WEEKLY_WEEKDAY", defaultWeeklyWeekday),
			WeeklyHour:    parseIntWithDefault("SCHED_WEEKLY_HOUR", defaultWeeklyHour),
			MonthlyDay:    parseIntWithDefault("SCHED_MONTHLY_DAY", defaultMonthlyDay),
			MonthlyHour:   parseIntWithDefault("SCHED_MONTHLY_HOUR", defaultMonthlyHour),
			Workers:       parseIntWithDefault("SCHED_WORKERS", defaultWorkers),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Store.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER is postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	if err := validateRange("SCHED_DAILY_HOUR", cfg.Scheduler.DailyHour, 0, 23); err != nil {
		return Config{}, err
	}
	if err := validateRange("SCHED_WEEKLY_WEEKDAY", cfg.Scheduler.WeeklyWeekday, 0, 6); err != nil {
		return Config{}, err
	}
	if err := validateRange("SCHED_WEEKLY_HOUR", cfg.Scheduler.WeeklyHour, 0, 23); err != nil {
		return Config{}, err
	}
	if err := validateRange("SCHED_MONTHLY_DAY", cfg.Scheduler.MonthlyDay, 1, 31); err != nil {
		return Config{}, err
	}
	if err := validateRange("SCHED_MONTHLY_HOUR", cfg.Scheduler.MonthlyHour, 0, 23); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler.Workers <= 0 {
		return Config{}, fmt.Errorf("SCHED_WORKERS must be positive, got %d", cfg.Scheduler.Workers)
	}

	return cfg, nil
}

func validateRange(key string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s %d is out of range [%d, %d]", key, value, min, max)
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}
