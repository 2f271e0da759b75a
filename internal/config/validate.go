package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTimezone     = "Asia/Kuala_Lumpur"
	DefaultScheduleSpec = "*/10 * * * *"
	DefaultSourceURL    = "https://www.e-solat.gov.my/index.php?pageId=26&siteId=24"
	DefaultCachePath    = "./data/ramadan_cache.json"
	DefaultFrontendURL  = "http://localhost:5500"
	DefaultSubject      = "mailto:admin@example.com"
	DefaultHTTPAddr     = ":8000"
	DefaultStoragePath  = "./data/fasting.db"
)

// DefaultCheckinWindows are the reminder windows in scheduler local time.
var DefaultCheckinWindows = []string{"08:00-11:00", "13:00-16:00", "17:00-19:30"}

// applyDefaults fills omitted fields. It never overrides explicit values.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Scheduler.Timezone) == "" {
		cfg.Scheduler.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(cfg.Scheduler.Spec) == "" {
		cfg.Scheduler.Spec = DefaultScheduleSpec
	}
	if len(cfg.Checkin.Windows) == 0 {
		cfg.Checkin.Windows = append([]string(nil), DefaultCheckinWindows...)
	}
	if strings.TrimSpace(cfg.Calendar.SourceURL) == "" {
		cfg.Calendar.SourceURL = DefaultSourceURL
	}
	if strings.TrimSpace(cfg.Calendar.CachePath) == "" {
		cfg.Calendar.CachePath = DefaultCachePath
	}
	if strings.TrimSpace(cfg.Push.Subject) == "" {
		cfg.Push.Subject = DefaultSubject
	}
	if cfg.Push.TTLSeconds <= 0 {
		cfg.Push.TTLSeconds = 300
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	cfg.FrontendBaseURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendBaseURL), "/")
	if cfg.FrontendBaseURL == "" {
		cfg.FrontendBaseURL = DefaultFrontendURL
	}
}

// SchedulerEnabled resolves the optional enabled flag (default true).
func (c SchedulerConfig) SchedulerEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate rejects configs that would fail later at runtime.
// It has the same signature as the ConfigManager validator hook.
func Validate(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		errs = append(errs, errors.New("push: VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set"))
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	durations := map[string]string{
		"scheduler.job_timeout":  cfg.Scheduler.JobTimeout,
		"calendar.ttl":           cfg.Calendar.TTL,
		"calendar.fetch_timeout": cfg.Calendar.FetchTimeout,
		"push.send_timeout":      cfg.Push.SendTimeout,
		"storage.busy_timeout":   cfg.Storage.BusyTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "sqlite3", "file":
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn (or DATABASE_URL) is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	return errors.Join(errs...)
}
