package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"puasapush/internal/calendar"
	"puasapush/internal/config"
	"puasapush/internal/jobs"
	"puasapush/internal/observability/pprof"
	"puasapush/internal/push"
	"puasapush/internal/storage"
	"puasapush/internal/task/scheduler"
	logx "puasapush/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
			Compress:   cfg.Logging.File.Compress,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path)}, nil
	case "sqlite", "sqlite3":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "postgres", "postgresql", "pgx":
		return storage.Config{Driver: driver, DSN: strings.TrimSpace(sc.DSN)}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapCalendarConfig(cfg *config.Config) (calendar.CacheConfig, error) {
	ttl, err := config.ParseDurationOrDefault("calendar.ttl", cfg.Calendar.TTL, calendar.DefaultTTL)
	if err != nil {
		return calendar.CacheConfig{}, err
	}
	fetch, err := config.ParseDurationOrDefault("calendar.fetch_timeout", cfg.Calendar.FetchTimeout, calendar.DefaultFetchTimeout)
	if err != nil {
		return calendar.CacheConfig{}, err
	}
	return calendar.CacheConfig{Path: cfg.Calendar.CachePath, TTL: ttl, FetchTimeout: fetch}, nil
}

func newCalendarFetcher(cfg *config.Config, timeout time.Duration) calendar.Fetcher {
	return calendar.NewESolat(cfg.Calendar.SourceURL, &http.Client{Timeout: timeout})
}

func newWebPush(cfg *config.Config) push.Transport {
	return push.NewWebPush(push.WebPushConfig{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
		TTLSeconds:      cfg.Push.TTLSeconds,
	})
}

func mapSendTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("push.send_timeout", cfg.Push.SendTimeout, push.DefaultSendTimeout)
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationOrDefault("scheduler.job_timeout", cfg.Scheduler.JobTimeout, 5*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.SchedulerEnabled(),
		Timezone:       cfg.Scheduler.Timezone,
		DefaultTimeout: timeout,
	}, nil
}

func mapWindows(cfg *config.Config) ([]jobs.ClockWindow, error) {
	ws, err := jobs.ParseWindows(cfg.Checkin.Windows)
	if err != nil {
		return nil, fmt.Errorf("checkin.windows: %w", err)
	}
	return ws, nil
}

// validateRuntime extends config.Validate with checks that need the job packages.
func validateRuntime(cfg *config.Config) error {
	if _, err := mapWindows(cfg); err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(cfg.Scheduler.Spec); err != nil {
		return fmt.Errorf("scheduler.spec: %w", err)
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return pprof.CheckConfig(mapPprofConfig(cfg))
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled:              cfg.Pprof.Enabled,
		Addr:                 cfg.Pprof.Addr,
		Token:                cfg.Pprof.Token,
		MutexProfileFraction: cfg.Pprof.MutexProfileFraction,
		BlockProfileRate:     cfg.Pprof.BlockProfileRate,
	}
}
