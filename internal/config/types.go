package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "24h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Checkin   CheckinConfig   `json:"checkin"`
	Calendar  CalendarConfig  `json:"calendar"`
	Push      PushConfig      `json:"push"`
	Storage   StorageConfig   `json:"storage"`
	HTTP      HTTPConfig      `json:"http"`
	Pprof     PprofConfig     `json:"pprof"`

	// FrontendBaseURL is the PWA origin used to build notification deep links.
	FrontendBaseURL string `json:"frontend_base_url"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// SchedulerConfig controls the job trigger.
//
// Defaults:
//   - enabled: true (an explicit false keeps the HTTP surface up without jobs)
//   - timezone: "Asia/Kuala_Lumpur"
//   - spec: "*/10 * * * *"
//   - job_timeout: "5m"
type SchedulerConfig struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	Spec       string `json:"spec,omitempty"`
	JobTimeout string `json:"job_timeout,omitempty"`
}

// CheckinConfig lists the reminder windows as "HH:MM-HH:MM" (inclusive).
// If omitted, the three default windows are used.
type CheckinConfig struct {
	Windows []string `json:"windows,omitempty"`
}

type CalendarConfig struct {
	SourceURL    string `json:"source_url,omitempty"`
	CachePath    string `json:"cache_path,omitempty"`
	TTL          string `json:"ttl,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

// PushConfig holds Web Push (VAPID) settings.
//
// Keys can be left empty here and supplied through VAPID_PUBLIC_KEY /
// VAPID_PRIVATE_KEY (optionally from a .env file).
type PushConfig struct {
	VAPIDPublicKey  string `json:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `json:"vapid_private_key,omitempty"`
	Subject         string `json:"subject,omitempty"`
	TTLSeconds      int    `json:"ttl_seconds,omitempty"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the subscription store.
//
// Driver values: "sqlite" (default), "file", "postgres".
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/fasting.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"` // postgres only; DATABASE_URL overrides
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type HTTPConfig struct {
	Addr        string   `json:"addr,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// PprofConfig enables the profiling listener. It stays off unless enabled;
// a non-loopback addr requires token.
type PprofConfig struct {
	Enabled              bool   `json:"enabled,omitempty"`
	Addr                 string `json:"addr,omitempty"`
	Token                string `json:"token,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
}
