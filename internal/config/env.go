package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; existing variables are never overwritten.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays secrets and deployment-specific values from the environment.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	set(&cfg.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	set(&cfg.Push.Subject, "VAPID_SUBJECT")
	set(&cfg.FrontendBaseURL, "FRONTEND_BASE_URL")
	set(&cfg.Storage.DSN, "DATABASE_URL")
	set(&cfg.Storage.Path, "FASTING_DB_PATH")

	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.HTTP.CORSOrigins = origins
	}
}
