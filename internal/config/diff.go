package config

import (
	"reflect"
	"strings"

	logx "puasapush/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields for logging. Secrets (VAPID private key, DSN, pprof token) are never logged.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	fields := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		fields = append(fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.SchedulerEnabled()),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.spec", newCfg.Scheduler.Spec),
		)
	}
	if !reflect.DeepEqual(oldCfg.Checkin, newCfg.Checkin) {
		changed = append(changed, "checkin")
		fields = append(fields, logx.String("checkin.windows", strings.Join(newCfg.Checkin.Windows, ",")))
	}
	if !reflect.DeepEqual(oldCfg.Calendar, newCfg.Calendar) {
		changed = append(changed, "calendar")
		fields = append(fields, logx.String("calendar.ttl", newCfg.Calendar.TTL))
	}
	if oldCfg.Push.VAPIDPublicKey != newCfg.Push.VAPIDPublicKey ||
		oldCfg.Push.VAPIDPrivateKey != newCfg.Push.VAPIDPrivateKey ||
		oldCfg.Push.Subject != newCfg.Push.Subject ||
		oldCfg.Push.TTLSeconds != newCfg.Push.TTLSeconds ||
		oldCfg.Push.SendTimeout != newCfg.Push.SendTimeout ||
		oldCfg.Push.Workers != newCfg.Push.Workers ||
		oldCfg.Push.RatePerSec != newCfg.Push.RatePerSec {
		changed = append(changed, "push")
		fields = append(fields,
			logx.Int("push.workers", newCfg.Push.Workers),
			logx.Int("push.rate_per_sec", newCfg.Push.RatePerSec),
			logx.Bool("push.private_key_set", newCfg.Push.VAPIDPrivateKey != ""),
		)
	}
	if oldCfg.Storage.Driver != newCfg.Storage.Driver ||
		oldCfg.Storage.Path != newCfg.Storage.Path ||
		oldCfg.Storage.DSN != newCfg.Storage.DSN ||
		oldCfg.Storage.BusyTimeout != newCfg.Storage.BusyTimeout {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		changed = append(changed, "http")
		fields = append(fields, logx.String("http.addr", newCfg.HTTP.Addr))
	}
	if !reflect.DeepEqual(oldCfg.Pprof, newCfg.Pprof) {
		changed = append(changed, "pprof")
		fields = append(fields,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", newCfg.Pprof.Addr),
			logx.Bool("pprof.token_set", newCfg.Pprof.Token != ""),
		)
	}
	if oldCfg.FrontendBaseURL != newCfg.FrontendBaseURL {
		changed = append(changed, "frontend_base_url")
	}
	return changed, fields
}

// RestartRequired lists changed sections that only take effect after a restart.
// Logging is applied live; everything else is wired once at startup.
func RestartRequired(changed []string) []string {
	out := make([]string, 0, len(changed))
	for _, c := range changed {
		if c != "logging" {
			out = append(out, c)
		}
	}
	return out
}
