package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: BINDKEY_[SECTION]_[KEY] (e.g., BINDKEY_RESOLVER_LOOKUP_TIMEOUT).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Paths.ProjectRoot, "BINDKEY_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.DatabaseDir, "BINDKEY_PATHS_DATABASE_DIR")

	setEnvBool(&cfg.DB.Enabled, "BINDKEY_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "BINDKEY_DB_PATH")
	setEnvString(&cfg.DB.ProjectKey, "BINDKEY_DB_PROJECT_KEY")
	setEnvDuration(&cfg.DB.BusyTimeout, "BINDKEY_DB_BUSY_TIMEOUT")

	setEnvDuration(&cfg.Resolver.LookupTimeout, "BINDKEY_RESOLVER_LOOKUP_TIMEOUT")
	setEnvFloat64(&cfg.Resolver.LookupsPerSecond, "BINDKEY_RESOLVER_LOOKUPS_PER_SECOND")
	setEnvInt(&cfg.Resolver.Burst, "BINDKEY_RESOLVER_BURST")
	setEnvInt(&cfg.Resolver.CacheSize, "BINDKEY_RESOLVER_CACHE_SIZE")
	setEnvInt(&cfg.Resolver.Workers, "BINDKEY_RESOLVER_WORKERS")

	setEnvDuration(&cfg.Watch.Debounce, "BINDKEY_WATCH_DEBOUNCE")

	setEnvString(&cfg.Telemetry.MetricsAddress, "BINDKEY_TELEMETRY_METRICS_ADDRESS")
	setEnvString(&cfg.Telemetry.OTLPEndpoint, "BINDKEY_TELEMETRY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
