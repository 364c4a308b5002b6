package config

import (
	"time"
)

const DefaultFile = "bindkey.toml"

type Config struct {
	Version   int       `toml:"version"`
	Paths     Paths     `toml:"paths"`
	Sources   Sources   `toml:"sources"`
	DB        Database  `toml:"db"`
	Projects  Projects  `toml:"projects"`
	Resolver  Resolver  `toml:"resolver"`
	Watch     Watch     `toml:"watch"`
	Telemetry Telemetry `toml:"telemetry"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
	DatabaseDir string `toml:"database_dir"`
}

// Sources selects the Java files that make up the project index. Include
// and exclude patterns are gobwas/glob patterns matched against slash
// separated paths relative to the project root.
type Sources struct {
	Roots   []string `toml:"roots"`
	Include []string `toml:"include"`
	Exclude Exclude  `toml:"exclude"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Driver      string        `toml:"driver"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	ProjectKey  string        `toml:"project_key"`
}

type Projects struct {
	Active  string         `toml:"active"`
	Entries []ProjectEntry `toml:"entries"`
}

type ProjectEntry struct {
	Name        string `toml:"name"`
	Root        string `toml:"root"`
	DBNamespace string `toml:"db_namespace"`
}

type Resolver struct {
	LookupTimeout    time.Duration `toml:"lookup_timeout"`
	LookupsPerSecond float64       `toml:"lookups_per_second"`
	Burst            int           `toml:"burst"`
	CacheSize        int           `toml:"cache_size"`
	Workers          int           `toml:"workers"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Telemetry struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	ServiceName    string `toml:"service_name"`
}

// Default returns a configuration with every default applied, used when no
// bindkey.toml exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
