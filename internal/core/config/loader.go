package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	coreerrors "bindkey/internal/core/errors"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalizeProjects(&cfg)
	normalizeSources(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		err := coreerrors.Wrap(errs[0], coreerrors.CodeValidationError, "invalid config")
		return nil, coreerrors.AddContext(err, coreerrors.CtxPath, path)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".bindkey"
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = ".bindkey"
	}

	if len(cfg.Sources.Roots) == 0 {
		cfg.Sources.Roots = []string{"."}
	}
	if len(cfg.Sources.Include) == 0 {
		cfg.Sources.Include = []string{"**.java"}
	}
	if len(cfg.Sources.Exclude.Dirs) == 0 {
		cfg.Sources.Exclude.Dirs = []string{".git", "build", "target", "out", "node_modules", ".bindkey"}
	}

	if strings.TrimSpace(cfg.DB.Driver) == "" {
		cfg.DB.Driver = "sqlite"
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "index.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if cfg.Resolver.LookupTimeout <= 0 {
		cfg.Resolver.LookupTimeout = 2 * time.Second
	}
	if cfg.Resolver.Burst <= 0 {
		cfg.Resolver.Burst = 64
	}
	if cfg.Resolver.CacheSize <= 0 {
		cfg.Resolver.CacheSize = 4096
	}
	if cfg.Resolver.Workers <= 0 {
		cfg.Resolver.Workers = runtime.NumCPU()
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = "bindkey"
	}
}

func normalizeProjects(cfg *Config) {
	cfg.Projects.Active = strings.TrimSpace(cfg.Projects.Active)
	for i := range cfg.Projects.Entries {
		entry := &cfg.Projects.Entries[i]
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Root = strings.TrimSpace(entry.Root)
		entry.DBNamespace = normalizeProjectNamespace(entry.DBNamespace, entry.Name)
	}
}

func normalizeProjectNamespace(raw, fallback string) string {
	namespace := strings.TrimSpace(raw)
	if namespace == "" {
		namespace = strings.TrimSpace(fallback)
	}
	return namespace
}

func normalizeSources(cfg *Config) {
	trim := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	cfg.Sources.Roots = trim(cfg.Sources.Roots)
	cfg.Sources.Include = trim(cfg.Sources.Include)
	cfg.Sources.Exclude.Dirs = trim(cfg.Sources.Exclude.Dirs)
	cfg.Sources.Exclude.Files = trim(cfg.Sources.Exclude.Files)
}
