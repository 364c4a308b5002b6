package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"bindkey/internal/shared/util"
)

// Validate reports every problem in cfg. Load stops at the first one.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) []error{
		validateVersion,
		validateSources,
		validateDatabase,
		validateProjects,
		validateResolver,
		validateTelemetry,
	} {
		errs = append(errs, check(cfg)...)
	}
	return errs
}

func validateVersion(cfg *Config) []error {
	if cfg.Version < 1 {
		return []error{fmt.Errorf("version must be >= 1, got %d", cfg.Version)}
	}
	if cfg.Version > 1 {
		return []error{fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)}
	}
	return nil
}

func validateSources(cfg *Config) []error {
	var errs []error
	for i, root := range cfg.Sources.Roots {
		if strings.ContainsAny(root, "*?[]{}") {
			errs = append(errs, fmt.Errorf("sources.roots[%d] %q must be a directory, not a pattern", i, root))
			continue
		}
		if strings.TrimSpace(cfg.Paths.ProjectRoot) == "" {
			continue
		}
		abs := ResolveRelative(cfg.Paths.ProjectRoot, root)
		info, err := os.Stat(abs)
		if err != nil {
			errs = append(errs, fmt.Errorf("sources.roots[%d] %q does not exist", i, root))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("sources.roots[%d] %q is not a directory", i, root))
		}
	}
	for i := range cfg.Sources.Roots {
		for j := i + 1; j < len(cfg.Sources.Roots); j++ {
			a := filepath.ToSlash(ResolveRelative("/", cfg.Sources.Roots[i]))
			b := filepath.ToSlash(ResolveRelative("/", cfg.Sources.Roots[j]))
			if util.HasPathPrefix(a, b) || util.HasPathPrefix(b, a) {
				errs = append(errs, fmt.Errorf("sources.roots %q and %q overlap", cfg.Sources.Roots[i], cfg.Sources.Roots[j]))
			}
		}
	}
	check := func(section string, patterns []string) {
		for i, p := range patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d] %q: %w", section, i, p, err))
			}
		}
	}
	check("sources.include", cfg.Sources.Include)
	check("sources.exclude.dirs", cfg.Sources.Exclude.Dirs)
	check("sources.exclude.files", cfg.Sources.Exclude.Files)
	return errs
}

func validateDatabase(cfg *Config) []error {
	var errs []error
	if driver := strings.ToLower(strings.TrimSpace(cfg.DB.Driver)); driver != "sqlite" {
		errs = append(errs, fmt.Errorf("db.driver must be sqlite, got %q", cfg.DB.Driver))
	}
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		errs = append(errs, fmt.Errorf("db.path must not be empty"))
	}
	return errs
}

func validateProjects(cfg *Config) []error {
	entries := cfg.Projects.Entries
	if len(entries) == 0 {
		if cfg.Projects.Active != "" {
			return []error{fmt.Errorf("projects.active is set to %q but projects.entries is empty", cfg.Projects.Active)}
		}
		return nil
	}

	var errs []error
	seenNames := make(map[string]bool, len(entries))
	seenNamespaces := make(map[string]bool, len(entries))
	for i, entry := range entries {
		ref := fmt.Sprintf("projects.entries[%d]", i)
		switch {
		case entry.Name == "":
			errs = append(errs, fmt.Errorf("%s.name must not be empty", ref))
			continue
		case entry.Root == "":
			errs = append(errs, fmt.Errorf("%s.root must not be empty", ref))
		}
		if seenNames[entry.Name] {
			errs = append(errs, fmt.Errorf("duplicate project name %q", entry.Name))
		}
		seenNames[entry.Name] = true
		if seenNamespaces[entry.DBNamespace] {
			errs = append(errs, fmt.Errorf("duplicate project db_namespace %q", entry.DBNamespace))
		}
		seenNamespaces[entry.DBNamespace] = true
	}
	if cfg.Projects.Active != "" && !seenNames[cfg.Projects.Active] {
		errs = append(errs, fmt.Errorf("projects.active references unknown project %q", cfg.Projects.Active))
	}
	return errs
}

func validateResolver(cfg *Config) []error {
	var errs []error
	if cfg.Resolver.LookupsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("resolver.lookups_per_second must be >= 0, got %v", cfg.Resolver.LookupsPerSecond))
	}
	if cfg.Resolver.LookupTimeout < 0 {
		errs = append(errs, fmt.Errorf("resolver.lookup_timeout must be >= 0, got %s", cfg.Resolver.LookupTimeout))
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must be >= 0, got %s", cfg.Watch.Debounce))
	}
	return errs
}

func validateTelemetry(cfg *Config) []error {
	addr := strings.TrimSpace(cfg.Telemetry.MetricsAddress)
	if addr != "" && !strings.Contains(addr, ":") {
		return []error{fmt.Errorf("telemetry.metrics_address %q must be host:port", addr)}
	}
	return nil
}
