package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"bindkey/internal/shared/util"
)

// ActiveProject is the project whose index a command works on. Key namespaces
// its rows in a shared index database.
type ActiveProject struct {
	Name string
	Root string
	Key  string
}

func ResolveActiveProject(cfg *Config, cwd string) (ActiveProject, error) {
	entries := cfg.Projects.Entries
	if len(entries) == 0 {
		key := strings.TrimSpace(cfg.DB.ProjectKey)
		if key == "" {
			key = "default"
		}
		return ActiveProject{Name: "default", Root: filepath.Clean(cwd), Key: key}, nil
	}

	if active := cfg.Projects.Active; active != "" {
		for _, entry := range entries {
			if entry.Name == active {
				return materializeProject(entry, cwd), nil
			}
		}
		return ActiveProject{}, fmt.Errorf("projects.active references unknown project %q", active)
	}

	absCWD, err := filepath.Abs(cwd)
	if err == nil {
		best := ActiveProject{}
		bestLen := -1
		for _, entry := range entries {
			m := materializeProject(entry, cwd)
			if _, inside := util.RelSlash(m.Root, absCWD); inside {
				if l := len(m.Root); l > bestLen {
					best = m
					bestLen = l
				}
			}
		}
		if bestLen >= 0 {
			return best, nil
		}
	}

	return materializeProject(entries[0], cwd), nil
}

func materializeProject(entry ProjectEntry, base string) ActiveProject {
	key := normalizeProjectNamespace(entry.DBNamespace, entry.Name)
	if key == "" {
		key = "default"
	}
	return ActiveProject{
		Name: entry.Name,
		Root: ResolveRelative(base, entry.Root),
		Key:  key,
	}
}
