package watcher

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"bindkey/internal/shared/util"
)

// Matcher decides which paths under a source root belong to the index.
// Patterns are matched against the slash separated path relative to the
// root and against the base name.
type Matcher struct {
	include      []glob.Glob
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewMatcher(include, excludeDirs, excludeFiles []string) (*Matcher, error) {
	compile := func(patterns []string) ([]glob.Glob, error) {
		out := make([]glob.Glob, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		}
		return out, nil
	}
	m := &Matcher{}
	var err error
	if m.include, err = compile(include); err != nil {
		return nil, err
	}
	if m.excludeDirs, err = compile(excludeDirs); err != nil {
		return nil, err
	}
	if m.excludeFiles, err = compile(excludeFiles); err != nil {
		return nil, err
	}
	return m, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// ExcludeDir reports whether the directory at rel is skipped.
func (m *Matcher) ExcludeDir(rel string) bool {
	rel = util.NormalizePatternPath(rel)
	if rel == "" {
		return false
	}
	return matchAny(m.excludeDirs, rel)
}

// IncludeFile reports whether the file at rel is indexed. Only Java sources
// qualify whatever the include patterns say.
func (m *Matcher) IncludeFile(rel string) bool {
	rel = util.NormalizePatternPath(rel)
	if !strings.EqualFold(filepath.Ext(rel), ".java") {
		return false
	}
	if matchAny(m.excludeFiles, rel) {
		return false
	}
	for dir := rel; ; {
		i := strings.LastIndexByte(dir, '/')
		if i < 0 {
			break
		}
		dir = dir[:i]
		if matchAny(m.excludeDirs, dir) {
			return false
		}
	}
	return len(m.include) == 0 || matchAny(m.include, rel)
}
