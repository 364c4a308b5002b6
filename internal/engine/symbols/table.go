package symbols

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryTable is an in-memory index built from extracted files.
type MemoryTable struct {
	mu          sync.RWMutex
	types       map[string]*TypeDecl
	byFile      map[string]*File
	byCanonical map[string][]string
}

func NewMemoryTable(files ...*File) *MemoryTable {
	t := &MemoryTable{
		types:       make(map[string]*TypeDecl),
		byFile:      make(map[string]*File),
		byCanonical: make(map[string][]string),
	}
	for _, f := range files {
		t.AddFile(f)
	}
	return t
}

// AddFile indexes f, replacing whatever the same path contributed before.
func (t *MemoryTable) AddFile(f *File) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(f.Path)
	t.byFile[f.Path] = f
	for i := range f.Types {
		decl := &f.Types[i]
		t.types[decl.QualifiedName] = decl
		key := canonicalSymbol(decl.QualifiedName)
		t.byCanonical[key] = append(t.byCanonical[key], decl.QualifiedName)
	}
}

func (t *MemoryTable) RemoveFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(path)
}

func (t *MemoryTable) removeLocked(path string) {
	old, ok := t.byFile[path]
	if !ok {
		return
	}
	for _, decl := range old.Types {
		delete(t.types, decl.QualifiedName)
		key := canonicalSymbol(decl.QualifiedName)
		names := t.byCanonical[key][:0]
		for _, n := range t.byCanonical[key] {
			if n != decl.QualifiedName {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			delete(t.byCanonical, key)
		} else {
			t.byCanonical[key] = names
		}
	}
	delete(t.byFile, path)
}

func (t *MemoryTable) Lookup(ctx context.Context, qualifiedName string) (*TypeDecl, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	decl, ok := t.types[qualifiedName]
	return decl, ok, nil
}

// ElementAt returns the innermost element containing the position.
func (t *MemoryTable) ElementAt(ctx context.Context, path string, line, column int) (*Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.byFile[path]
	if !ok {
		return nil, false, nil
	}
	el, ok := innermost(f.Elements, line, column)
	return el, ok, nil
}

// Search finds qualified names whose letters and digits match name, ignoring
// case and separators.
func (t *MemoryTable) Search(name string) []string {
	key := canonicalSymbol(name)
	if key == "" {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := append([]string(nil), t.byCanonical[key]...)
	sort.Strings(out)
	return out
}

// Files lists the indexed files sorted by path.
func (t *MemoryTable) Files() []*File {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*File, 0, len(t.byFile))
	for _, f := range t.byFile {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.types)
}

func innermost(elements []Element, line, column int) (*Element, bool) {
	var best *Element
	for i := range elements {
		el := &elements[i]
		if !el.Contains(line, column) {
			continue
		}
		if best == nil || el.span() < best.span() {
			best = el
		}
	}
	if best == nil {
		return nil, false
	}
	found := *best
	return &found, true
}

func canonicalSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range symbol {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
