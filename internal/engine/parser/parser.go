// Package parser extracts the project index from Java sources: type
// declarations with their members in signature form, and the source ranges
// that back source handles.
package parser

import (
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"bindkey/internal/core/errors"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/observability"
)

// Known reports whether a binary type name exists in the project. The
// extractor uses it to tell packages from types in dotted names and to
// resolve on-demand imports. A nil Known falls back to naming conventions.
type Known func(qualifiedName string) bool

type Parser struct {
	pool *ParserPool
}

func NewParser() *Parser {
	return &Parser{pool: NewParserPool(sitter.NewLanguage(tree_sitter_java.Language()))}
}

func (p *Parser) IsSupportedPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}

// ParseFile extracts the declarations of one Java source file.
func (p *Parser) ParseFile(path string, content []byte, known Known) (*symbols.File, error) {
	if !p.IsSupportedPath(path) {
		return nil, errors.New(errors.CodeNotSupported, "not a java source: "+path)
	}
	start := time.Now()
	defer func() { observability.ParsingDuration.Observe(time.Since(start).Seconds()) }()

	sp := p.pool.Get()
	defer p.pool.Put(sp)
	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed: "+path)
	}
	defer tree.Close()

	return extractJava(tree.RootNode(), content, path, known), nil
}

// DeclaredTypes lists the binary names of the types a file declares, locals
// included. It seeds the Known set before the real extraction.
func (p *Parser) DeclaredTypes(path string, content []byte) ([]string, error) {
	f, err := p.ParseFile(path, content, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Types))
	for _, t := range f.Types {
		names = append(names, t.QualifiedName)
	}
	return names, nil
}
