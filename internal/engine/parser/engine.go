package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"bindkey/internal/engine/symbols"
)

// NodeHandler processes a node. It returns true when it handled the children
// itself and the walker should not descend.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries the source and the file being built.
type ExtractionContext struct {
	Source []byte
	File   *symbols.File
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	if handler, ok := e.handlers[node.Kind()]; ok && handler(ctx, node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// Element records the 1-based, inclusive source range of node.
func (c *ExtractionContext) Element(node *sitter.Node, qualifiedName string, member symbols.MemberKind, index int) symbols.Element {
	start, end := node.StartPosition(), node.EndPosition()
	return symbols.Element{
		Path:          c.File.Path,
		StartLine:     int(start.Row) + 1,
		StartColumn:   int(start.Column) + 1,
		EndLine:       int(end.Row) + 1,
		EndColumn:     int(end.Column),
		QualifiedName: qualifiedName,
		Member:        member,
		Index:         index,
	}
}

func childOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		for _, k := range kinds {
			if child.Kind() == k {
				return child
			}
		}
	}
	return nil
}

func childrenOfKind(node *sitter.Node, kinds ...string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		for _, k := range kinds {
			if child.Kind() == k {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		out = append(out, node.NamedChild(i))
	}
	return out
}

// hasKeyword reports whether a modifiers node lists the keyword kw.
func hasKeyword(modifiers *sitter.Node, kw string) bool {
	return childOfKind(modifiers, kw) != nil
}
