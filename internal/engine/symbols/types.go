// Package symbols is the external project index the resolver consults: type
// declarations as extracted from source, their members in signature form, and
// the source ranges that back source handles.
package symbols

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	coreerrors "bindkey/internal/core/errors"
)

// TypeDecl is one declared class, interface, enum or annotation type. Every
// type reference is a signature ("Ljava.util.List<TE;>;") in which type
// variables use the short form.
type TypeDecl struct {
	// QualifiedName uses '.' between packages and '$' between nesting levels.
	// Local types are named after their enclosing type, the occurrence and the
	// simple name ("p.Outer$1Local").
	QualifiedName string           `json:"qualified_name"`
	Kind          string           `json:"kind"`
	Static        bool             `json:"static,omitempty"`
	Enclosing     string           `json:"enclosing,omitempty"`
	Local         *LocalDecl       `json:"local,omitempty"`
	TypeParams    []TypeParam      `json:"type_params,omitempty"`
	Superclass    string           `json:"superclass,omitempty"`
	Interfaces    []string         `json:"interfaces,omitempty"`
	Fields        []FieldDecl      `json:"fields,omitempty"`
	Methods       []MethodDecl     `json:"methods,omitempty"`
	Annotations   []AnnotationDecl `json:"annotations,omitempty"`
	File          string           `json:"file,omitempty"`
}

// LocalDecl places a local or anonymous type inside a method of its enclosing
// type. MethodIndex points into the enclosing declaration's Methods; Method is
// the method name followed by its signature, "run()V".
type LocalDecl struct {
	Method      string `json:"method"`
	MethodIndex int    `json:"method_index"`
	Occurrence  int    `json:"occurrence"`
	Name        string `json:"name,omitempty"`
}

type TypeParam struct {
	Name   string   `json:"name"`
	Bounds []string `json:"bounds,omitempty"`
}

type MethodDecl struct {
	Name        string           `json:"name"`
	TypeParams  []TypeParam      `json:"type_params,omitempty"`
	Params      []string         `json:"params,omitempty"`
	ParamNames  []string         `json:"param_names,omitempty"`
	Return      string           `json:"return"`
	Static      bool             `json:"static,omitempty"`
	Default     *ValueDecl       `json:"default,omitempty"`
	Annotations []AnnotationDecl `json:"annotations,omitempty"`
}

// Signature renders the method the way member keys do: type parameters,
// parameter list, return type.
func (m MethodDecl) Signature() string {
	var b strings.Builder
	if len(m.TypeParams) > 0 {
		b.WriteByte('<')
		for _, tp := range m.TypeParams {
			b.WriteString(tp.Name)
			for _, bound := range tp.Bounds {
				b.WriteByte(':')
				b.WriteString(bound)
			}
		}
		b.WriteByte('>')
	}
	b.WriteByte('(')
	for _, p := range m.Params {
		b.WriteString(p)
	}
	b.WriteByte(')')
	b.WriteString(m.Return)
	return b.String()
}

type FieldDecl struct {
	Name         string           `json:"name"`
	Type         string           `json:"type"`
	Static       bool             `json:"static,omitempty"`
	EnumConstant bool             `json:"enum_constant,omitempty"`
	Annotations  []AnnotationDecl `json:"annotations,omitempty"`
}

type AnnotationDecl struct {
	Type  string     `json:"type"`
	Pairs []PairDecl `json:"pairs,omitempty"`
}

type PairDecl struct {
	Name  string    `json:"name"`
	Value ValueDecl `json:"value"`
}

type ValueKind string

const (
	ValuePrimitive  ValueKind = "primitive"
	ValueString     ValueKind = "string"
	ValueEnum       ValueKind = "enum"
	ValueType       ValueKind = "type"
	ValueAnnotation ValueKind = "annotation"
	ValueArray      ValueKind = "array"
)

// ValueDecl is an annotation member value. Primitive values carry the base
// code in Type and the source literal in Literal; enum constants carry the
// enum signature in Type and the constant name in Literal.
type ValueDecl struct {
	Kind       ValueKind       `json:"kind"`
	Type       string          `json:"type,omitempty"`
	Literal    string          `json:"literal,omitempty"`
	Annotation *AnnotationDecl `json:"annotation,omitempty"`
	Elements   []ValueDecl     `json:"elements,omitempty"`
}

type MemberKind string

const (
	MemberType   MemberKind = "type"
	MemberMethod MemberKind = "method"
	MemberField  MemberKind = "field"
)

// Element is the source range of a declaration or member.
type Element struct {
	Path          string     `json:"path"`
	StartLine     int        `json:"start_line"`
	StartColumn   int        `json:"start_column"`
	EndLine       int        `json:"end_line"`
	EndColumn     int        `json:"end_column"`
	QualifiedName string     `json:"qualified_name"`
	Member        MemberKind `json:"member"`
	// Index is the position of the method or field in its declaration.
	Index int `json:"index"`
}

// Contains reports whether the 1-based position line:column lies inside e.
func (e Element) Contains(line, column int) bool {
	if line < e.StartLine || line > e.EndLine {
		return false
	}
	if line == e.StartLine && column < e.StartColumn {
		return false
	}
	if line == e.EndLine && column > e.EndColumn {
		return false
	}
	return true
}

func (e Element) span() int {
	return (e.EndLine-e.StartLine)*100000 + e.EndColumn - e.StartColumn
}

// File groups what one source file contributes to the index.
type File struct {
	Path     string     `json:"path"`
	Package  string     `json:"package"`
	Types    []TypeDecl `json:"types"`
	Elements []Element  `json:"elements"`
}

// Table is the lookup side of the index.
type Table interface {
	Lookup(ctx context.Context, qualifiedName string) (*TypeDecl, bool, error)
	ElementAt(ctx context.Context, path string, line, column int) (*Element, bool, error)
}

// Handle names a source position, "path:line:column".
type Handle struct {
	Path   string
	Line   int
	Column int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s:%d:%d", h.Path, h.Line, h.Column)
}

// ParseHandle parses "path:line:column". The path may itself contain colons.
func ParseHandle(s string) (Handle, error) {
	colIdx := strings.LastIndexByte(s, ':')
	if colIdx <= 0 {
		return Handle{}, coreerrors.Newf(coreerrors.CodeValidationError, "source handle %q: expected path:line:column", s)
	}
	lineIdx := strings.LastIndexByte(s[:colIdx], ':')
	if lineIdx <= 0 {
		return Handle{}, coreerrors.Newf(coreerrors.CodeValidationError, "source handle %q: expected path:line:column", s)
	}
	line, err := strconv.Atoi(s[lineIdx+1 : colIdx])
	if err != nil || line < 1 {
		return Handle{}, coreerrors.Newf(coreerrors.CodeValidationError, "source handle %q: invalid line", s)
	}
	col, err := strconv.Atoi(s[colIdx+1:])
	if err != nil || col < 1 {
		return Handle{}, coreerrors.Newf(coreerrors.CodeValidationError, "source handle %q: invalid column", s)
	}
	return Handle{Path: s[:lineIdx], Line: line, Column: col}, nil
}
