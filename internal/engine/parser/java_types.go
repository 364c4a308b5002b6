package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"bindkey/internal/engine/symbols"
)

var primitiveCodes = map[string]string{
	"byte": "B", "short": "S", "int": "I", "long": "J", "char": "C",
	"float": "F", "double": "D", "boolean": "Z", "void": "V",
}

// typePart is one dotted segment of a source type name with its type
// arguments, if any.
type typePart struct {
	name string
	args *sitter.Node
}

// typeSig renders a source type as a signature.
func (x *javaExtractor) typeSig(node *sitter.Node, e *env) string {
	if node == nil {
		return objectSig
	}
	switch node.Kind() {
	case "void_type", "boolean_type", "integral_type", "floating_point_type":
		if code, ok := primitiveCodes[x.ctx.Text(node)]; ok {
			return code
		}
	case "type_identifier", "identifier":
		name := x.ctx.Text(node)
		if name == "var" {
			return objectSig
		}
		if e.typeVariable(name) {
			return "T" + name + ";"
		}
		return "L" + x.classPath([]typePart{{name: name}}, e) + ";"
	case "scoped_type_identifier", "generic_type":
		return "L" + x.classPath(x.typeParts(node), e) + ";"
	case "array_type":
		return dims(x.ctx, node.ChildByFieldName("dimensions")) + x.typeSig(node.ChildByFieldName("element"), e)
	case "annotated_type":
		children := namedChildren(node)
		if len(children) > 0 {
			return x.typeSig(children[len(children)-1], e)
		}
	}
	return objectSig
}

// typeParts flattens a (possibly scoped, possibly generic) type name.
func (x *javaExtractor) typeParts(node *sitter.Node) []typePart {
	switch node.Kind() {
	case "type_identifier", "identifier":
		return []typePart{{name: x.ctx.Text(node)}}
	case "generic_type":
		var parts []typePart
		for _, c := range namedChildren(node) {
			switch c.Kind() {
			case "type_arguments":
				if len(parts) > 0 {
					parts[len(parts)-1].args = c
				}
			default:
				parts = append(parts, x.typeParts(c)...)
			}
		}
		return parts
	case "scoped_type_identifier", "scoped_identifier":
		var parts []typePart
		children := namedChildren(node)
		for i, c := range children {
			switch c.Kind() {
			case "marker_annotation", "annotation":
				continue
			}
			if i == len(children)-1 {
				parts = append(parts, typePart{name: x.ctx.Text(c)})
				continue
			}
			parts = append(parts, x.typeParts(c)...)
		}
		return parts
	}
	return []typePart{{name: x.ctx.Text(node)}}
}

// classPath renders the class part of a signature, between 'L' and ';'.
// Member types of a parameterized segment continue the chain with '.',
// otherwise they join the binary name with '$'.
func (x *javaExtractor) classPath(parts []typePart, e *env) string {
	if len(parts) == 0 {
		return "java.lang.Object"
	}
	var b strings.Builder
	start := 1
	if qn, ok := x.resolveType(parts[0].name, e); ok {
		b.WriteString(qn)
	} else if len(parts) == 1 {
		b.WriteString(x.qualify(parts[0].name))
	} else {
		names := make([]string, len(parts))
		for i, p := range parts {
			names[i] = p.name
		}
		i := x.splitPackage(names, false)
		b.WriteString(strings.Join(names[:i+1], "."))
		start = i + 1
	}
	chain := false
	if args := parts[start-1].args; args != nil {
		b.WriteString(x.typeArgs(args, e))
		chain = true
	}
	for _, p := range parts[start:] {
		if chain {
			b.WriteByte('.')
		} else {
			b.WriteByte('$')
		}
		b.WriteString(p.name)
		if p.args != nil {
			b.WriteString(x.typeArgs(p.args, e))
			chain = true
		}
	}
	return b.String()
}

// typeArgs renders type arguments. The diamond renders as nothing.
func (x *javaExtractor) typeArgs(node *sitter.Node, e *env) string {
	args := namedChildren(node)
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('<')
	for _, a := range args {
		if a.Kind() == "wildcard" {
			b.WriteString(x.wildcard(a, e))
			continue
		}
		b.WriteString(x.typeSig(a, e))
	}
	b.WriteByte('>')
	return b.String()
}

func (x *javaExtractor) wildcard(node *sitter.Node, e *env) string {
	var bound *sitter.Node
	for _, c := range namedChildren(node) {
		switch c.Kind() {
		case "marker_annotation", "annotation":
		default:
			bound = c
		}
	}
	switch {
	case bound == nil:
		return "*"
	case childOfKind(node, "super") != nil:
		return "-" + x.typeSig(bound, e)
	default:
		return "+" + x.typeSig(bound, e)
	}
}

// namedType renders a dotted name from an annotation or enum reference.
func (x *javaExtractor) namedType(text string, e *env) string {
	names := strings.Split(text, ".")
	parts := make([]typePart, len(names))
	for i, n := range names {
		parts[i] = typePart{name: strings.TrimSpace(n)}
	}
	return "L" + x.classPath(parts, e) + ";"
}

func (x *javaExtractor) annotations(modifiers *sitter.Node, e *env) []symbols.AnnotationDecl {
	var out []symbols.AnnotationDecl
	for _, a := range childrenOfKind(modifiers, "marker_annotation", "annotation") {
		out = append(out, x.annotation(a, e))
	}
	return out
}

func (x *javaExtractor) annotation(node *sitter.Node, e *env) symbols.AnnotationDecl {
	a := symbols.AnnotationDecl{Type: x.namedType(x.ctx.Text(node.ChildByFieldName("name")), e)}
	for _, arg := range namedChildren(node.ChildByFieldName("arguments")) {
		if arg.Kind() == "element_value_pair" {
			a.Pairs = append(a.Pairs, symbols.PairDecl{
				Name:  x.ctx.Text(arg.ChildByFieldName("key")),
				Value: x.value(arg.ChildByFieldName("value"), e),
			})
			continue
		}
		a.Pairs = append(a.Pairs, symbols.PairDecl{Name: "value", Value: x.value(arg, e)})
	}
	return a
}

// value renders an annotation element value. Anything that is not a literal,
// class literal, enum constant, array or nested annotation is kept as its
// source text.
func (x *javaExtractor) value(node *sitter.Node, e *env) symbols.ValueDecl {
	if node == nil {
		return symbols.ValueDecl{Kind: symbols.ValueString}
	}
	text := x.ctx.Text(node)
	switch node.Kind() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(text, "L") || strings.HasSuffix(text, "l") {
			return symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "J", Literal: text}
		}
		return symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "I", Literal: text}
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F") {
			return symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "F", Literal: text}
		}
		return symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "D", Literal: text}
	case "true", "false":
		return symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "Z", Literal: text}
	case "character_literal":
		return symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "C", Literal: text}
	case "string_literal":
		return symbols.ValueDecl{Kind: symbols.ValueString, Literal: unquote(text)}
	case "class_literal":
		return symbols.ValueDecl{Kind: symbols.ValueType, Type: x.typeSig(firstType(node), e)}
	case "field_access":
		return symbols.ValueDecl{
			Kind:    symbols.ValueEnum,
			Type:    x.namedType(x.ctx.Text(node.ChildByFieldName("object")), e),
			Literal: x.ctx.Text(node.ChildByFieldName("field")),
		}
	case "element_value_array_initializer":
		v := symbols.ValueDecl{Kind: symbols.ValueArray}
		for _, c := range namedChildren(node) {
			v.Elements = append(v.Elements, x.value(c, e))
		}
		return v
	case "marker_annotation", "annotation":
		a := x.annotation(node, e)
		return symbols.ValueDecl{Kind: symbols.ValueAnnotation, Annotation: &a}
	case "parenthesized_expression":
		if children := namedChildren(node); len(children) == 1 {
			return x.value(children[0], e)
		}
	case "unary_expression":
		v := x.value(node.ChildByFieldName("operand"), e)
		if v.Kind == symbols.ValuePrimitive {
			v.Literal = text
			return v
		}
	}
	return symbols.ValueDecl{Kind: symbols.ValueString, Literal: text}
}

func unquote(s string) string {
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		return strings.TrimPrefix(strings.TrimSpace(s[3:len(s)-3]), "\n")
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
}
