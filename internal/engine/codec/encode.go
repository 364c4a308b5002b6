// Package codec maps bindings to keys and back.
//
// Encode is total: every binding a registry can hold has a key. Decode parses a
// key, looks up the declarations it names in the project index and rebuilds
// the binding inside the decoder's registry. A key that breaks the grammar is
// an error; a well-formed key naming something the index does not have decodes
// to a binding.Recovered carrying the requested key.
package codec

import (
	"strconv"

	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/keys"
)

// Encode returns the key of b.
func Encode(b binding.Binding) string {
	if rec, ok := b.(*binding.Recovered); ok {
		return rec.RequestedKey
	}
	return keys.Format(Node(b))
}

// Node returns the key syntax tree of b.
func Node(b binding.Binding) keys.Node {
	var e encoder
	return e.node(b)
}

// MethodSignature renders the signature part of a declared method key in
// signature form, which is how the index records methods.
func MethodSignature(m *binding.Method) string {
	e := encoder{signature: true}
	sig, _ := keys.FormatSignature(e.methodNode(m.Declaration()))
	return sig
}

type encoder struct {
	sc *scope
	// signature is set while printing the inside of a member signature, where
	// the full type variable form is not available.
	signature bool
}

func (e *encoder) node(b binding.Binding) keys.Node {
	switch t := b.(type) {
	case *binding.BaseType:
		return &keys.BaseNode{Code: t.Code}
	case *binding.TypeDeclaration:
		if t.Local != nil {
			return e.local(t)
		}
		return &keys.ClassNode{Segments: e.declarationSegments(t)}
	case *binding.Parameterized:
		return &keys.ClassNode{Segments: e.instanceSegments(t)}
	case *binding.Raw:
		return &keys.ClassNode{Segments: e.instanceSegments(t)}
	case *binding.Array:
		return &keys.ArrayNode{Dimensions: t.Dimensions, Element: e.node(t.Element)}
	case *binding.TypeVariable:
		if e.sc.contains(t) || e.signature || t.Owner() == nil {
			return &keys.TypeVariableRefNode{Name: t.Name}
		}
		return &keys.TypeVariableNode{Owner: e.owner(t.Owner()), Name: t.Name}
	case *binding.Wildcard:
		return e.wildcard(t)
	case *binding.Capture:
		return &keys.CaptureNode{Wildcard: e.wildcard(t.Wildcard), Site: t.Site}
	case *binding.Method:
		return e.method(t)
	case *binding.Variable:
		return e.variable(t)
	case *binding.Package:
		return &keys.PackageNode{Name: t.QualifiedName}
	case *binding.Annotation:
		var element keys.Node
		if t.Annotated != nil {
			element = e.node(t.Annotated)
		} else {
			element = e.owner(t.Type)
		}
		return &keys.AnnotationNode{Element: element, Type: e.owner(t.Type)}
	case *binding.Recovered:
		return recoveredNode(t)
	}
	return &keys.ClassNode{Segments: []keys.Segment{{Name: binding.ObjectName}}}
}

// owner prints a type or method in the position of a member owner, a type
// variable owner or a wildcard's generic type: declarations appear plain.
func (e *encoder) owner(b binding.Binding) keys.Node {
	switch t := b.(type) {
	case *binding.TypeDeclaration:
		if t.Local != nil {
			return e.local(t)
		}
		return &keys.ClassNode{Segments: []keys.Segment{{Name: t.QualifiedName}}}
	case *binding.Method:
		return e.method(t)
	}
	return e.node(b)
}

func (e *encoder) local(d *binding.TypeDeclaration) keys.Node {
	if d.Local.Method == nil {
		return &keys.ClassNode{Segments: []keys.Segment{{Name: d.QualifiedName}}}
	}
	return &keys.LocalTypeNode{
		Method:     e.method(d.Local.Method),
		Occurrence: d.Local.Occurrence,
		Name:       d.Local.Name,
	}
}

// declarationSegments prints a generic declaration with its own parameter
// list. Inner types of a generic chain are printed as members of their
// enclosing declaration so the inherited parameters stay visible.
func (e *encoder) declarationSegments(d *binding.TypeDeclaration) []keys.Segment {
	seg := keys.Segment{Name: d.QualifiedName}
	if d.IsGeneric() {
		seg.Form = keys.FormArguments
		for _, tv := range d.TypeParameters {
			seg.Args = append(seg.Args, &keys.TypeVariableRefNode{Name: tv.Name})
		}
	}
	if d.InheritsTypeParameters() && d.Enclosing.Local == nil {
		seg.Name = d.SimpleName()
		return append(e.declarationSegments(d.Enclosing), seg)
	}
	return []keys.Segment{seg}
}

func (e *encoder) instanceSegments(b binding.Binding) []keys.Segment {
	var (
		generic   *binding.TypeDeclaration
		enclosing binding.Binding
		seg       keys.Segment
	)
	switch t := b.(type) {
	case *binding.Parameterized:
		generic, enclosing = t.Generic, t.Enclosing
		if len(t.Arguments) > 0 {
			seg.Form = keys.FormArguments
			for _, a := range t.Arguments {
				seg.Args = append(seg.Args, e.node(a))
			}
		}
	case *binding.Raw:
		generic, enclosing = t.Generic, t.Enclosing
		if generic.IsGeneric() {
			seg.Form = keys.FormRaw
		}
	}
	var outer []keys.Segment
	switch enclosing.(type) {
	case *binding.Parameterized, *binding.Raw:
		if generic.Local == nil {
			outer = e.instanceSegments(enclosing)
		}
	}
	if outer == nil {
		seg.Name = generic.QualifiedName
		return []keys.Segment{seg}
	}
	seg.Name = generic.SimpleName()
	return append(outer, seg)
}

func (e *encoder) wildcard(w *binding.Wildcard) *keys.WildcardNode {
	n := &keys.WildcardNode{Rank: w.Rank}
	if w.Generic != nil && !e.signature {
		n.Generic = e.owner(w.Generic)
	}
	switch w.BoundKind {
	case binding.Extends:
		n.Bound = keys.BoundExtends
		n.Type = e.node(w.Bound)
	case binding.Super:
		n.Bound = keys.BoundSuper
		n.Type = e.node(w.Bound)
	}
	return n
}

// method keys a method by its owner, which for members of parameterized types
// is the parameterized type, and the signature of its declaration.
func (e *encoder) method(m *binding.Method) *keys.MethodNode {
	n := e.methodNode(m.Declaration())
	n.Owner = e.owner(m.DeclaringType)
	switch {
	case m.TypeArguments != nil:
		n.Instance = true
		for _, a := range m.TypeArguments {
			n.TypeArgs = append(n.TypeArgs, e.node(a))
		}
	case m.RawInstance:
		n.Instance = true
	}
	return n
}

// methodNode prints the signature of a declared method. The owner is left to
// the caller.
func (e *encoder) methodNode(decl *binding.Method) *keys.MethodNode {
	inner := encoder{sc: methodScope(decl), signature: true}
	n := &keys.MethodNode{Name: decl.Name}
	for _, tv := range decl.TypeParameters {
		tp := keys.TypeParamNode{Name: tv.Name}
		for _, bound := range tv.Bounds {
			tp.Bounds = append(tp.Bounds, inner.node(bound))
		}
		if len(tp.Bounds) == 0 {
			tp.Bounds = []keys.Node{&keys.ClassNode{Segments: []keys.Segment{{Name: binding.ObjectName}}}}
		}
		n.TypeParams = append(n.TypeParams, tp)
	}
	for _, p := range decl.ParameterTypes {
		n.Params = append(n.Params, inner.node(p))
	}
	if decl.ReturnType != nil {
		n.Return = inner.node(decl.ReturnType)
	} else {
		n.Return = &keys.BaseNode{Code: 'V'}
	}
	return n
}

func (e *encoder) variable(v *binding.Variable) keys.Node {
	if v.Parameter && v.DeclaringMethod != nil {
		return &keys.ParameterNode{Method: e.method(v.DeclaringMethod), Name: parameterName(v.DeclaringMethod, v.Index)}
	}
	decl := v.Declaration()
	inner := encoder{sc: typeScope(fieldDeclaration(decl)), signature: true}
	var typ keys.Node = &keys.ClassNode{Segments: []keys.Segment{{Name: binding.ObjectName}}}
	if decl.Type != nil {
		typ = inner.node(decl.Type)
	}
	return &keys.FieldNode{Owner: e.owner(v.DeclaringType), Name: v.Name, Type: typ}
}

func fieldDeclaration(v *binding.Variable) *binding.TypeDeclaration {
	switch t := v.DeclaringType.(type) {
	case *binding.TypeDeclaration:
		return t
	case *binding.Parameterized:
		return t.Generic
	case *binding.Raw:
		return t.Generic
	}
	return nil
}

// parameterName falls back to argN when the index has no parameter names.
func parameterName(m *binding.Method, index int) string {
	if index < len(m.ParameterNames) && m.ParameterNames[index] != "" {
		return m.ParameterNames[index]
	}
	return "arg" + strconv.Itoa(index)
}

func recoveredNode(r *binding.Recovered) keys.Node {
	if r.RequestedKey != "" {
		if n, err := keys.Parse(r.RequestedKey); err == nil {
			return n
		}
		if n, err := keys.ParseSignature(r.RequestedKey); err == nil {
			return n
		}
	}
	return &keys.ClassNode{Segments: []keys.Segment{{Name: binding.ObjectName}}}
}
