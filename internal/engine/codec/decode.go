package codec

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/keys"
	"bindkey/internal/engine/registry"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/observability"
)

// Index is the part of the project index the decoder reads.
type Index interface {
	Lookup(ctx context.Context, qualifiedName string) (*symbols.TypeDecl, bool, error)
}

type emptyIndex struct{}

func (emptyIndex) Lookup(context.Context, string) (*symbols.TypeDecl, bool, error) {
	return nil, false, nil
}

// Decoder rebuilds bindings from keys inside one registry. Declarations are
// materialized from the index the first time a key names them: their header
// (type parameters, bounds, supertypes) at once, their members on Complete.
// A Decoder shares its registry's single-writer discipline.
type Decoder struct {
	reg     *registry.Registry
	index   Index
	logger  *slog.Logger
	missing map[string]string
	pending map[*binding.TypeDeclaration]*symbols.TypeDecl
	sigs    map[*binding.Method]string
}

func NewDecoder(reg *registry.Registry, index Index) *Decoder {
	if index == nil {
		index = emptyIndex{}
	}
	return &Decoder{
		reg:     reg,
		index:   index,
		logger:  slog.Default().With("session", reg.Session()),
		missing: make(map[string]string),
		pending: make(map[*binding.TypeDeclaration]*symbols.TypeDecl),
		sigs:    make(map[*binding.Method]string),
	}
}

func (d *Decoder) Registry() *registry.Registry { return d.reg }

// view is the decoding context of a subtree. Inside index records a plain
// reference to a generic declaration is a raw type.
type view struct {
	sc     *scope
	record bool
}

// Decode parses key and resolves it. A grammar violation is returned as
// *DecodeError; anything the index cannot supply yields a Recovered binding
// for the whole key. Decode panics on an empty key.
func (d *Decoder) Decode(ctx context.Context, key string) (binding.Binding, error) {
	start := time.Now()
	n, err := keys.Parse(key)
	if err != nil {
		observability.DecodeDuration.WithLabelValues("malformed").Observe(time.Since(start).Seconds())
		return nil, err
	}
	b, err := d.decodeNode(ctx, n, view{})
	if err != nil {
		var ue *unresolvedError
		if !errors.As(err, &ue) {
			ue = &unresolvedError{reason: ReasonLookupFailed, detail: err.Error()}
		}
		d.logger.Debug("key recovered", "key", key, "reason", ue.reason, "detail", ue.detail)
		observability.DecodeDuration.WithLabelValues("recovered").Observe(time.Since(start).Seconds())
		return d.reg.Recovered(key, ue.reason), nil
	}
	if decl := declarationOf(b); decl != nil {
		d.Complete(ctx, decl)
	}
	observability.DecodeDuration.WithLabelValues("resolved").Observe(time.Since(start).Seconds())
	return b, nil
}

func (d *Decoder) decodeNode(ctx context.Context, n keys.Node, v view) (binding.Binding, error) {
	switch t := n.(type) {
	case *keys.MethodNode:
		return d.method(ctx, t, v)
	case *keys.FieldNode:
		return d.field(ctx, t, v)
	case *keys.ParameterNode:
		return d.parameter(ctx, t, v)
	case *keys.AnnotationNode:
		return d.annotationOf(ctx, t, v)
	case *keys.PackageNode:
		return d.reg.Package(t.Name), nil
	}
	return d.typeOf(ctx, n, v)
}

func (d *Decoder) typeOf(ctx context.Context, n keys.Node, v view) (binding.Binding, error) {
	switch t := n.(type) {
	case *keys.BaseNode:
		return d.reg.Base(t.Code), nil
	case *keys.ClassNode:
		return d.class(ctx, t, v)
	case *keys.LocalTypeNode:
		return d.localType(ctx, t, v)
	case *keys.ArrayNode:
		elem, err := d.typeOf(ctx, t.Element, v)
		if err != nil {
			return nil, err
		}
		return d.reg.Array(elem, t.Dimensions), nil
	case *keys.WildcardNode:
		return d.wildcard(ctx, t, v)
	case *keys.CaptureNode:
		w, err := d.wildcard(ctx, t.Wildcard, v)
		if err != nil {
			return nil, err
		}
		return d.reg.CaptureAt(w, t.Site), nil
	case *keys.TypeVariableNode:
		return d.typeVariable(ctx, t, v)
	case *keys.TypeVariableRefNode:
		if tv := v.sc.lookup(t.Name); tv != nil {
			return tv, nil
		}
		return nil, unresolved(ReasonTypeVariable, "type variable %s is not in scope", t.Name)
	}
	return nil, unresolved(ReasonNoMember, "%s does not denote a type", keys.Format(n))
}

func (d *Decoder) class(ctx context.Context, c *keys.ClassNode, v view) (binding.Binding, error) {
	var (
		cur binding.Binding
		qn  string
	)
	for i, seg := range c.Segments {
		if i == 0 {
			qn = seg.Name
		} else {
			qn += "$" + seg.Name
		}
		decl, err := d.Declaration(ctx, qn)
		if err != nil {
			return nil, err
		}
		var enclosing binding.Binding
		switch cur.(type) {
		case *binding.Parameterized, *binding.Raw:
			enclosing = cur
		}

		switch seg.Form {
		case keys.FormPlain:
			switch enclosing.(type) {
			case *binding.Raw:
				cur = d.reg.Raw(decl, enclosing)
			case *binding.Parameterized:
				if decl.IsGeneric() {
					return nil, unresolved(ReasonArity, "%s needs %d type arguments", qn, len(decl.TypeParameters))
				}
				cur = d.reg.Parameterized(decl, enclosing, nil)
			default:
				if v.record && decl.IsGeneric() {
					cur = d.reg.Raw(decl, nil)
				} else {
					cur = decl
				}
			}
		case keys.FormRaw:
			if !decl.IsGeneric() && enclosing == nil {
				return nil, unresolved(ReasonNotGeneric, "raw reference to non-generic %s", qn)
			}
			cur = d.reg.Raw(decl, enclosing)
		case keys.FormArguments:
			if names, ok := seg.DeclarationParams(); ok && enclosing == nil && !v.record && !resolvesAll(v.sc, names) {
				if !declares(decl, names) {
					return nil, unresolved(ReasonArity, "%s does not declare type parameters %s", qn, strings.Join(names, ","))
				}
				cur = decl
				continue
			}
			if !decl.IsGeneric() {
				return nil, unresolved(ReasonNotGeneric, "type arguments for non-generic %s", qn)
			}
			if len(seg.Args) != len(decl.TypeParameters) {
				return nil, unresolved(ReasonArity, "%s takes %d type arguments, got %d", qn, len(decl.TypeParameters), len(seg.Args))
			}
			args := make([]binding.Binding, len(seg.Args))
			for j, a := range seg.Args {
				arg, err := d.typeOf(ctx, a, v)
				if err != nil {
					return nil, err
				}
				args[j] = arg
			}
			cur = d.reg.Parameterized(decl, enclosing, args)
		}
	}
	return cur, nil
}

func resolvesAll(sc *scope, names []string) bool {
	if sc == nil {
		return false
	}
	for _, name := range names {
		if sc.lookup(name) == nil {
			return false
		}
	}
	return true
}

func declares(decl *binding.TypeDeclaration, names []string) bool {
	if len(names) != len(decl.TypeParameters) {
		return false
	}
	for i, tv := range decl.TypeParameters {
		if tv.Name != names[i] {
			return false
		}
	}
	return true
}

func (d *Decoder) localType(ctx context.Context, l *keys.LocalTypeNode, v view) (binding.Binding, error) {
	m, err := d.method(ctx, l.Method, view{sc: v.sc})
	if err != nil {
		return nil, err
	}
	method, ok := m.(*binding.Method)
	if !ok {
		return nil, unresolved(ReasonNoMember, "%s is not a method", keys.Format(l.Method))
	}
	qn := l.QualifiedName()
	decl, err := d.Declaration(ctx, qn)
	if err != nil {
		return nil, err
	}
	if decl.Local == nil || decl.Local.Method == nil || decl.Local.Method.Declaration() != method.Declaration() {
		return nil, unresolved(ReasonNoMember, "%s is not declared in %s", qn, method.Name)
	}
	return decl, nil
}

func (d *Decoder) wildcard(ctx context.Context, w *keys.WildcardNode, v view) (*binding.Wildcard, error) {
	var generic *binding.TypeDeclaration
	if w.Generic != nil {
		g, err := d.typeOf(ctx, w.Generic, view{sc: v.sc})
		if err != nil {
			return nil, err
		}
		if generic = declarationOf(g); generic == nil {
			return nil, unresolved(ReasonNotGeneric, "%s cannot own a wildcard", keys.Format(w.Generic))
		}
		if w.Rank >= len(generic.TypeParameters) {
			return nil, unresolved(ReasonArity, "%s has no type parameter %d", generic.QualifiedName, w.Rank)
		}
	}
	kind := binding.Unbounded
	switch w.Bound {
	case keys.BoundExtends:
		kind = binding.Extends
	case keys.BoundSuper:
		kind = binding.Super
	}
	var bound binding.Binding
	if kind != binding.Unbounded {
		b, err := d.typeOf(ctx, w.Type, v)
		if err != nil {
			return nil, err
		}
		bound = b
	}
	return d.reg.Wildcard(generic, w.Rank, kind, bound), nil
}

func (d *Decoder) typeVariable(ctx context.Context, t *keys.TypeVariableNode, v view) (binding.Binding, error) {
	owner, err := d.decodeNode(ctx, t.Owner, view{sc: v.sc})
	if err != nil {
		return nil, err
	}
	var params []*binding.TypeVariable
	switch o := owner.(type) {
	case *binding.Method:
		params = o.Declaration().TypeParameters
	default:
		if decl := declarationOf(owner); decl != nil {
			params = decl.TypeParameters
		}
	}
	for _, tv := range params {
		if tv.Name == t.Name {
			return tv, nil
		}
	}
	return nil, unresolved(ReasonTypeVariable, "%s declares no type variable %s", keys.Format(t.Owner), t.Name)
}

func (d *Decoder) method(ctx context.Context, mn *keys.MethodNode, v view) (binding.Binding, error) {
	owner, err := d.typeOf(ctx, mn.Owner, view{sc: v.sc})
	if err != nil {
		return nil, err
	}
	decl := declarationOf(owner)
	if decl == nil {
		return nil, unresolved(ReasonNoMember, "%s cannot declare methods", keys.Format(mn.Owner))
	}
	d.Complete(ctx, decl)

	want := requestedSignature(mn)
	var found *binding.Method
	for _, cand := range decl.MethodsNamed(mn.Name) {
		if d.signatureOf(cand) == want {
			found = cand
			break
		}
	}
	if found == nil {
		return nil, unresolved(ReasonNoMember, "%s has no method %s%s", decl.QualifiedName, mn.Name, want)
	}
	result := found
	switch owner.(type) {
	case *binding.Parameterized, *binding.Raw:
		result = d.reg.MemberOf(owner, found)
	}
	if !mn.Instance {
		return result, nil
	}
	if len(mn.TypeArgs) == 0 {
		if !found.IsGeneric() {
			return nil, unresolved(ReasonNotGeneric, "raw use of non-generic method %s", mn.Name)
		}
		return d.reg.RawMethod(result), nil
	}
	if len(mn.TypeArgs) != len(found.TypeParameters) {
		return nil, unresolved(ReasonArity, "%s takes %d type arguments, got %d", mn.Name, len(found.TypeParameters), len(mn.TypeArgs))
	}
	args := make([]binding.Binding, len(mn.TypeArgs))
	for i, a := range mn.TypeArgs {
		arg, err := d.typeOf(ctx, a, v)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return d.reg.MethodInstance(result, args), nil
}

// requestedSignature prints the signature a method key asks for, spelling out
// the implicit Object bound the way declared methods are printed.
func requestedSignature(mn *keys.MethodNode) string {
	decl := *mn.Declaration()
	decl.TypeParams = make([]keys.TypeParamNode, len(mn.TypeParams))
	for i, tp := range mn.TypeParams {
		if len(tp.Bounds) == 0 {
			tp.Bounds = []keys.Node{&keys.ClassNode{Segments: []keys.Segment{{Name: binding.ObjectName}}}}
		}
		decl.TypeParams[i] = tp
	}
	sig, _ := keys.FormatSignature(&decl)
	return sig
}

func (d *Decoder) signatureOf(m *binding.Method) string {
	if sig, ok := d.sigs[m]; ok {
		return sig
	}
	sig := MethodSignature(m)
	d.sigs[m] = sig
	return sig
}

func (d *Decoder) field(ctx context.Context, fn *keys.FieldNode, v view) (binding.Binding, error) {
	owner, err := d.typeOf(ctx, fn.Owner, view{sc: v.sc})
	if err != nil {
		return nil, err
	}
	decl := declarationOf(owner)
	if decl == nil {
		return nil, unresolved(ReasonNoMember, "%s cannot declare fields", keys.Format(fn.Owner))
	}
	d.Complete(ctx, decl)
	f := decl.Field(fn.Name)
	if f == nil {
		return nil, unresolved(ReasonNoMember, "%s has no field %s", decl.QualifiedName, fn.Name)
	}
	want, _ := keys.FormatSignature(fn.Type)
	e := encoder{sc: typeScope(decl), signature: true}
	if got, _ := keys.FormatSignature(e.node(f.Type)); got != want {
		return nil, unresolved(ReasonNoMember, "field %s.%s has type %s, not %s", decl.QualifiedName, fn.Name, got, want)
	}
	switch owner.(type) {
	case *binding.Parameterized, *binding.Raw:
		return d.reg.FieldOf(owner, f), nil
	}
	return f, nil
}

func (d *Decoder) parameter(ctx context.Context, pn *keys.ParameterNode, v view) (binding.Binding, error) {
	b, err := d.method(ctx, pn.Method, v)
	if err != nil {
		return nil, err
	}
	m := b.(*binding.Method)
	idx := m.Parameter(pn.Name)
	if idx < 0 && strings.HasPrefix(pn.Name, "arg") {
		if n, err := strconv.Atoi(strings.TrimPrefix(pn.Name, "arg")); err == nil {
			idx = n
		}
	}
	if idx < 0 || idx >= len(m.ParameterTypes) {
		return nil, unresolved(ReasonNoMember, "%s has no parameter %s", m.Name, pn.Name)
	}
	return d.reg.Parameter(m, idx), nil
}

func (d *Decoder) annotationOf(ctx context.Context, an *keys.AnnotationNode, v view) (binding.Binding, error) {
	el, err := d.decodeNode(ctx, an.Element, v)
	if err != nil {
		return nil, err
	}
	t, err := d.typeOf(ctx, an.Type, v)
	if err != nil {
		return nil, err
	}
	typ := declarationOf(t)
	var list []*binding.Annotation
	switch e := el.(type) {
	case *binding.Method:
		decl := e.Declaration()
		if owner := decl.DeclaringDeclaration(); owner != nil {
			d.Complete(ctx, owner)
		}
		list = decl.Annotations
	case *binding.Variable:
		list = e.Declaration().Annotations
	default:
		if decl := declarationOf(el); decl != nil {
			d.Complete(ctx, decl)
			list = decl.Annotations
		}
	}
	for _, a := range list {
		if a.Type == typ {
			return a, nil
		}
	}
	return nil, unresolved(ReasonNoMember, "%s is not annotated with %s", keys.Format(an.Element), keys.Format(an.Type))
}

func declarationOf(b binding.Binding) *binding.TypeDeclaration {
	switch t := b.(type) {
	case *binding.TypeDeclaration:
		return t
	case *binding.Parameterized:
		return t.Generic
	case *binding.Raw:
		return t.Generic
	}
	return nil
}
