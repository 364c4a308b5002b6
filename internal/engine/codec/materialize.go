package codec

import (
	"context"

	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/keys"
	"bindkey/internal/engine/symbols"
)

// Declaration returns the declaration named qualifiedName, materializing its
// header from the index on first use. The outcome of a failed lookup is
// remembered for the rest of the session, so one key always decodes the same
// way.
func (d *Decoder) Declaration(ctx context.Context, qualifiedName string) (*binding.TypeDeclaration, error) {
	if decl, ok := d.reg.Declaration(qualifiedName); ok {
		return decl, nil
	}
	if reason, ok := d.missing[qualifiedName]; ok {
		return nil, unresolved(reason, "%s", qualifiedName)
	}
	rec, found, err := d.index.Lookup(ctx, qualifiedName)
	if err != nil {
		reason := lookupReason(err)
		d.missing[qualifiedName] = reason
		d.logger.Warn("index lookup failed", "symbol", qualifiedName, "reason", reason, "error", err)
		return nil, unresolved(reason, "lookup %s: %v", qualifiedName, err)
	}
	if !found {
		d.missing[qualifiedName] = ReasonNotFound
		return nil, unresolved(ReasonNotFound, "%s is not in the index", qualifiedName)
	}
	decl, created := d.reg.Declare(qualifiedName, binding.ParseDeclKind(rec.Kind))
	if created {
		d.populate(ctx, decl, rec)
	}
	return decl, nil
}

// populate fills in a freshly declared shell. The shell is already registered,
// so bounds and supertypes that refer back to it resolve to the shell.
func (d *Decoder) populate(ctx context.Context, decl *binding.TypeDeclaration, rec *symbols.TypeDecl) {
	decl.Static = rec.Static
	if rec.Enclosing != "" {
		if enc, err := d.Declaration(ctx, rec.Enclosing); err == nil {
			decl.Enclosing = enc
		} else {
			d.logger.Debug("enclosing type unresolved", "symbol", rec.QualifiedName, "enclosing", rec.Enclosing)
		}
	}
	for i, tp := range rec.TypeParams {
		decl.TypeParameters = append(decl.TypeParameters, d.reg.TypeVariable(decl, tp.Name, i))
	}
	d.pending[decl] = rec

	if rec.Local != nil && decl.Enclosing != nil {
		decl.Local = &binding.LocalScope{Occurrence: rec.Local.Occurrence, Name: rec.Local.Name}
		d.Complete(ctx, decl.Enclosing)
		if i := rec.Local.MethodIndex; i >= 0 && i < len(decl.Enclosing.Methods) {
			decl.Local.Method = decl.Enclosing.Methods[i]
		}
	}

	sc := typeScope(decl)
	for i, tp := range rec.TypeParams {
		decl.TypeParameters[i].Bounds = d.bounds(ctx, tp.Bounds, sc)
	}
	if rec.Superclass != "" {
		decl.Superclass = d.signature(ctx, rec.Superclass, sc)
	}
	for _, iface := range rec.Interfaces {
		decl.Interfaces = append(decl.Interfaces, d.signature(ctx, iface, sc))
	}
}

// Complete materializes the members and annotations of decl. It is a no-op for
// declarations that did not come from the index or are already complete.
func (d *Decoder) Complete(ctx context.Context, decl *binding.TypeDeclaration) {
	rec, ok := d.pending[decl]
	if !ok {
		return
	}
	delete(d.pending, decl)

	fields := make([]*binding.Variable, len(rec.Fields))
	for i, f := range rec.Fields {
		v := d.reg.NewField(decl, f.Name)
		v.Static = f.Static
		v.EnumConstant = f.EnumConstant
		fields[i] = v
	}
	methods := make([]*binding.Method, len(rec.Methods))
	for i, md := range rec.Methods {
		m := d.reg.NewMethod(decl, md.Name)
		m.Static = md.Static
		m.ParameterNames = md.ParamNames
		for j, tp := range md.TypeParams {
			m.TypeParameters = append(m.TypeParameters, d.reg.TypeVariable(m, tp.Name, j))
		}
		methods[i] = m
	}
	decl.Fields = append(decl.Fields, fields...)
	decl.Methods = append(decl.Methods, methods...)

	sc := typeScope(decl)
	for i, f := range rec.Fields {
		fields[i].Type = d.signature(ctx, f.Type, sc)
		fields[i].Annotations = d.annotations(ctx, f.Annotations, fields[i], sc)
	}
	for i, md := range rec.Methods {
		m := methods[i]
		msc := methodScope(m)
		for j, tp := range md.TypeParams {
			m.TypeParameters[j].Bounds = d.bounds(ctx, tp.Bounds, msc)
		}
		for _, p := range md.Params {
			m.ParameterTypes = append(m.ParameterTypes, d.signature(ctx, p, msc))
		}
		if md.Return == "" {
			m.ReturnType = d.reg.Base('V')
		} else {
			m.ReturnType = d.signature(ctx, md.Return, msc)
		}
		if md.Default != nil {
			m.Default = d.value(ctx, *md.Default, msc)
		}
		m.Annotations = d.annotations(ctx, md.Annotations, m, msc)
	}
	decl.Annotations = d.annotations(ctx, rec.Annotations, decl, sc)
}

// signature resolves a type signature from an index record. Failures do not
// abort the enclosing declaration: the reference becomes a Recovered binding.
func (d *Decoder) signature(ctx context.Context, sig string, sc *scope) binding.Binding {
	n, err := keys.ParseSignature(sig)
	if err != nil {
		d.logger.Debug("malformed index signature", "signature", sig, "error", err)
		return d.reg.Recovered(sig, ReasonSignature)
	}
	b, err := d.typeOf(ctx, n, view{sc: sc, record: true})
	if err != nil {
		reason := ReasonLookupFailed
		if ue, ok := err.(*unresolvedError); ok {
			reason = ue.reason
		}
		return d.reg.Recovered(keys.Format(n), reason)
	}
	return b
}

func (d *Decoder) bounds(ctx context.Context, sigs []string, sc *scope) []binding.Binding {
	if len(sigs) == 0 {
		return []binding.Binding{d.object(ctx)}
	}
	out := make([]binding.Binding, 0, len(sigs))
	for _, sig := range sigs {
		out = append(out, d.signature(ctx, sig, sc))
	}
	return out
}

func (d *Decoder) object(ctx context.Context) *binding.TypeDeclaration {
	if decl, err := d.Declaration(ctx, binding.ObjectName); err == nil {
		return decl
	}
	return d.reg.Object()
}

func (d *Decoder) annotations(ctx context.Context, decls []symbols.AnnotationDecl, annotated binding.Binding, sc *scope) []*binding.Annotation {
	var out []*binding.Annotation
	for _, a := range decls {
		if ann := d.annotation(ctx, a, annotated, sc); ann != nil {
			out = append(out, ann)
		}
	}
	return out
}

// annotation materializes one annotation instance. An annotation whose type is
// not indexed is dropped.
func (d *Decoder) annotation(ctx context.Context, a symbols.AnnotationDecl, annotated binding.Binding, sc *scope) *binding.Annotation {
	n, err := keys.ParseSignature(a.Type)
	if err != nil {
		return nil
	}
	cls, ok := n.(*keys.ClassNode)
	if !ok {
		return nil
	}
	typ, err := d.Declaration(ctx, cls.QualifiedName())
	if err != nil {
		d.logger.Debug("annotation type unresolved", "symbol", cls.QualifiedName())
		return nil
	}
	pairs := make([]binding.MemberValuePair, 0, len(a.Pairs))
	for _, p := range a.Pairs {
		pairs = append(pairs, binding.MemberValuePair{Name: p.Name, Value: d.value(ctx, p.Value, sc)})
	}
	return d.reg.NewAnnotation(typ, annotated, pairs)
}

func (d *Decoder) value(ctx context.Context, v symbols.ValueDecl, sc *scope) binding.Value {
	switch v.Kind {
	case symbols.ValuePrimitive:
		code := byte('I')
		if v.Type != "" {
			code = v.Type[0]
		}
		return binding.PrimitiveValue{Code: code, Literal: v.Literal}
	case symbols.ValueEnum:
		if decl := declarationOf(d.signature(ctx, v.Type, sc)); decl != nil {
			d.Complete(ctx, decl)
			if f := decl.Field(v.Literal); f != nil {
				return binding.EnumValue{Constant: f}
			}
		}
		return binding.EnumValue{}
	case symbols.ValueType:
		return binding.TypeValue{Type: d.signature(ctx, v.Type, sc)}
	case symbols.ValueAnnotation:
		if v.Annotation != nil {
			if a := d.annotation(ctx, *v.Annotation, nil, sc); a != nil {
				return binding.AnnotationValue{Annotation: a}
			}
		}
		return binding.AnnotationValue{}
	case symbols.ValueArray:
		elems := make([]binding.Value, 0, len(v.Elements))
		for _, e := range v.Elements {
			elems = append(elems, d.value(ctx, e, sc))
		}
		return binding.ArrayValue{Elements: elems}
	}
	return binding.StringValue{Text: v.Literal}
}
