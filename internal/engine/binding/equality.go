package binding

// IsEqualTo compares two bindings by their type-theoretic identity. It differs
// from pointer identity: equal bindings may come from different sessions, and
// captures are only equal to captures of the same wildcard at the same site.
func IsEqualTo(a, b Binding) bool {
	c := comparer{visiting: make(map[[2]Binding]struct{})}
	return c.equal(a, b)
}

// SameMethodDeclaration compares the declarations behind two methods, ignoring
// whether either side is a member of a parameterized type or a generic instance.
func SameMethodDeclaration(a, b *Method) bool {
	if a == nil || b == nil {
		return a == b
	}
	return IsEqualTo(a.Declaration(), b.Declaration())
}

// comparer tracks pairs under comparison; re-entering a pair counts as equal,
// which terminates on recursive bounds and method type variables.
type comparer struct {
	visiting map[[2]Binding]struct{}
}

func (c *comparer) equal(a, b Binding) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	pair := [2]Binding{a, b}
	if _, ok := c.visiting[pair]; ok {
		return true
	}
	c.visiting[pair] = struct{}{}
	defer delete(c.visiting, pair)

	switch x := a.(type) {
	case *BaseType:
		return x.Code == b.(*BaseType).Code
	case *Package:
		return x.QualifiedName == b.(*Package).QualifiedName
	case *Recovered:
		return x.RequestedKey == b.(*Recovered).RequestedKey
	case *TypeDeclaration:
		return c.sameDeclaration(x, b.(*TypeDeclaration))
	case *Parameterized:
		y := b.(*Parameterized)
		return c.sameDeclaration(x.Generic, y.Generic) &&
			c.equal(x.Enclosing, y.Enclosing) &&
			c.all(x.Arguments, y.Arguments)
	case *Raw:
		y := b.(*Raw)
		return c.sameDeclaration(x.Generic, y.Generic) && c.equal(x.Enclosing, y.Enclosing)
	case *Array:
		y := b.(*Array)
		return x.Dimensions == y.Dimensions && c.equal(x.Element, y.Element)
	case *TypeVariable:
		y := b.(*TypeVariable)
		return x.Name == y.Name && c.equal(x.Owner(), y.Owner())
	case *Wildcard:
		y := b.(*Wildcard)
		if x.BoundKind != y.BoundKind {
			return false
		}
		return x.BoundKind == Unbounded || c.equal(x.Bound, y.Bound)
	case *Capture:
		y := b.(*Capture)
		return x.Site == y.Site && x.Wildcard.Rank == y.Wildcard.Rank &&
			c.equal(x.Wildcard, y.Wildcard) && c.sameDeclaration(x.Wildcard.Generic, y.Wildcard.Generic)
	case *Method:
		y := b.(*Method)
		return x.Name == y.Name &&
			x.RawInstance == y.RawInstance &&
			c.equal(x.DeclaringType, y.DeclaringType) &&
			c.all(x.ParameterTypes, y.ParameterTypes) &&
			c.all(x.TypeArguments, y.TypeArguments) &&
			c.typeParameters(x.TypeParameters, y.TypeParameters)
	case *Variable:
		y := b.(*Variable)
		if x.Name != y.Name || x.Parameter != y.Parameter || x.Index != y.Index {
			return false
		}
		if x.Parameter {
			return c.equal(methodOrNil(x.DeclaringMethod), methodOrNil(y.DeclaringMethod))
		}
		return c.equal(x.DeclaringType, y.DeclaringType) && c.equal(x.Type, y.Type)
	case *Annotation:
		y := b.(*Annotation)
		if !c.sameDeclaration(x.Type, y.Type) || len(x.Declared) != len(y.Declared) {
			return false
		}
		for i := range x.Declared {
			if x.Declared[i].Name != y.Declared[i].Name || !c.equalValue(x.Declared[i].Value, y.Declared[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (c *comparer) sameDeclaration(x, y *TypeDeclaration) bool {
	if x == nil || y == nil {
		return x == y
	}
	if x == y {
		return true
	}
	if x.QualifiedName != y.QualifiedName {
		return false
	}
	if (x.Enclosing == nil) != (y.Enclosing == nil) {
		return false
	}
	if x.Enclosing != nil && !c.sameDeclaration(x.Enclosing, y.Enclosing) {
		return false
	}
	if (x.Local == nil) != (y.Local == nil) {
		return false
	}
	if x.Local == nil {
		return true
	}
	return x.Local.Name == y.Local.Name &&
		x.Local.Occurrence == y.Local.Occurrence &&
		c.equal(methodOrNil(x.Local.Method), methodOrNil(y.Local.Method))
}

func (c *comparer) all(xs, ys []Binding) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if !c.equal(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

func (c *comparer) typeParameters(xs, ys []*TypeVariable) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i].Name != ys[i].Name || !c.bounds(xs[i].Bounds, ys[i].Bounds) {
			return false
		}
	}
	return true
}

// bounds treats a missing bound list as the implicit java.lang.Object bound.
func (c *comparer) bounds(xs, ys []Binding) bool {
	if len(xs) == 0 && isObjectBound(ys) || len(ys) == 0 && isObjectBound(xs) {
		return true
	}
	return c.all(xs, ys)
}

func isObjectBound(bs []Binding) bool {
	if len(bs) != 1 {
		return false
	}
	d, ok := bs[0].(*TypeDeclaration)
	return ok && d.QualifiedName == ObjectName
}

func (c *comparer) equalValue(x, y Value) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if x.ValueKind() != y.ValueKind() {
		return false
	}
	switch v := x.(type) {
	case PrimitiveValue:
		w := y.(PrimitiveValue)
		return v.Code == w.Code && v.Literal == w.Literal
	case StringValue:
		return v.Text == y.(StringValue).Text
	case EnumValue:
		return c.equal(variableOrNil(v.Constant), variableOrNil(y.(EnumValue).Constant))
	case TypeValue:
		return c.equal(v.Type, y.(TypeValue).Type)
	case AnnotationValue:
		return c.equal(annotationOrNil(v.Annotation), annotationOrNil(y.(AnnotationValue).Annotation))
	case ArrayValue:
		w := y.(ArrayValue)
		if len(v.Elements) != len(w.Elements) {
			return false
		}
		for i := range v.Elements {
			if !c.equalValue(v.Elements[i], w.Elements[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// The helpers below keep typed nil pointers out of Binding interfaces.

func methodOrNil(m *Method) Binding {
	if m == nil {
		return nil
	}
	return m
}

func variableOrNil(v *Variable) Binding {
	if v == nil {
		return nil
	}
	return v
}

func annotationOrNil(a *Annotation) Binding {
	if a == nil {
		return nil
	}
	return a
}
