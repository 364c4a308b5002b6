package registry

import (
	"testing"

	"bindkey/internal/engine/binding"
)

func declare(r *Registry, name string, params ...string) *binding.TypeDeclaration {
	d, _ := r.Declare(name, binding.DeclClass)
	for i, p := range params {
		d.TypeParameters = append(d.TypeParameters, r.TypeVariable(d, p, i))
	}
	return d
}

func TestParameterizedInterning(t *testing.T) {
	r := New()
	list := declare(r, "java.util.List", "E")
	str := declare(r, "java.lang.String")
	obj := r.Object()

	a := r.Parameterized(list, nil, []binding.Binding{str})
	b := r.Parameterized(list, nil, []binding.Binding{str})
	if a != b {
		t.Fatal("expected identical requests to return the same instance")
	}
	if c := r.Parameterized(list, nil, []binding.Binding{obj}); c == a {
		t.Fatal("expected different arguments to yield a different instance")
	}
	raw := r.Raw(list, nil)
	if raw != r.Raw(list, nil) {
		t.Fatal("expected raw types to be interned")
	}
	if binding.IsEqualTo(raw, a) || binding.IsEqualTo(raw, list) || binding.IsEqualTo(list, a) {
		t.Fatal("expected declaration, raw and parameterized forms to differ")
	}
	if r.TypeDeclarationOf(raw) != list || r.TypeDeclarationOf(a) != list {
		t.Fatal("expected raw and parameterized forms to map back to the declaration")
	}
}

func TestDeclareRegistersShellOnce(t *testing.T) {
	r := New()
	d, created := r.Declare("p.X", binding.DeclInterface)
	if !created || d.ID() == 0 {
		t.Fatalf("expected a new registered shell, got created=%v id=%d", created, d.ID())
	}
	again, created := r.Declare("p.X", binding.DeclClass)
	if created || again != d {
		t.Fatal("expected the existing declaration")
	}
	if got, ok := r.Lookup(d.ID()); !ok || got != d {
		t.Fatal("expected lookup by slot to find the declaration")
	}
	if _, ok := r.Lookup(0); ok {
		t.Fatal("slot 0 is never assigned")
	}
}

func TestArrayFlattening(t *testing.T) {
	r := New()
	i := r.Base('I')
	a1 := r.Array(i, 1)
	a3 := r.Array(a1, 2)
	if a3.Dimensions != 3 || a3.Element != i {
		t.Fatalf("expected int[][][] with int element, got %d dims of %v", a3.Dimensions, a3.Element)
	}
	if a3 != r.Array(i, 3) {
		t.Fatal("expected flattened arrays to be interned together")
	}
}

func TestCaptures(t *testing.T) {
	r := New()
	num := declare(r, "java.lang.Number")
	w := r.Wildcard(nil, 0, binding.Extends, num)
	if w != r.Wildcard(nil, 0, binding.Extends, num) {
		t.Fatal("expected wildcards to be interned")
	}

	c1 := r.Capture(w)
	c2 := r.Capture(w)
	if c1 == c2 || binding.IsEqualTo(c1, c2) {
		t.Fatal("expected captures at different sites to differ")
	}
	if c1.UpperBounds[0] != num {
		t.Fatal("expected the wildcard bound as upper bound")
	}

	decoded := r.CaptureAt(w, 40)
	if decoded != r.CaptureAt(w, 40) {
		t.Fatal("expected a named site to map to one capture")
	}
	if next := r.Capture(w); next.Site <= 40 {
		t.Fatalf("expected fresh sites after 40, got %d", next.Site)
	}
}

func TestCaptureConversionRecursiveBound(t *testing.T) {
	r := New()
	comparable := declare(r, "java.lang.Comparable", "T")
	x := declare(r, "p.X", "T")
	tv := x.TypeParameters[0]
	tv.Bounds = []binding.Binding{r.Parameterized(comparable, nil, []binding.Binding{tv})}

	p := r.Parameterized(x, nil, []binding.Binding{r.Wildcard(x, 0, binding.Unbounded, nil)})
	captured := r.CaptureConversion(p)
	c, ok := captured.Arguments[0].(*binding.Capture)
	if !ok {
		t.Fatalf("expected a capture argument, got %T", captured.Arguments[0])
	}
	bound, ok := c.UpperBounds[0].(*binding.Parameterized)
	if !ok || bound.Generic != comparable || bound.Arguments[0] != c {
		t.Fatalf("expected Comparable<capture> bound, got %#v", c.UpperBounds)
	}
	if r.CaptureConversion(captured) != captured {
		t.Fatal("expected no wildcards left to capture")
	}
}

func TestTypeVariableIdentity(t *testing.T) {
	r := New()
	x := declare(r, "p.X", "T")
	if r.TypeVariable(x, "T", 0) != x.TypeParameters[0] {
		t.Fatal("expected type variables keyed by owner and name")
	}
	y := declare(r, "p.Y", "T")
	if y.TypeParameters[0] == x.TypeParameters[0] {
		t.Fatal("expected different owners to yield different variables")
	}
	m := r.NewMethod(x, "foo")
	if r.TypeVariable(m, "T", 0) == x.TypeParameters[0] {
		t.Fatal("expected method type variables to be distinct from type ones")
	}
}

func TestMethodInstances(t *testing.T) {
	r := New()
	collections := declare(r, "java.util.Collections")
	list := declare(r, "java.util.List", "E")
	str := declare(r, "java.lang.String")
	integer := declare(r, "java.lang.Integer")

	m := r.NewMethod(collections, "singletonList")
	tv := r.TypeVariable(m, "T", 0)
	m.TypeParameters = []*binding.TypeVariable{tv}
	m.ParameterTypes = []binding.Binding{tv}
	m.ReturnType = r.Parameterized(list, nil, []binding.Binding{tv})
	m.Static = true

	first := r.MethodInstance(m, []binding.Binding{str})
	second := r.MethodInstance(m, []binding.Binding{str})
	if first != second {
		t.Fatal("expected the same inferred argument to reuse the instance")
	}
	if other := r.MethodInstance(m, []binding.Binding{integer}); other == first {
		t.Fatal("expected a different argument to create a new instance")
	}
	if first.ParameterTypes[0] != str {
		t.Fatalf("expected substituted parameter, got %v", first.ParameterTypes[0])
	}
	if ret := first.ReturnType.(*binding.Parameterized); ret.Arguments[0] != str {
		t.Fatal("expected substituted return type")
	}
	if !binding.SameMethodDeclaration(first, m) || first.Declaration() != m {
		t.Fatal("expected the instance to point at its declaration")
	}

	raw := r.RawMethod(m)
	if raw != r.RawMethod(m) || !raw.RawInstance {
		t.Fatal("expected raw method use to be interned")
	}
	if raw.ParameterTypes[0] != r.Object() {
		t.Fatal("expected erased parameter for raw use")
	}
	if got := r.TypeArgumentsOf(first); len(got) != 1 || got[0] != str {
		t.Fatal("expected type arguments of the instance")
	}
}

func TestMemberOfParameterizedType(t *testing.T) {
	r := New()
	list := declare(r, "java.util.List", "E")
	str := declare(r, "java.lang.String")
	get := r.NewMethod(list, "get")
	get.ParameterTypes = []binding.Binding{r.Base('I')}
	get.ReturnType = list.TypeParameters[0]
	list.Methods = append(list.Methods, get)

	strings := r.Parameterized(list, nil, []binding.Binding{str})
	member := r.MemberOf(strings, get)
	if member.ReturnType != str {
		t.Fatalf("expected String return type, got %v", member.ReturnType)
	}
	if member != r.MemberOf(strings, get) {
		t.Fatal("expected members to be interned per owner")
	}
	if r.DeclaringClassOf(member) != strings {
		t.Fatal("expected the parameterized owner as declaring class")
	}

	rawMember := r.MemberOf(r.Raw(list, nil), get)
	if rawMember.ReturnType != r.Object() {
		t.Fatalf("expected erased return type on raw owner, got %v", rawMember.ReturnType)
	}

	size := r.NewField(list, "size")
	size.Type = list.TypeParameters[0]
	if f := r.FieldOf(strings, size); f.Type != str || f.Declaration() != size {
		t.Fatal("expected substituted field type")
	}
}

func TestErasureIdempotence(t *testing.T) {
	r := New()
	comparable := declare(r, "java.lang.Comparable", "T")
	list := declare(r, "java.util.List", "E")
	x := declare(r, "p.X", "T")
	tv := x.TypeParameters[0]
	tv.Bounds = []binding.Binding{r.Parameterized(comparable, nil, []binding.Binding{tv})}

	samples := []binding.Binding{
		r.Base('I'),
		list,
		r.Raw(list, nil),
		r.Parameterized(list, nil, []binding.Binding{tv}),
		r.Array(r.Parameterized(list, nil, []binding.Binding{tv}), 2),
		tv,
		r.Wildcard(list, 0, binding.Unbounded, nil),
		r.Wildcard(nil, 0, binding.Super, x),
		r.Capture(r.Wildcard(nil, 0, binding.Extends, tv)),
	}
	for _, b := range samples {
		once := r.ErasureOf(b)
		if twice := r.ErasureOf(once); twice != once {
			t.Errorf("erasure of %s not idempotent: %v then %v", b.Kind(), once, twice)
		}
	}
	if r.ErasureOf(tv) != comparable {
		t.Fatal("expected T extends Comparable<T> to erase to Comparable")
	}
	if arr := r.ErasureOf(samples[4]).(*binding.Array); arr.Element != list || arr.Dimensions != 2 {
		t.Fatal("expected List<T>[][] to erase to List[][]")
	}
}

func TestQueries(t *testing.T) {
	r := New()
	outer := declare(r, "p.Outer", "T")
	inner, _ := r.Declare("p.Outer$Inner", binding.DeclClass)
	inner.Enclosing = outer
	run := r.NewMethod(outer, "run")
	local, _ := r.Declare("p.Outer$1Local", binding.DeclClass)
	local.Enclosing = outer
	local.Local = &binding.LocalScope{Method: run, Occurrence: 1, Name: "Local"}
	mtv := r.TypeVariable(run, "U", 0)
	run.TypeParameters = []*binding.TypeVariable{mtv}
	run.ParameterTypes = []binding.Binding{mtv}
	run.ParameterNames = []string{"value"}

	if r.DeclaringClassOf(inner) != outer || r.DeclaringClassOf(outer) != nil {
		t.Fatal("unexpected declaring classes")
	}
	if r.DeclaringMethodOf(local) != run || r.DeclaringMethodOf(mtv) != run {
		t.Fatal("unexpected declaring methods")
	}
	if r.DeclaringClassOf(mtv) != nil || r.DeclaringClassOf(outer.TypeParameters[0]) != outer {
		t.Fatal("unexpected type variable owners")
	}
	param := r.Parameter(run, 0)
	if param != r.Parameter(run, 0) || param.Name != "value" || r.DeclaringMethodOf(param) != run {
		t.Fatal("expected interned parameter variable")
	}
	if got := r.TypeParametersOf(r.Raw(outer, nil)); len(got) != 1 || got[0].Name != "T" {
		t.Fatal("expected raw types to report declaration parameters")
	}
	if r.TypeDeclarationOf(r.Wildcard(nil, 0, binding.Unbounded, nil)) != r.Object() {
		t.Fatal("expected unbounded wildcard to map to Object")
	}
}

func TestPreconditionPanics(t *testing.T) {
	r := New()
	list := declare(r, "java.util.List", "E")
	plain := declare(r, "p.Plain")

	mustPanic(t, "arity", func() { r.Parameterized(list, nil, nil) })
	mustPanic(t, "non-generic", func() { r.Parameterized(plain, nil, nil) })
	mustPanic(t, "raw non-generic", func() { r.Raw(plain, nil) })
	mustPanic(t, "zero dims", func() { r.Array(plain, 0) })
	mustPanic(t, "foreign binding", func() { r.Array(&binding.BaseType{Code: 'I'}, 1) })
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}
