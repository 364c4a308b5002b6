package codec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/keys"
	"bindkey/internal/engine/registry"
	"bindkey/internal/engine/symbols"
)

func fixtureIndex() *symbols.MemoryTable {
	lang := &symbols.File{
		Path:    "java/lang/lang.java",
		Package: "java.lang",
		Types: []symbols.TypeDecl{
			{QualifiedName: "java.lang.Object", Kind: "class"},
			{QualifiedName: "java.lang.String", Kind: "class", Superclass: "Ljava.lang.Object;"},
			{QualifiedName: "java.lang.Number", Kind: "class", Superclass: "Ljava.lang.Object;"},
			{QualifiedName: "java.lang.Integer", Kind: "class", Superclass: "Ljava.lang.Number;"},
		},
	}
	util := &symbols.File{
		Path:    "java/util/HashMap.java",
		Package: "java.util",
		Types: []symbols.TypeDecl{{
			QualifiedName: "java.util.HashMap",
			Kind:          "class",
			TypeParams:    []symbols.TypeParam{{Name: "K"}, {Name: "V"}},
			Superclass:    "Ljava.lang.Object;",
			Methods: []symbols.MethodDecl{
				{Name: "put", Params: []string{"TK;", "TV;"}, ParamNames: []string{"key", "value"}, Return: "TV;"},
			},
		}},
	}
	p := &symbols.File{
		Path:    "p/X.java",
		Package: "p",
		Types: []symbols.TypeDecl{
			{
				QualifiedName: "p.X",
				Kind:          "class",
				TypeParams:    []symbols.TypeParam{{Name: "E"}},
				Fields: []symbols.FieldDecl{
					{Name: "value", Type: "TE;"},
					{Name: "RED", Type: "Lp.Color;", Static: true},
				},
				Methods: []symbols.MethodDecl{
					{Name: "foo", TypeParams: []symbols.TypeParam{{Name: "U"}}, Params: []string{"TU;"}, Return: "V"},
					{Name: "foo", TypeParams: []symbols.TypeParam{{Name: "U", Bounds: []string{"Ljava.lang.Number;"}}}, Params: []string{"TU;", "I"}, Return: "V"},
					{Name: "run", Return: "V", Annotations: []symbols.AnnotationDecl{{Type: "Lp.Ann;"}}},
					{Name: "make", Static: true, TypeParams: []symbols.TypeParam{{Name: "T"}}, Params: []string{"TT;"}, Return: "Lp.X<TT;>;"},
				},
				Annotations: []symbols.AnnotationDecl{{
					Type: "Lp.Ann;",
					Pairs: []symbols.PairDecl{
						{Name: "level", Value: symbols.ValueDecl{Kind: symbols.ValuePrimitive, Type: "I", Literal: "3"}},
						{Name: "color", Value: symbols.ValueDecl{Kind: symbols.ValueEnum, Type: "Lp.Color;", Literal: "GREEN"}},
					},
				}},
			},
			{QualifiedName: "p.X$Inner", Kind: "class", Enclosing: "p.X"},
			{
				QualifiedName: "p.X$1Local",
				Kind:          "class",
				Enclosing:     "p.X",
				Local:         &symbols.LocalDecl{Method: "run()V", MethodIndex: 2, Occurrence: 1, Name: "Local"},
				Methods:       []symbols.MethodDecl{{Name: "go", Return: "V"}},
			},
			{QualifiedName: "p.Ann", Kind: "annotation"},
			{
				QualifiedName: "p.Color",
				Kind:          "enum",
				Fields: []symbols.FieldDecl{
					{Name: "RED", Type: "Lp.Color;", Static: true, EnumConstant: true},
					{Name: "GREEN", Type: "Lp.Color;", Static: true, EnumConstant: true},
				},
			},
			{QualifiedName: "p.Broken", Kind: "class", TypeParams: []symbols.TypeParam{{Name: "A"}}, Superclass: "Lp.Gone;"},
		},
	}
	return symbols.NewMemoryTable(lang, util, p)
}

func newDecoder() *Decoder {
	return NewDecoder(registry.New(), fixtureIndex())
}

func decode(t *testing.T, d *Decoder, key string) binding.Binding {
	t.Helper()
	b, err := d.Decode(context.Background(), key)
	require.NoError(t, err)
	return b
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	keyList := []string{
		"I",
		"[[I",
		"Ljava/lang/String;",
		"Lp/X<TE;>;",
		"Lp/X<>;",
		"Lp/X<Ljava/lang/String;>;",
		"[Lp/X<Ljava/lang/String;>;",
		"Lp/X<TE;>.Inner;",
		"Lp/X<Ljava/lang/String;>.Inner;",
		"Lp/X;:E;",
		"Lp/X;.foo<U:Ljava/lang/Object;>(TU;)V",
		"Lp/X;.foo<U:Ljava/lang/Number;>(TU;I)V",
		"Lp/X;.foo<U:Ljava/lang/Object;>(TU;)V:U;",
		"Lp/X;.value)TE;",
		"Lp/X<Ljava/lang/String;>;.value)TE;",
		"Lp/X;.foo<U:Ljava/lang/Number;>(TU;I)V#arg1;",
		"Ljava/util/HashMap;.put(TK;TV;)TV;#value;",
		"Lp/X;.run()V$1Local;",
		"Lp/X;.run()V$1Local;.go()V",
		"Lp/X<TE;>;@Lp/Ann;",
		"Lp/X;.run()V@Lp/Ann;",
		"Ljava/util/HashMap<Ljava/util/HashMap;{0}+Ljava/lang/Integer;Ljava/util/HashMap;{1}-Ljava/lang/String;>;",
		"Lp/X<*>;",
		"!Lp/X;{0}*12;",
		"Lp/X;.make<T:Ljava/lang/Object;>(TT;)Lp/X<TT;>;%<Ljava/lang/String;>",
		"Lp/X;.make<T:Ljava/lang/Object;>(TT;)Lp/X<TT;>;%<>",
		"java/util",
	}
	for _, key := range keyList {
		t.Run(key, func(t *testing.T) {
			d := newDecoder()
			b := decode(t, d, key)
			_, recovered := b.(*binding.Recovered)
			require.False(t, recovered, "expected %s to resolve, got %v", key, b)
			assert.Equal(t, key, Encode(b))

			again := decode(t, d, key)
			assert.Same(t, b, again)

			fresh := decode(t, newDecoder(), Encode(b))
			assert.Equal(t, key, Encode(fresh))
		})
	}
}

func TestEncodeDecodeWithinOneSession(t *testing.T) {
	d := newDecoder()
	x := decode(t, d, "Lp/X<TE;>;").(*binding.TypeDeclaration)
	reg := d.Registry()

	str := decode(t, d, "Ljava/lang/String;")
	bindings := []binding.Binding{
		x,
		x.TypeParameters[0],
		reg.Raw(x, nil),
		reg.Parameterized(x, nil, []binding.Binding{str}),
		reg.Array(reg.Parameterized(x, nil, []binding.Binding{str}), 2),
		x.Methods[0],
		x.Methods[0].TypeParameters[0],
		x.Fields[0],
		reg.Parameter(x.Methods[1], 0),
		reg.MemberOf(reg.Parameterized(x, nil, []binding.Binding{str}), x.Methods[1]),
		x.Annotations[0],
	}
	for _, b := range bindings {
		key := Encode(b)
		got := decode(t, d, key)
		assert.Same(t, b, got, key)
	}
}

func TestHashMapWildcardSignature(t *testing.T) {
	d := newDecoder()
	b := decode(t, d, "Ljava/util/HashMap<Ljava/util/HashMap;{0}+Ljava/lang/Integer;Ljava/util/HashMap;{1}-Ljava/lang/String;>;")
	p, ok := b.(*binding.Parameterized)
	require.True(t, ok, "expected a parameterized type, got %T", b)

	sig, err := keys.FormatSignature(Node(p))
	require.NoError(t, err)
	assert.Equal(t, "Ljava.util.HashMap<+Ljava.lang.Integer;-Ljava.lang.String;>;", sig)

	w := p.Arguments[0].(*binding.Wildcard)
	assert.Equal(t, binding.Extends, w.BoundKind)
	assert.Same(t, p.Generic, w.Generic)
}

func TestRawTypeDeclarationSignature(t *testing.T) {
	d := newDecoder()
	raw := decode(t, d, "Lp/X<>;")
	require.IsType(t, &binding.Raw{}, raw)

	decl := d.Registry().TypeDeclarationOf(raw)
	sig, err := keys.FormatSignature(Node(decl))
	require.NoError(t, err)
	assert.Equal(t, "Lp.X<TE;>;", sig)
}

func TestOverloadedMethodTypeVariablesAreDistinct(t *testing.T) {
	d := newDecoder()
	x := decode(t, d, "Lp/X<TE;>;").(*binding.TypeDeclaration)
	foos := x.MethodsNamed("foo")
	require.Len(t, foos, 2)

	k0 := Encode(foos[0].TypeParameters[0])
	k1 := Encode(foos[1].TypeParameters[0])
	assert.NotEqual(t, k0, k1)
	assert.False(t, binding.IsEqualTo(foos[0].TypeParameters[0], foos[1].TypeParameters[0]))
	assert.Same(t, foos[1].TypeParameters[0], decode(t, d, k1))
}

func TestDecodeMalformedKey(t *testing.T) {
	d := newDecoder()
	_, err := d.Decode(context.Background(), "Lp/X")
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 4, de.Offset)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeMalformedKey))
}

func TestDecodeRejectsOverflowingRank(t *testing.T) {
	d := newDecoder()
	b, err := d.Decode(context.Background(), "Lp/X<Lp/X;{18446744073709551615}*>;")
	require.Error(t, err)
	assert.Nil(t, b)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "number out of range", de.Reason)
}

func TestUnresolvedArgumentRecoversWholeKey(t *testing.T) {
	d := newDecoder()
	key := "Lp/X<Lp/Missing;>;"
	b := decode(t, d, key)

	rec, ok := b.(*binding.Recovered)
	require.True(t, ok, "expected a recovered binding, got %T", b)
	assert.Equal(t, key, rec.RequestedKey)
	assert.Equal(t, ReasonNotFound, rec.Reason)
	assert.Equal(t, key, Encode(rec))
	assert.Same(t, rec, decode(t, d, key))
}

func TestRecoveryReasons(t *testing.T) {
	cases := []struct {
		key    string
		reason string
	}{
		{"Lp/X<Ljava/lang/String;Ljava/lang/String;>;", ReasonArity},
		{"Ljava/lang/String<Lp/X;>;", ReasonNotGeneric},
		{"Ljava/lang/String<>;", ReasonNotGeneric},
		{"Lp/X;.nope()V", ReasonNoMember},
		{"Lp/X;.value)I", ReasonNoMember},
		{"Lp/X;:Q;", ReasonTypeVariable},
		{"Lp/X<TQ;>.Inner;", ReasonArity},
		{"Lp/X;{3}*", ReasonArity},
		{"Lp/X;.run()V$2Local;", ReasonNotFound},
		{"Lp/X;.foo<U:Ljava/lang/Number;>(TU;I)V#nope;", ReasonNoMember},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			b := decode(t, newDecoder(), tc.key)
			rec, ok := b.(*binding.Recovered)
			require.True(t, ok, "expected a recovered binding, got %T", b)
			assert.Equal(t, tc.reason, rec.Reason)
		})
	}
}

func TestBrokenSupertypeIsRecoveredInPlace(t *testing.T) {
	d := newDecoder()
	b := decode(t, d, "Lp/Broken<TA;>;")
	decl, ok := b.(*binding.TypeDeclaration)
	require.True(t, ok)

	super, ok := decl.Superclass.(*binding.Recovered)
	require.True(t, ok, "expected a recovered superclass, got %T", decl.Superclass)
	assert.Equal(t, ReasonNotFound, super.Reason)
	assert.Equal(t, "Lp/Gone;", super.RequestedKey)
}

func TestCapturesAreInternedPerSite(t *testing.T) {
	d := newDecoder()
	c12 := decode(t, d, "!Lp/X;{0}*12;")
	c13 := decode(t, d, "!Lp/X;{0}*13;")
	require.IsType(t, &binding.Capture{}, c12)
	assert.Same(t, c12, decode(t, d, "!Lp/X;{0}*12;"))
	assert.NotSame(t, c12, c13)
	assert.False(t, binding.IsEqualTo(c12, c13))
}

func TestCapturesSharingASiteKeepTheirWildcard(t *testing.T) {
	d := newDecoder()
	for _, key := range []string{"!Lp/X;{0}*1;", "!Ljava/util/HashMap;{1}-Ljava/lang/String;1;"} {
		assert.Equal(t, key, Encode(decode(t, d, key)))
	}
	a := decode(t, d, "!Lp/X;{0}*1;")
	b := decode(t, d, "!Ljava/util/HashMap;{1}-Ljava/lang/String;1;")
	assert.NotSame(t, a, b)
	assert.False(t, binding.IsEqualTo(a, b))
	assert.Same(t, a, decode(t, d, "!Lp/X;{0}*1;"))
}

func TestFreshCapturesDoNotReuseDecodedSites(t *testing.T) {
	d := newDecoder()
	decoded := decode(t, d, "!Lp/X;{0}*900;").(*binding.Capture)
	fresh := d.reg.Capture(decoded.Wildcard)
	assert.Greater(t, fresh.Site, decoded.Site)

	other := registry.New().Capture(decoded.Wildcard)
	assert.Greater(t, other.Site, fresh.Site, "sites are unique across sessions")
}

func TestLocalTypeBelongsToItsMethod(t *testing.T) {
	d := newDecoder()
	local := decode(t, d, "Lp/X;.run()V$1Local;").(*binding.TypeDeclaration)
	require.NotNil(t, local.Local)
	assert.Equal(t, "p.X$1Local", local.QualifiedName)
	assert.Equal(t, "run", local.Local.Method.Name)

	sig, err := keys.FormatSignature(Node(local))
	require.NoError(t, err)
	assert.Equal(t, "Lp.X$1Local;", sig)
}

func TestMemberOfParameterizedType(t *testing.T) {
	d := newDecoder()
	b := decode(t, d, "Ljava/util/HashMap<Ljava/lang/String;Ljava/lang/Integer;>;.put(TK;TV;)TV;")
	m, ok := b.(*binding.Method)
	require.True(t, ok)

	integer := decode(t, d, "Ljava/lang/Integer;")
	assert.Same(t, integer, m.ReturnType)
	assert.NotNil(t, m.Original)
	assert.Equal(t, []string{"key", "value"}, m.ParameterNames)
}

func TestMethodInstanceSubstitutesArguments(t *testing.T) {
	d := newDecoder()
	b := decode(t, d, "Lp/X;.make<T:Ljava/lang/Object;>(TT;)Lp/X<TT;>;%<Ljava/lang/String;>")
	m := b.(*binding.Method)

	str := decode(t, d, "Ljava/lang/String;")
	assert.Same(t, str, m.ParameterTypes[0])
	ret := m.ReturnType.(*binding.Parameterized)
	assert.Same(t, str, ret.Arguments[0])
}

func TestAnnotationValues(t *testing.T) {
	d := newDecoder()
	a := decode(t, d, "Lp/X;@Lp/Ann;").(*binding.Annotation)
	require.Len(t, a.Declared, 2)

	level := a.Declared[0].Value.(binding.PrimitiveValue)
	assert.Equal(t, byte('I'), level.Code)
	assert.Equal(t, "3", level.Literal)

	color := a.Declared[1].Value.(binding.EnumValue)
	require.NotNil(t, color.Constant)
	assert.Equal(t, "GREEN", color.Constant.Name)
	assert.True(t, color.Constant.EnumConstant)
}

func TestLookupFailureIsRememberedForTheSession(t *testing.T) {
	idx := &failingIndex{MemoryTable: fixtureIndex(), fail: "p.X", err: errors.New("disk unavailable")}
	d := NewDecoder(registry.New(), idx)

	first := decode(t, d, "Lp/X<TE;>;")
	rec, ok := first.(*binding.Recovered)
	require.True(t, ok)
	assert.Equal(t, ReasonLookupFailed, rec.Reason)

	idx.fail = ""
	second := decode(t, d, "Lp/X;.value)TE;")
	rec, ok = second.(*binding.Recovered)
	require.True(t, ok, "expected the earlier failure to stick, got %T", second)
	assert.Equal(t, ReasonLookupFailed, rec.Reason)
	assert.Equal(t, 1, idx.calls["p.X"])
}

func TestLookupTimeoutReason(t *testing.T) {
	idx := &failingIndex{MemoryTable: fixtureIndex(), fail: "p.X", err: context.DeadlineExceeded}
	d := NewDecoder(registry.New(), idx)
	rec := decode(t, d, "Lp/X;").(*binding.Recovered)
	assert.Equal(t, ReasonLookupTimeout, rec.Reason)
}

type failingIndex struct {
	*symbols.MemoryTable
	fail  string
	err   error
	calls map[string]int
}

func (f *failingIndex) Lookup(ctx context.Context, qualifiedName string) (*symbols.TypeDecl, bool, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[qualifiedName]++
	if qualifiedName == f.fail {
		return nil, false, f.err
	}
	return f.MemoryTable.Lookup(ctx, qualifiedName)
}
