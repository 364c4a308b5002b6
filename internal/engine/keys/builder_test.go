package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeKey(t *testing.T) {
	cases := map[string]string{
		"int":                   "I",
		"boolean[]":             "[Z",
		"java.lang.String":      "Ljava/lang/String;",
		"java.util.Map$Entry":   "Ljava/util/Map$Entry;",
		"java.lang.String[][]":  "[[Ljava/lang/String;",
		"X":                     "LX;",
		" java.util.HashMap ":   "Ljava/util/HashMap;",
	}
	for in, want := range cases {
		assert.Equal(t, want, TypeKey(in), in)
	}
	assert.Panics(t, func() { TypeKey("[]") })
}

func TestComposedWildcardSignature(t *testing.T) {
	hashMap := TypeKey("java.util.HashMap")
	key := ParameterizedKey(hashMap,
		WildcardKey(hashMap, BoundExtends, TypeKey("java.lang.Integer"), 0),
		WildcardKey(hashMap, BoundSuper, TypeKey("java.lang.String"), 1),
	)
	assert.Equal(t, "Ljava/util/HashMap<Ljava/util/HashMap;{0}+Ljava/lang/Integer;Ljava/util/HashMap;{1}-Ljava/lang/String;>;", key)

	sig, err := Signature(key)
	require.NoError(t, err)
	assert.Equal(t, "Ljava.util.HashMap<+Ljava.lang.Integer;-Ljava.lang.String;>;", sig)
}

func TestSignature(t *testing.T) {
	cases := map[string]string{
		"LX<TE;>;":                        "LX<TE;>;",
		"Lp/X<>;":                         "Lp.X;",
		"Lp/X;:T;":                        "TT;",
		"[Lp/X;":                          "[Lp.X;",
		"Lp/Y;.foo<T:Lp/X;>(TT;)V":        "<T:Lp.X;>(TT;)V",
		"Lp/Y;.foo<T:LA;&LB;>(TT;)V":      "<T:LA;:LB;>(TT;)V",
		"Lp/X;.run()V$1Local;":            "Lp.X$1Local;",
		"Lp/X;.name)Ljava/lang/String;":   "Ljava.lang.String;",
		"!Lp/X;{0}+Ljava/lang/Number;12;": "!+Ljava.lang.Number;",
		"java/util":                       "java.util",
	}
	for key, want := range cases {
		got, err := Signature(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	_, err := Signature("Lp/X;.m(I)V#count;")
	assert.Error(t, err)
	_, err = Signature("Lp/X")
	assert.Error(t, err)
}

func TestBuilders(t *testing.T) {
	assert.Equal(t, "Lp/X<>;", RawKey("Lp/X;"))
	assert.Equal(t, "[[I", ArrayKey("I", 2))
	assert.Equal(t, "Lp/X;:T;", TypeVariableKey("Lp/X;", "T"))
	assert.Equal(t, "Lp/X;{2}*", WildcardKey("Lp/X;", BoundNone, "", 2))
	assert.Panics(t, func() { ParameterizedKey("Lp/X;") })
	assert.Panics(t, func() { ArrayKey("I", 0) })
}
