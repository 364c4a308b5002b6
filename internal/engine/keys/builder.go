package keys

import (
	"strconv"
	"strings"
)

// TypeKey builds the key of a type from its source name: "int",
// "java.util.HashMap", "java.util.Map$Entry", "java.lang.String[][]".
func TypeKey(typeName string) string {
	name := strings.TrimSpace(typeName)
	dims := 0
	for strings.HasSuffix(name, "[]") {
		dims++
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	if name == "" {
		panic("keys: empty type name")
	}
	var elem string
	if code, ok := BaseTypeCode(name); ok {
		elem = string(code)
	} else {
		elem = "L" + strings.ReplaceAll(name, ".", "/") + ";"
	}
	return strings.Repeat("[", dims) + elem
}

// ParameterizedKey applies argument keys to a plain class key. It panics when
// no arguments are given.
func ParameterizedKey(genericKey string, argKeys ...string) string {
	if len(argKeys) == 0 {
		panic("keys: parameterized key needs at least one argument")
	}
	return classStem(genericKey) + "<" + strings.Join(argKeys, "") + ">;"
}

// RawKey marks a plain class key as a raw reference.
func RawKey(genericKey string) string {
	return classStem(genericKey) + "<>;"
}

// WildcardKey builds a wildcard argument for the rank-th parameter of the
// generic type genericKey. boundKey is ignored for BoundNone.
func WildcardKey(genericKey string, bound WildcardBound, boundKey string, rank int) string {
	var b strings.Builder
	b.WriteString(genericKey)
	b.WriteByte('{')
	b.WriteString(strconv.Itoa(rank))
	b.WriteByte('}')
	switch bound {
	case BoundExtends:
		b.WriteByte('+')
		b.WriteString(boundKey)
	case BoundSuper:
		b.WriteByte('-')
		b.WriteString(boundKey)
	default:
		b.WriteByte('*')
	}
	return b.String()
}

func ArrayKey(elementKey string, dims int) string {
	if dims < 1 {
		panic("keys: array needs at least one dimension")
	}
	return strings.Repeat("[", dims) + elementKey
}

// TypeVariableKey builds the key of the type variable name declared by the
// type or method ownerKey.
func TypeVariableKey(ownerKey, name string) string {
	return ownerKey + ":" + name + ";"
}

func classStem(key string) string {
	if !strings.HasPrefix(key, "L") || !strings.HasSuffix(key, ";") {
		panic("keys: not a class key: " + key)
	}
	return strings.TrimSuffix(key, ";")
}
