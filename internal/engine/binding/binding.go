// Package binding models resolved program entities: primitive and reference
// types, members, packages and annotation instances.
//
// Bindings are created by a registry session and handed out as pointers. The
// set of variants is closed; callers switch on the concrete type.
package binding

import "bindkey/internal/engine/keys"

// ID is the arena slot of a binding inside the session that created it.
type ID uint32

type Kind uint8

const (
	KindPrimitive Kind = iota + 1
	KindNull
	KindVoid
	KindDeclaration
	KindParameterized
	KindRaw
	KindArray
	KindTypeVariable
	KindWildcard
	KindCapture
	KindMethod
	KindVariable
	KindPackage
	KindAnnotation
	KindRecovered
)

var kindNames = map[Kind]string{
	KindPrimitive:     "primitive",
	KindNull:          "null",
	KindVoid:          "void",
	KindDeclaration:   "declaration",
	KindParameterized: "parameterized",
	KindRaw:           "raw",
	KindArray:         "array",
	KindTypeVariable:  "type-variable",
	KindWildcard:      "wildcard",
	KindCapture:       "capture",
	KindMethod:        "method",
	KindVariable:      "variable",
	KindPackage:       "package",
	KindAnnotation:    "annotation",
	KindRecovered:     "recovered",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Binding is implemented only by the pointer types of this package.
type Binding interface {
	ID() ID
	Kind() Kind
	identity() *Identity
}

// Identity carries the arena slot assigned when a binding is interned.
type Identity struct {
	Slot ID
}

func (i *Identity) ID() ID { return i.Slot }

func (i *Identity) identity() *Identity { return i }

// Assign records the arena slot of b. Only registries call it.
func Assign(b Binding, id ID) {
	b.identity().Slot = id
}

// IsType reports whether b denotes a type (including recovered references).
func IsType(b Binding) bool {
	switch b.Kind() {
	case KindMethod, KindVariable, KindPackage, KindAnnotation:
		return false
	}
	return true
}

type BaseType struct {
	Identity
	Code byte
}

func (b *BaseType) Kind() Kind {
	switch b.Code {
	case 'V':
		return KindVoid
	case 'N':
		return KindNull
	}
	return KindPrimitive
}

func (b *BaseType) Name() string {
	return keys.BaseTypeName(b.Code)
}

type Package struct {
	Identity
	QualifiedName string
}

func (*Package) Kind() Kind { return KindPackage }

// Recovered stands in for a reference that could not be resolved. It keeps the
// best-effort key so callers can keep walking.
type Recovered struct {
	Identity
	RequestedKey string
	Reason       string
}

func (*Recovered) Kind() Kind { return KindRecovered }
