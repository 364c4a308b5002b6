package binding

const (
	ConstructorName       = "<init>"
	StaticInitializerName = "<clinit>"
)

// Method is a method, constructor or initializer. Members of parameterized types
// and generic method instances point at the binding they derive from through
// Original.
type Method struct {
	Identity
	// DeclaringType is a *TypeDeclaration, or the *Parameterized / *Raw type a
	// member was looked up on.
	DeclaringType  Binding
	Name           string
	TypeParameters []*TypeVariable
	ParameterTypes []Binding
	ParameterNames []string
	ReturnType     Binding
	Static         bool
	Default        Value
	Annotations    []*Annotation

	Original      *Method
	TypeArguments []Binding
	RawInstance   bool
}

func (*Method) Kind() Kind { return KindMethod }

func (m *Method) IsConstructor() bool { return m.Name == ConstructorName }

func (m *Method) IsGeneric() bool { return len(m.TypeParameters) > 0 }

// IsInstance reports whether m is a parameterized or raw use of a generic method.
func (m *Method) IsInstance() bool { return m.TypeArguments != nil || m.RawInstance }

// Declaration walks Original links back to the method as declared.
func (m *Method) Declaration() *Method {
	for m.Original != nil {
		m = m.Original
	}
	return m
}

// DeclaringDeclaration returns the type declaration m belongs to, looking
// through parameterized and raw owners.
func (m *Method) DeclaringDeclaration() *TypeDeclaration {
	return declarationOf(m.DeclaringType)
}

func (m *Method) Parameter(name string) int {
	for i, n := range m.ParameterNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Variable is a field, enum constant or method parameter.
type Variable struct {
	Identity
	Name            string
	DeclaringType   Binding
	DeclaringMethod *Method
	Type            Binding
	Parameter       bool
	Index           int
	Static          bool
	EnumConstant    bool
	Annotations     []*Annotation
	Original        *Variable
}

func (*Variable) Kind() Kind { return KindVariable }

func (v *Variable) IsField() bool { return !v.Parameter }

func (v *Variable) Declaration() *Variable {
	for v.Original != nil {
		v = v.Original
	}
	return v
}

func declarationOf(b Binding) *TypeDeclaration {
	switch t := b.(type) {
	case *TypeDeclaration:
		return t
	case *Parameterized:
		return t.Generic
	case *Raw:
		return t.Generic
	}
	return nil
}
