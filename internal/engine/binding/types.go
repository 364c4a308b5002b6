package binding

import "strings"

// ObjectName is the root of the class hierarchy and the implicit bound of
// every type variable.
const ObjectName = "java.lang.Object"

type DeclKind uint8

const (
	DeclClass DeclKind = iota
	DeclInterface
	DeclEnum
	DeclAnnotation
)

func (k DeclKind) String() string {
	switch k {
	case DeclInterface:
		return "interface"
	case DeclEnum:
		return "enum"
	case DeclAnnotation:
		return "annotation"
	}
	return "class"
}

// ParseDeclKind maps an index kind name back to a DeclKind. Unknown names,
// records included, are classes.
func ParseDeclKind(s string) DeclKind {
	switch s {
	case "interface":
		return DeclInterface
	case "enum":
		return DeclEnum
	case "annotation":
		return DeclAnnotation
	}
	return DeclClass
}

// TypeDeclaration is a class, interface, enum or annotation type as declared.
// A generic declaration lists its type parameters; it is distinct from both its
// raw form and every parameterization.
type TypeDeclaration struct {
	Identity
	// QualifiedName uses '.' between packages and '$' between nesting levels.
	QualifiedName  string
	DeclKind       DeclKind
	Enclosing      *TypeDeclaration
	Static         bool
	Local          *LocalScope
	TypeParameters []*TypeVariable
	Superclass     Binding
	Interfaces     []Binding
	Fields         []*Variable
	Methods        []*Method
	Annotations    []*Annotation
}

// LocalScope places a local or anonymous type inside its enclosing method.
// Occurrence counts same-named local types (or anonymous types) in that method.
type LocalScope struct {
	Method     *Method
	Occurrence int
	Name       string
}

func (*TypeDeclaration) Kind() Kind { return KindDeclaration }

func (d *TypeDeclaration) IsGeneric() bool { return len(d.TypeParameters) > 0 }

func (d *TypeDeclaration) IsAnonymous() bool { return d.Local != nil && d.Local.Name == "" }

func (d *TypeDeclaration) SimpleName() string {
	if d.Local != nil {
		return d.Local.Name
	}
	name := d.QualifiedName
	if i := strings.LastIndexByte(name, '$'); i >= 0 {
		return name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (d *TypeDeclaration) PackageName() string {
	for d.Enclosing != nil {
		d = d.Enclosing
	}
	if i := strings.LastIndexByte(d.QualifiedName, '.'); i >= 0 {
		return d.QualifiedName[:i]
	}
	return ""
}

// InheritsTypeParameters reports whether instances of d see the type parameters
// of an enclosing generic declaration, which is the case for non-static member
// and local types.
func (d *TypeDeclaration) InheritsTypeParameters() bool {
	if d.Enclosing == nil || d.Static {
		return false
	}
	return d.Enclosing.IsGeneric() || d.Enclosing.InheritsTypeParameters()
}

func (d *TypeDeclaration) Field(name string) *Variable {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (d *TypeDeclaration) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range d.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

func (d *TypeDeclaration) TypeParameter(name string) *TypeVariable {
	for _, tv := range d.TypeParameters {
		if tv.Name == name {
			return tv
		}
	}
	return nil
}

// Parameterized is a generic declaration applied to type arguments. Enclosing is
// set for member types of an instantiated (or raw) outer type.
type Parameterized struct {
	Identity
	Generic   *TypeDeclaration
	Enclosing Binding
	Arguments []Binding
}

func (*Parameterized) Kind() Kind { return KindParameterized }

type Raw struct {
	Identity
	Generic   *TypeDeclaration
	Enclosing Binding
}

func (*Raw) Kind() Kind { return KindRaw }

// Array never nests: Element is not an array.
type Array struct {
	Identity
	Element    Binding
	Dimensions int
}

func (*Array) Kind() Kind { return KindArray }

type TypeVariable struct {
	Identity
	Name            string
	Rank            int
	DeclaringType   *TypeDeclaration
	DeclaringMethod *Method
	Bounds          []Binding
}

func (*TypeVariable) Kind() Kind { return KindTypeVariable }

func (v *TypeVariable) Owner() Binding {
	if v.DeclaringMethod != nil {
		return v.DeclaringMethod
	}
	if v.DeclaringType != nil {
		return v.DeclaringType
	}
	return nil
}

type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Extends
	Super
)

func (k BoundKind) String() string {
	switch k {
	case Extends:
		return "extends"
	case Super:
		return "super"
	}
	return "unbounded"
}

// Wildcard optionally records the generic declaration and parameter rank it is
// an argument for.
type Wildcard struct {
	Identity
	BoundKind BoundKind
	Bound     Binding
	Generic   *TypeDeclaration
	Rank      int
}

func (*Wildcard) Kind() Kind { return KindWildcard }

// Capture is a fresh type standing in for a wildcard at one site. Captures are
// never interchangeable: the site together with the captured wildcard
// identifies them.
type Capture struct {
	Identity
	Wildcard    *Wildcard
	Site        uint64
	UpperBounds []Binding
	LowerBound  Binding
}

func (*Capture) Kind() Kind { return KindCapture }
