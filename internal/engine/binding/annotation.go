package binding

// Annotation is an annotation instance on a declaration, member or parameter.
type Annotation struct {
	Identity
	Type      *TypeDeclaration
	Annotated Binding
	Declared  []MemberValuePair
}

func (*Annotation) Kind() Kind { return KindAnnotation }

type MemberValuePair struct {
	Name      string
	Value     Value
	Defaulted bool
}

type ValueKind uint8

const (
	ValuePrimitive ValueKind = iota
	ValueString
	ValueEnum
	ValueType
	ValueAnnotation
	ValueArray
)

// Value is an annotation member value.
type Value interface {
	ValueKind() ValueKind
}

type PrimitiveValue struct {
	Code    byte
	Literal string
}

type StringValue struct {
	Text string
}

type EnumValue struct {
	Constant *Variable
}

type TypeValue struct {
	Type Binding
}

type AnnotationValue struct {
	Annotation *Annotation
}

type ArrayValue struct {
	Elements []Value
}

func (PrimitiveValue) ValueKind() ValueKind  { return ValuePrimitive }
func (StringValue) ValueKind() ValueKind     { return ValueString }
func (EnumValue) ValueKind() ValueKind       { return ValueEnum }
func (TypeValue) ValueKind() ValueKind       { return ValueType }
func (AnnotationValue) ValueKind() ValueKind { return ValueAnnotation }
func (ArrayValue) ValueKind() ValueKind      { return ValueArray }

// DeclaredMemberValuePairs returns only the pairs written at the use site.
func DeclaredMemberValuePairs(a *Annotation) []MemberValuePair {
	out := make([]MemberValuePair, len(a.Declared))
	copy(out, a.Declared)
	return out
}

// AllMemberValuePairs returns the declared pairs plus the defaults of every
// member left unspecified, in annotation member order. Pairs naming members
// the annotation type does not declare are kept at the end.
func AllMemberValuePairs(a *Annotation) []MemberValuePair {
	if a.Type == nil {
		return DeclaredMemberValuePairs(a)
	}
	declared := make(map[string]MemberValuePair, len(a.Declared))
	for _, p := range a.Declared {
		declared[p.Name] = p
	}
	out := make([]MemberValuePair, 0, len(a.Type.Methods))
	for _, m := range a.Type.Methods {
		if p, ok := declared[m.Name]; ok {
			out = append(out, p)
			delete(declared, m.Name)
			continue
		}
		if m.Default != nil {
			out = append(out, MemberValuePair{Name: m.Name, Value: m.Default, Defaulted: true})
		}
	}
	for _, p := range a.Declared {
		if _, ok := declared[p.Name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// MemberValuePairs selects between the declared-only and the complete view.
func MemberValuePairs(a *Annotation, declaredOnly bool) []MemberValuePair {
	if declaredOnly {
		return DeclaredMemberValuePairs(a)
	}
	return AllMemberValuePairs(a)
}
