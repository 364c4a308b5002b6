package binding

import "testing"

func annotationType() *TypeDeclaration {
	ann := &TypeDeclaration{QualifiedName: "p.Retry", DeclKind: DeclAnnotation}
	ann.Methods = []*Method{
		{DeclaringType: ann, Name: "value", ReturnType: &BaseType{Code: 'I'}},
		{DeclaringType: ann, Name: "backoff", ReturnType: &BaseType{Code: 'J'}, Default: PrimitiveValue{Code: 'J', Literal: "100"}},
		{DeclaringType: ann, Name: "reason", Default: StringValue{Text: "flaky"}},
	}
	return ann
}

func TestMemberValuePairs(t *testing.T) {
	a := &Annotation{
		Type: annotationType(),
		Declared: []MemberValuePair{
			{Name: "reason", Value: StringValue{Text: "network"}},
			{Name: "value", Value: PrimitiveValue{Code: 'I', Literal: "3"}},
		},
	}

	declared := MemberValuePairs(a, true)
	if len(declared) != 2 || declared[0].Name != "reason" {
		t.Fatalf("unexpected declared pairs: %+v", declared)
	}

	all := MemberValuePairs(a, false)
	want := []struct {
		name      string
		defaulted bool
	}{{"value", false}, {"backoff", true}, {"reason", false}}
	if len(all) != len(want) {
		t.Fatalf("expected %d pairs, got %+v", len(want), all)
	}
	for i, w := range want {
		if all[i].Name != w.name || all[i].Defaulted != w.defaulted {
			t.Errorf("pair %d = %+v, want %s defaulted=%v", i, all[i], w.name, w.defaulted)
		}
	}
	if all[2].Value.(StringValue).Text != "network" {
		t.Error("expected the declared value to win over the default")
	}
}

func TestAllMemberValuePairsKeepsUnknownMembers(t *testing.T) {
	a := &Annotation{
		Type:     annotationType(),
		Declared: []MemberValuePair{{Name: "retired", Value: StringValue{Text: "x"}}},
	}
	all := AllMemberValuePairs(a)
	if len(all) != 3 || all[2].Name != "retired" {
		t.Fatalf("unexpected pairs: %+v", all)
	}
}

func TestAnnotationEquality(t *testing.T) {
	build := func(v string) *Annotation {
		return &Annotation{
			Type:     annotationType(),
			Declared: []MemberValuePair{{Name: "reason", Value: ArrayValue{Elements: []Value{StringValue{Text: v}}}}},
		}
	}
	if !IsEqualTo(build("a"), build("a")) {
		t.Error("expected equal annotations")
	}
	if IsEqualTo(build("a"), build("b")) {
		t.Error("expected different values to differ")
	}
}
