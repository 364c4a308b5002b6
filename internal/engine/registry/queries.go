package registry

import "bindkey/internal/engine/binding"

// TypeDeclarationOf maps parameterized and raw types to their generic
// declaration, wildcards and captures to the declaration of their upper bound,
// and members to the member as declared. Arrays map element-wise.
func (r *Registry) TypeDeclarationOf(b binding.Binding) binding.Binding {
	switch t := b.(type) {
	case *binding.Parameterized:
		return t.Generic
	case *binding.Raw:
		return t.Generic
	case *binding.Array:
		return r.Array(r.TypeDeclarationOf(t.Element), t.Dimensions)
	case *binding.Wildcard:
		if t.BoundKind == binding.Extends {
			return r.TypeDeclarationOf(t.Bound)
		}
		return r.Object()
	case *binding.Capture:
		return r.TypeDeclarationOf(t.Wildcard)
	case *binding.Method:
		return t.Declaration()
	case *binding.Variable:
		return t.Declaration()
	}
	return b
}

// ErasureOf strips all type arguments. Type variables erase to their first
// bound, wildcards and captures to their upper bound, Object when there is
// none. Erasure is idempotent.
func (r *Registry) ErasureOf(b binding.Binding) binding.Binding {
	return r.erase(b, make(map[binding.Binding]struct{}))
}

func (r *Registry) erase(b binding.Binding, seen map[binding.Binding]struct{}) binding.Binding {
	if _, ok := seen[b]; ok {
		return r.Object()
	}
	switch t := b.(type) {
	case *binding.Parameterized:
		return t.Generic
	case *binding.Raw:
		return t.Generic
	case *binding.Array:
		return r.Array(r.erase(t.Element, seen), t.Dimensions)
	case *binding.TypeVariable:
		if len(t.Bounds) == 0 {
			return r.Object()
		}
		seen[b] = struct{}{}
		return r.erase(t.Bounds[0], seen)
	case *binding.Wildcard:
		if t.BoundKind == binding.Extends {
			return r.erase(t.Bound, seen)
		}
		if t.Generic != nil && t.Rank >= 0 && t.Rank < len(t.Generic.TypeParameters) {
			return r.erase(t.Generic.TypeParameters[t.Rank], seen)
		}
		return r.Object()
	case *binding.Capture:
		seen[b] = struct{}{}
		if len(t.UpperBounds) > 0 {
			return r.erase(t.UpperBounds[0], seen)
		}
		return r.erase(t.Wildcard, seen)
	case *binding.Method:
		return t.Declaration()
	case *binding.Variable:
		return t.Declaration()
	}
	return b
}

// TypeArgumentsOf returns the arguments of a parameterized type or generic
// method instance.
func (r *Registry) TypeArgumentsOf(b binding.Binding) []binding.Binding {
	switch t := b.(type) {
	case *binding.Parameterized:
		return t.Arguments
	case *binding.Method:
		return t.TypeArguments
	}
	return nil
}

// TypeParametersOf returns the type variables declared by a generic type or
// method. Parameterized and raw types report their declaration's parameters;
// generic method instances report none.
func (r *Registry) TypeParametersOf(b binding.Binding) []*binding.TypeVariable {
	switch t := b.(type) {
	case *binding.TypeDeclaration:
		return t.TypeParameters
	case *binding.Parameterized:
		return t.Generic.TypeParameters
	case *binding.Raw:
		return t.Generic.TypeParameters
	case *binding.Method:
		return t.TypeParameters
	}
	return nil
}

// DeclaringClassOf returns the type that declares b: the enclosing type of a
// member or local type, the owner of a method or field, the type owning a type
// variable. It is nil for top-level types and for method type variables.
func (r *Registry) DeclaringClassOf(b binding.Binding) binding.Binding {
	switch t := b.(type) {
	case *binding.TypeDeclaration:
		if t.Enclosing != nil {
			return t.Enclosing
		}
	case *binding.Parameterized:
		if t.Enclosing != nil {
			return t.Enclosing
		}
		return r.DeclaringClassOf(t.Generic)
	case *binding.Raw:
		if t.Enclosing != nil {
			return t.Enclosing
		}
		return r.DeclaringClassOf(t.Generic)
	case *binding.Method:
		return t.DeclaringType
	case *binding.Variable:
		return t.DeclaringType
	case *binding.TypeVariable:
		if t.DeclaringType != nil {
			return t.DeclaringType
		}
	}
	return nil
}

// DeclaringMethodOf returns the method declaring a local type, method type
// variable or parameter.
func (r *Registry) DeclaringMethodOf(b binding.Binding) *binding.Method {
	switch t := b.(type) {
	case *binding.TypeDeclaration:
		if t.Local != nil {
			return t.Local.Method
		}
	case *binding.TypeVariable:
		return t.DeclaringMethod
	case *binding.Variable:
		return t.DeclaringMethod
	}
	return nil
}
