package codec

import "bindkey/internal/engine/binding"

// scope lists the type variables a signature may name in short form,
// innermost declarations first.
type scope struct {
	vars   []*binding.TypeVariable
	parent *scope
}

func (s *scope) lookup(name string) *binding.TypeVariable {
	for ; s != nil; s = s.parent {
		for _, tv := range s.vars {
			if tv.Name == name {
				return tv
			}
		}
	}
	return nil
}

// contains reports whether tv is the variable its name resolves to, so that a
// shadowed outer variable is never printed in short form.
func (s *scope) contains(tv *binding.TypeVariable) bool {
	return tv != nil && s.lookup(tv.Name) == tv
}

// typeScope is the scope inside declaration d: its own parameters, then those
// of the enclosing method of a local type or of the enclosing type of an inner
// type.
func typeScope(d *binding.TypeDeclaration) *scope {
	if d == nil {
		return nil
	}
	var parent *scope
	switch {
	case d.Local != nil && d.Local.Method != nil:
		parent = methodScope(d.Local.Method)
	case d.Enclosing != nil && !d.Static:
		parent = typeScope(d.Enclosing)
	}
	return &scope{vars: d.TypeParameters, parent: parent}
}

// methodScope is the scope inside the signature of m as declared. Static
// methods do not see the type parameters of their class.
func methodScope(m *binding.Method) *scope {
	decl := m.Declaration()
	var parent *scope
	if !decl.Static {
		parent = typeScope(decl.DeclaringDeclaration())
	}
	return &scope{vars: decl.TypeParameters, parent: parent}
}
