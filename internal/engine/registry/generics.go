package registry

import (
	"fmt"
	"strconv"

	"bindkey/internal/engine/binding"
)

// Env maps type variables to the types that replace them.
type Env map[*binding.TypeVariable]binding.Binding

// EnvOf builds the substitution a parameterized or raw type applies to the
// members of its declaration, enclosing instantiations included. Raw types
// substitute erasures.
func (r *Registry) EnvOf(owner binding.Binding) Env {
	env := make(Env)
	r.fillEnv(env, owner)
	return env
}

func (r *Registry) fillEnv(env Env, owner binding.Binding) {
	switch t := owner.(type) {
	case *binding.Parameterized:
		for i, tv := range t.Generic.TypeParameters {
			env[tv] = t.Arguments[i]
		}
		if t.Enclosing != nil {
			r.fillEnv(env, t.Enclosing)
		}
	case *binding.Raw:
		for d := t.Generic; d != nil; d = d.Enclosing {
			for _, tv := range d.TypeParameters {
				env[tv] = r.ErasureOf(tv)
			}
			if d.Static {
				break
			}
		}
	}
}

// Substitute replaces the type variables of b found in env. Type variable
// bounds are not descended into, so recursive bounds terminate.
func (r *Registry) Substitute(b binding.Binding, env Env) binding.Binding {
	if len(env) == 0 || b == nil {
		return b
	}
	switch t := b.(type) {
	case *binding.TypeVariable:
		if s, ok := env[t]; ok {
			return s
		}
		return t
	case *binding.Parameterized:
		args := r.substituteAll(t.Arguments, env)
		enclosing := r.Substitute(t.Enclosing, env)
		return r.Parameterized(t.Generic, enclosing, args)
	case *binding.Raw:
		return r.Raw(t.Generic, r.Substitute(t.Enclosing, env))
	case *binding.Array:
		return r.Array(r.Substitute(t.Element, env), t.Dimensions)
	case *binding.Wildcard:
		if t.BoundKind == binding.Unbounded {
			return t
		}
		return r.Wildcard(t.Generic, t.Rank, t.BoundKind, r.Substitute(t.Bound, env))
	}
	return b
}

func (r *Registry) substituteAll(bs []binding.Binding, env Env) []binding.Binding {
	if bs == nil {
		return nil
	}
	out := make([]binding.Binding, len(bs))
	for i, b := range bs {
		out[i] = r.Substitute(b, env)
	}
	return out
}

// CaptureConversion replaces every wildcard argument of p by a fresh capture.
// Each capture's bounds are the declared bounds of its parameter with all
// parameters substituted by the new arguments; the captures exist before their
// bounds are computed, which keeps T extends Comparable<T> finite.
func (r *Registry) CaptureConversion(p *binding.Parameterized) *binding.Parameterized {
	params := p.Generic.TypeParameters
	args := make([]binding.Binding, len(p.Arguments))
	var fresh []int
	for i, a := range p.Arguments {
		if w, ok := a.(*binding.Wildcard); ok {
			args[i] = r.Capture(w)
			fresh = append(fresh, i)
			continue
		}
		args[i] = a
	}
	if len(fresh) == 0 {
		return p
	}
	env := make(Env, len(params))
	for i, tv := range params {
		env[tv] = args[i]
	}
	if p.Enclosing != nil {
		r.fillEnv(env, p.Enclosing)
	}
	for _, i := range fresh {
		c := args[i].(*binding.Capture)
		declared := make([]binding.Binding, 0, len(params[i].Bounds))
		for _, bound := range params[i].Bounds {
			declared = append(declared, r.Substitute(bound, env))
		}
		switch c.Wildcard.BoundKind {
		case binding.Extends:
			c.UpperBounds = append([]binding.Binding{c.Wildcard.Bound}, declared...)
		default:
			c.UpperBounds = declared
		}
	}
	return r.Parameterized(p.Generic, p.Enclosing, args)
}

// MemberOf returns method m as seen through owner, a parameterized or raw type
// of m's declaring type, with a substituted signature.
func (r *Registry) MemberOf(owner binding.Binding, m *binding.Method) *binding.Method {
	key := "M" + strconv.FormatUint(uint64(r.slot(owner)), 10) + "/" + strconv.FormatUint(uint64(r.slot(m)), 10)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Method)
	}
	env := r.EnvOf(owner)
	if _, raw := owner.(*binding.Raw); raw && !m.Static {
		for _, tv := range m.TypeParameters {
			env[tv] = r.ErasureOf(tv)
		}
	}
	if m.Static {
		env = nil
	}
	member := &binding.Method{
		DeclaringType:  owner,
		Name:           m.Name,
		TypeParameters: m.TypeParameters,
		ParameterTypes: r.substituteAll(m.ParameterTypes, env),
		ParameterNames: m.ParameterNames,
		ReturnType:     r.Substitute(m.ReturnType, env),
		Static:         m.Static,
		Default:        m.Default,
		Annotations:    m.Annotations,
		Original:       m,
	}
	r.add(member)
	r.interned[key] = member
	return member
}

// FieldOf returns field f as seen through owner.
func (r *Registry) FieldOf(owner binding.Binding, f *binding.Variable) *binding.Variable {
	key := "F" + strconv.FormatUint(uint64(r.slot(owner)), 10) + "/" + strconv.FormatUint(uint64(r.slot(f)), 10)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Variable)
	}
	typ := f.Type
	if !f.Static {
		typ = r.Substitute(typ, r.EnvOf(owner))
	}
	field := &binding.Variable{
		Name:          f.Name,
		DeclaringType: owner,
		Type:          typ,
		Static:        f.Static,
		EnumConstant:  f.EnumConstant,
		Annotations:   f.Annotations,
		Original:      f,
	}
	r.add(field)
	r.interned[key] = field
	return field
}

// MethodInstance interns generic method m applied to type arguments, as
// inferred at a call site. The same arguments yield the same instance.
func (r *Registry) MethodInstance(m *binding.Method, args []binding.Binding) *binding.Method {
	if len(args) != len(m.TypeParameters) || len(args) == 0 {
		panic(fmt.Sprintf("registry: %s takes %d type arguments, got %d", m.Name, len(m.TypeParameters), len(args)))
	}
	key := "I" + strconv.FormatUint(uint64(r.slot(m)), 10) + "/" + r.slots(args)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Method)
	}
	env := make(Env, len(args))
	for i, tv := range m.TypeParameters {
		env[tv] = args[i]
	}
	inst := r.instance(m, env)
	inst.TypeArguments = append([]binding.Binding(nil), args...)
	r.add(inst)
	r.interned[key] = inst
	return inst
}

// RawMethod interns the raw use of generic method m: an invocation without
// inferred type arguments, whose signature is erased.
func (r *Registry) RawMethod(m *binding.Method) *binding.Method {
	if !m.IsGeneric() {
		panic(fmt.Sprintf("registry: raw use of non-generic method %s", m.Name))
	}
	key := "IR" + strconv.FormatUint(uint64(r.slot(m)), 10)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Method)
	}
	env := make(Env, len(m.TypeParameters))
	for _, tv := range m.TypeParameters {
		env[tv] = r.ErasureOf(tv)
	}
	inst := r.instance(m, env)
	inst.RawInstance = true
	r.add(inst)
	r.interned[key] = inst
	return inst
}

func (r *Registry) instance(m *binding.Method, env Env) *binding.Method {
	return &binding.Method{
		DeclaringType:  m.DeclaringType,
		Name:           m.Name,
		ParameterTypes: r.substituteAll(m.ParameterTypes, env),
		ParameterNames: m.ParameterNames,
		ReturnType:     r.Substitute(m.ReturnType, env),
		Static:         m.Static,
		Annotations:    m.Annotations,
		Original:       m,
	}
}
