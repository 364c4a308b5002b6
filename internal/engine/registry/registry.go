// Package registry owns the canonical bindings of one resolution session.
//
// A Registry is an arena: every binding it creates gets a slot, structurally
// identical parameterized, raw, array, wildcard and type variable requests
// return the same instance, and the whole arena is dropped with the session.
// A Registry is not safe for concurrent use; independent sessions use
// independent registries.
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"bindkey/internal/engine/binding"
	"bindkey/internal/shared/observability"
)

type Registry struct {
	session   string
	arena     []binding.Binding
	bases     map[byte]*binding.BaseType
	packages  map[string]*binding.Package
	decls     map[string]*binding.TypeDeclaration
	interned  map[string]binding.Binding
	captures  map[captureSite]*binding.Capture
	recovered map[string]*binding.Recovered
}

type captureSite struct {
	site     uint64
	wildcard *binding.Wildcard
}

// lastSite is shared by every registry in the process so fresh captures never
// reuse a site handed out by another session.
var lastSite atomic.Uint64

func New() *Registry {
	return &Registry{
		session:   uuid.NewString(),
		bases:     make(map[byte]*binding.BaseType),
		packages:  make(map[string]*binding.Package),
		decls:     make(map[string]*binding.TypeDeclaration),
		interned:  make(map[string]binding.Binding),
		captures:  make(map[captureSite]*binding.Capture),
		recovered: make(map[string]*binding.Recovered),
	}
}

// Session identifies the resolution session the arena belongs to.
func (r *Registry) Session() string { return r.session }

// Len reports how many bindings the arena holds.
func (r *Registry) Len() int { return len(r.arena) }

// Lookup returns the binding stored in slot id.
func (r *Registry) Lookup(id binding.ID) (binding.Binding, bool) {
	if id == 0 || int(id) > len(r.arena) {
		return nil, false
	}
	return r.arena[id-1], true
}

func (r *Registry) add(b binding.Binding) {
	r.arena = append(r.arena, b)
	binding.Assign(b, binding.ID(len(r.arena)))
	observability.BindingsInterned.WithLabelValues(b.Kind().String()).Inc()
}

func (r *Registry) slot(b binding.Binding) binding.ID {
	if b == nil {
		return 0
	}
	id := b.ID()
	if id == 0 {
		panic(fmt.Sprintf("registry: %s binding does not belong to a session", b.Kind()))
	}
	return id
}

func (r *Registry) slots(bs []binding.Binding) string {
	var sb strings.Builder
	for i, b := range bs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(r.slot(b)), 10))
	}
	return sb.String()
}

func (r *Registry) Base(code byte) *binding.BaseType {
	if b, ok := r.bases[code]; ok {
		return b
	}
	b := &binding.BaseType{Code: code}
	r.add(b)
	r.bases[code] = b
	return b
}

func (r *Registry) Package(qualifiedName string) *binding.Package {
	if p, ok := r.packages[qualifiedName]; ok {
		return p
	}
	p := &binding.Package{QualifiedName: qualifiedName}
	r.add(p)
	r.packages[qualifiedName] = p
	return p
}

// Recovered returns the sentinel for an unresolvable key. The same key yields
// the same sentinel within a session.
func (r *Registry) Recovered(key, reason string) *binding.Recovered {
	if rec, ok := r.recovered[key]; ok {
		return rec
	}
	rec := &binding.Recovered{RequestedKey: key, Reason: reason}
	r.add(rec)
	r.recovered[key] = rec
	observability.RecoveredTotal.WithLabelValues(reason).Inc()
	return rec
}

// Declaration returns the declaration registered under qualifiedName, which
// may still be being populated.
func (r *Registry) Declaration(qualifiedName string) (*binding.TypeDeclaration, bool) {
	d, ok := r.decls[qualifiedName]
	return d, ok
}

// Declare returns the declaration for qualifiedName, creating an empty shell
// the first time. created reports whether the caller must populate it. The
// shell is registered before population so that references back to it, as in
// recursive bounds, find it instead of recursing.
func (r *Registry) Declare(qualifiedName string, kind binding.DeclKind) (d *binding.TypeDeclaration, created bool) {
	if d, ok := r.decls[qualifiedName]; ok {
		return d, false
	}
	d = &binding.TypeDeclaration{QualifiedName: qualifiedName, DeclKind: kind}
	r.add(d)
	r.decls[qualifiedName] = d
	return d, true
}

// Object returns java.lang.Object, declaring an empty shell when the session
// has not loaded it.
func (r *Registry) Object() *binding.TypeDeclaration {
	d, _ := r.Declare(binding.ObjectName, binding.DeclClass)
	return d
}

// Parameterized interns generic applied to args. Enclosing is the instantiated
// or raw outer type of a member type, or nil. The argument count must match the
// declaration's parameter count.
func (r *Registry) Parameterized(generic *binding.TypeDeclaration, enclosing binding.Binding, args []binding.Binding) *binding.Parameterized {
	if len(args) != len(generic.TypeParameters) {
		panic(fmt.Sprintf("registry: %s takes %d type arguments, got %d", generic.QualifiedName, len(generic.TypeParameters), len(args)))
	}
	if len(args) == 0 && enclosing == nil {
		panic(fmt.Sprintf("registry: %s is not generic", generic.QualifiedName))
	}
	key := "P" + strconv.FormatUint(uint64(r.slot(generic)), 10) + "/" +
		strconv.FormatUint(uint64(r.slot(enclosing)), 10) + "/" + r.slots(args)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Parameterized)
	}
	p := &binding.Parameterized{Generic: generic, Enclosing: enclosing, Arguments: append([]binding.Binding(nil), args...)}
	r.add(p)
	r.interned[key] = p
	return p
}

func (r *Registry) Raw(generic *binding.TypeDeclaration, enclosing binding.Binding) *binding.Raw {
	if !generic.IsGeneric() && enclosing == nil {
		panic(fmt.Sprintf("registry: raw reference to non-generic %s", generic.QualifiedName))
	}
	key := "R" + strconv.FormatUint(uint64(r.slot(generic)), 10) + "/" +
		strconv.FormatUint(uint64(r.slot(enclosing)), 10)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Raw)
	}
	raw := &binding.Raw{Generic: generic, Enclosing: enclosing}
	r.add(raw)
	r.interned[key] = raw
	return raw
}

// Array interns an array type. Array elements are flattened so the result's
// element is never itself an array.
func (r *Registry) Array(elem binding.Binding, dims int) *binding.Array {
	if dims < 1 {
		panic("registry: array needs at least one dimension")
	}
	if inner, ok := elem.(*binding.Array); ok {
		elem = inner.Element
		dims += inner.Dimensions
	}
	key := "A" + strconv.FormatUint(uint64(r.slot(elem)), 10) + "/" + strconv.Itoa(dims)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Array)
	}
	a := &binding.Array{Element: elem, Dimensions: dims}
	r.add(a)
	r.interned[key] = a
	return a
}

// TypeVariable interns the type variable name of owner, a type declaration or a
// method. Bounds are filled in by the caller after creation.
func (r *Registry) TypeVariable(owner binding.Binding, name string, rank int) *binding.TypeVariable {
	key := "V" + strconv.FormatUint(uint64(r.slot(owner)), 10) + "/" + name
	if b, ok := r.interned[key]; ok {
		return b.(*binding.TypeVariable)
	}
	tv := &binding.TypeVariable{Name: name, Rank: rank}
	switch o := owner.(type) {
	case *binding.TypeDeclaration:
		tv.DeclaringType = o
	case *binding.Method:
		tv.DeclaringMethod = o
	default:
		panic(fmt.Sprintf("registry: %s cannot declare type variables", owner.Kind()))
	}
	r.add(tv)
	r.interned[key] = tv
	return tv
}

func (r *Registry) Wildcard(generic *binding.TypeDeclaration, rank int, kind binding.BoundKind, bound binding.Binding) *binding.Wildcard {
	if (kind == binding.Unbounded) != (bound == nil) {
		panic("registry: wildcard bound does not match its kind")
	}
	var genericSlot binding.ID
	if generic != nil {
		genericSlot = r.slot(generic)
	}
	key := "W" + strconv.FormatUint(uint64(genericSlot), 10) + "/" + strconv.Itoa(rank) + "/" +
		strconv.Itoa(int(kind)) + "/" + strconv.FormatUint(uint64(r.slot(bound)), 10)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Wildcard)
	}
	w := &binding.Wildcard{BoundKind: kind, Bound: bound, Generic: generic, Rank: rank}
	r.add(w)
	r.interned[key] = w
	return w
}

// Capture creates a fresh capture of w at a new site. Captures are never
// shared between sites.
func (r *Registry) Capture(w *binding.Wildcard) *binding.Capture {
	return r.newCapture(w, lastSite.Add(1))
}

// CaptureAt returns the capture of w for a site named by a key, creating it
// when the session has not seen that pair yet. A site captured for another
// wildcard is not reused.
func (r *Registry) CaptureAt(w *binding.Wildcard, site uint64) *binding.Capture {
	if c, ok := r.captures[captureSite{site: site, wildcard: w}]; ok {
		return c
	}
	for {
		last := lastSite.Load()
		if site <= last || lastSite.CompareAndSwap(last, site) {
			break
		}
	}
	return r.newCapture(w, site)
}

func (r *Registry) newCapture(w *binding.Wildcard, site uint64) *binding.Capture {
	c := &binding.Capture{Wildcard: w, Site: site}
	switch w.BoundKind {
	case binding.Extends:
		c.UpperBounds = []binding.Binding{w.Bound}
	case binding.Super:
		c.LowerBound = w.Bound
	}
	r.add(c)
	r.captures[captureSite{site: site, wildcard: w}] = c
	return c
}

// NewMethod registers a method declared by owner. The caller populates it.
func (r *Registry) NewMethod(owner binding.Binding, name string) *binding.Method {
	m := &binding.Method{DeclaringType: owner, Name: name}
	r.add(m)
	return m
}

// NewField registers a field declared by owner. The caller populates it.
func (r *Registry) NewField(owner binding.Binding, name string) *binding.Variable {
	v := &binding.Variable{DeclaringType: owner, Name: name}
	r.add(v)
	return v
}

func (r *Registry) NewAnnotation(typ *binding.TypeDeclaration, annotated binding.Binding, pairs []binding.MemberValuePair) *binding.Annotation {
	a := &binding.Annotation{Type: typ, Annotated: annotated, Declared: pairs}
	r.add(a)
	return a
}

// Parameter interns the index-th parameter of m.
func (r *Registry) Parameter(m *binding.Method, index int) *binding.Variable {
	key := "X" + strconv.FormatUint(uint64(r.slot(m)), 10) + "/" + strconv.Itoa(index)
	if b, ok := r.interned[key]; ok {
		return b.(*binding.Variable)
	}
	v := &binding.Variable{
		DeclaringMethod: m,
		DeclaringType:   m.DeclaringType,
		Parameter:       true,
		Index:           index,
		Type:            m.ParameterTypes[index],
	}
	if index < len(m.ParameterNames) {
		v.Name = m.ParameterNames[index]
	}
	if m.Original != nil {
		v.Original = r.Parameter(m.Original, index)
	}
	r.add(v)
	r.interned[key] = v
	return v
}
