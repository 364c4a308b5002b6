package keys

import "strconv"

// Node is a parsed key. The tree is purely syntactic; resolving names against
// declarations happens in the codec.
type Node interface {
	node()
}

type BaseNode struct {
	Code byte
}

type SegmentForm uint8

const (
	FormPlain SegmentForm = iota
	FormRaw
	FormArguments
)

// Segment is one level of a class path. The first segment carries the binary
// name with '.' package separators; later segments are member type names.
type Segment struct {
	Name string
	Form SegmentForm
	Args []Node
}

// DeclarationParams returns the parameter names when every argument is a short
// type variable reference, which is how a generic declaration lists its own
// parameters.
func (s Segment) DeclarationParams() ([]string, bool) {
	if s.Form != FormArguments {
		return nil, false
	}
	names := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		ref, ok := a.(*TypeVariableRefNode)
		if !ok {
			return nil, false
		}
		names = append(names, ref.Name)
	}
	return names, true
}

type ClassNode struct {
	Segments []Segment
}

// QualifiedName joins the segment names into a binary name.
func (c *ClassNode) QualifiedName() string {
	name := c.Segments[0].Name
	for _, s := range c.Segments[1:] {
		name += "$" + s.Name
	}
	return name
}

// LocalTypeNode is a local or anonymous type inside Method.
type LocalTypeNode struct {
	Method     *MethodNode
	Occurrence int
	Name       string
}

// QualifiedName is the binary name of the local type: its enclosing type's
// name, '$', the occurrence and the simple name.
func (l *LocalTypeNode) QualifiedName() string {
	var owner string
	switch o := l.Method.Owner.(type) {
	case *ClassNode:
		owner = o.QualifiedName()
	case *LocalTypeNode:
		owner = o.QualifiedName()
	}
	return owner + "$" + strconv.Itoa(l.Occurrence) + l.Name
}

type ArrayNode struct {
	Dimensions int
	Element    Node
}

type WildcardBound uint8

const (
	BoundNone WildcardBound = iota
	BoundExtends
	BoundSuper
)

// WildcardNode optionally names the generic type (Generic, a class or local
// type node) and parameter rank it is an argument for.
type WildcardNode struct {
	Generic Node
	Rank    int
	Bound   WildcardBound
	Type    Node
}

type CaptureNode struct {
	Wildcard *WildcardNode
	Site     uint64
}

// TypeVariableNode is the full form: owner key, ':', name.
type TypeVariableNode struct {
	Owner Node
	Name  string
}

// TypeVariableRefNode is the short form used inside signatures.
type TypeVariableRefNode struct {
	Name string
}

type TypeParamNode struct {
	Name   string
	Bounds []Node
}

type MethodNode struct {
	Owner      Node
	Name       string
	TypeParams []TypeParamNode
	Params     []Node
	Return     Node
	Instance   bool
	TypeArgs   []Node
}

// Declaration returns the method key without its instantiation suffix.
func (m *MethodNode) Declaration() *MethodNode {
	if !m.Instance {
		return m
	}
	d := *m
	d.Instance = false
	d.TypeArgs = nil
	return &d
}

type FieldNode struct {
	Owner Node
	Name  string
	Type  Node
}

type ParameterNode struct {
	Method *MethodNode
	Name   string
}

type AnnotationNode struct {
	Element Node
	Type    Node
}

type PackageNode struct {
	Name string
}

func (*BaseNode) node()            {}
func (*ClassNode) node()           {}
func (*LocalTypeNode) node()       {}
func (*ArrayNode) node()           {}
func (*WildcardNode) node()        {}
func (*CaptureNode) node()         {}
func (*TypeVariableNode) node()    {}
func (*TypeVariableRefNode) node() {}
func (*MethodNode) node()          {}
func (*FieldNode) node()           {}
func (*ParameterNode) node()       {}
func (*AnnotationNode) node()      {}
func (*PackageNode) node()         {}

// IsTypeNode reports whether n denotes a type.
func IsTypeNode(n Node) bool {
	switch n.(type) {
	case *BaseNode, *ClassNode, *LocalTypeNode, *ArrayNode, *WildcardNode,
		*CaptureNode, *TypeVariableNode, *TypeVariableRefNode:
		return true
	}
	return false
}

func isOwnerNode(n Node) bool {
	switch n.(type) {
	case *ClassNode, *LocalTypeNode:
		return true
	}
	return false
}
