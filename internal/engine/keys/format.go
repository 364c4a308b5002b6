package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// Format prints n in canonical key form.
func Format(n Node) string {
	var pr printer
	pr.node(n)
	return pr.String()
}

// FormatSignature prints the signature of a type, method or field node.
func FormatSignature(n Node) (string, error) {
	pr := printer{signature: true}
	switch t := n.(type) {
	case *MethodNode:
		pr.methodSignature(t)
	case *FieldNode:
		pr.node(t.Type)
	case *AnnotationNode:
		pr.node(t.Type)
	case *PackageNode:
		pr.WriteString(t.Name)
	case *ParameterNode:
		return "", fmt.Errorf("parameter key %q has no signature", Format(n))
	default:
		pr.node(n)
	}
	return pr.String(), nil
}

// Signature converts a key into its signature: '.' package separators, no
// wildcard declaration prefixes, no raw markers, type variables as TName;.
func Signature(key string) (string, error) {
	n, err := Parse(key)
	if err != nil {
		return "", err
	}
	return FormatSignature(n)
}

type printer struct {
	strings.Builder
	signature bool
}

func (pr *printer) qualified(name string) {
	if pr.signature {
		pr.WriteString(name)
		return
	}
	pr.WriteString(strings.ReplaceAll(name, ".", "/"))
}

func (pr *printer) node(n Node) {
	switch t := n.(type) {
	case *BaseNode:
		pr.WriteByte(t.Code)
	case *ClassNode:
		pr.class(t)
	case *LocalTypeNode:
		pr.local(t)
	case *ArrayNode:
		pr.WriteString(strings.Repeat("[", t.Dimensions))
		pr.node(t.Element)
	case *WildcardNode:
		pr.wildcard(t)
	case *CaptureNode:
		pr.WriteByte('!')
		pr.wildcard(t.Wildcard)
		if !pr.signature {
			pr.WriteString(strconv.FormatUint(t.Site, 10))
			pr.WriteByte(';')
		}
	case *TypeVariableNode:
		if pr.signature {
			pr.typeVariableRef(t.Name)
			return
		}
		pr.node(t.Owner)
		pr.WriteByte(':')
		pr.WriteString(t.Name)
		pr.WriteByte(';')
	case *TypeVariableRefNode:
		pr.typeVariableRef(t.Name)
	case *MethodNode:
		pr.method(t)
	case *FieldNode:
		pr.node(t.Owner)
		pr.WriteByte('.')
		pr.WriteString(t.Name)
		pr.WriteByte(')')
		pr.node(t.Type)
	case *ParameterNode:
		pr.method(t.Method)
		pr.WriteByte('#')
		pr.WriteString(t.Name)
		pr.WriteByte(';')
	case *AnnotationNode:
		pr.node(t.Element)
		pr.WriteByte('@')
		pr.node(t.Type)
	case *PackageNode:
		pr.qualified(t.Name)
	}
}

func (pr *printer) typeVariableRef(name string) {
	pr.WriteByte('T')
	pr.WriteString(name)
	pr.WriteByte(';')
}

func (pr *printer) class(c *ClassNode) {
	pr.WriteByte('L')
	for i, seg := range c.Segments {
		if i == 0 {
			pr.qualified(seg.Name)
		} else {
			pr.WriteByte('.')
			pr.WriteString(seg.Name)
		}
		switch seg.Form {
		case FormRaw:
			if !pr.signature {
				pr.WriteString("<>")
			}
		case FormArguments:
			pr.WriteByte('<')
			for _, a := range seg.Args {
				pr.node(a)
			}
			pr.WriteByte('>')
		}
	}
	pr.WriteByte(';')
}

func (pr *printer) local(l *LocalTypeNode) {
	if pr.signature {
		pr.WriteByte('L')
		pr.qualified(l.QualifiedName())
		pr.WriteByte(';')
		return
	}
	pr.method(l.Method)
	pr.WriteByte('$')
	pr.WriteString(strconv.Itoa(l.Occurrence))
	pr.WriteString(l.Name)
	pr.WriteByte(';')
}

func (pr *printer) wildcard(w *WildcardNode) {
	if w.Generic != nil && !pr.signature {
		pr.node(w.Generic)
		pr.WriteByte('{')
		pr.WriteString(strconv.Itoa(w.Rank))
		pr.WriteByte('}')
	}
	switch w.Bound {
	case BoundExtends:
		pr.WriteByte('+')
		pr.node(w.Type)
	case BoundSuper:
		pr.WriteByte('-')
		pr.node(w.Type)
	default:
		pr.WriteByte('*')
	}
}

func (pr *printer) method(m *MethodNode) {
	pr.node(m.Owner)
	pr.WriteByte('.')
	pr.WriteString(m.Name)
	pr.methodSignature(m)
	if m.Instance {
		pr.WriteString("%<")
		for _, a := range m.TypeArgs {
			pr.node(a)
		}
		pr.WriteByte('>')
	}
}

func (pr *printer) methodSignature(m *MethodNode) {
	if len(m.TypeParams) > 0 {
		pr.WriteByte('<')
		for _, tp := range m.TypeParams {
			pr.WriteString(tp.Name)
			for i, b := range tp.Bounds {
				if i == 0 || pr.signature {
					pr.WriteByte(':')
				} else {
					pr.WriteByte('&')
				}
				pr.node(b)
			}
		}
		pr.WriteByte('>')
	}
	pr.WriteByte('(')
	for _, p := range m.Params {
		pr.node(p)
	}
	pr.WriteByte(')')
	pr.node(m.Return)
}
