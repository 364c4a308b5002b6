package keys

import (
	"strconv"
	"strings"
)

// Parse parses a complete key. Grammar violations, truncation included, are
// reported as *DecodeError. Parse panics on an empty key.
func Parse(key string) (Node, error) {
	if key == "" {
		panic("keys: empty key")
	}
	p := &parser{lx: newLexer(key)}
	var (
		n   Node
		err error
	)
	if looksLikePackage(key) {
		n, err = p.parsePackage()
	} else {
		n, err = p.parseTerm(scope{})
	}
	if err != nil {
		return nil, err
	}
	if p.lx.take('@') {
		start := p.lx.offset()
		t, err := p.parseTerm(scope{})
		if err != nil {
			return nil, err
		}
		if !isOwnerNode(t) {
			return nil, &DecodeError{Key: key, Offset: start, Reason: "annotation type must be a class key"}
		}
		n = &AnnotationNode{Element: n, Type: t}
	}
	if !p.lx.atEnd() {
		return nil, p.lx.errorf("unexpected trailing input")
	}
	return n, nil
}

// ParseSignature parses a type signature, the form used by the project index.
// Short type variable references are expected, so the full type variable form
// is not recognized.
func ParseSignature(sig string) (Node, error) {
	if sig == "" {
		return nil, &DecodeError{Key: sig, Reason: "empty signature"}
	}
	p := &parser{lx: newLexer(sig)}
	n, err := p.parseType(scope{signature: true})
	if err != nil {
		return nil, err
	}
	if !p.lx.atEnd() {
		return nil, p.lx.errorf("unexpected trailing input")
	}
	return n, nil
}

// scope is the syntactic context. Inside a method signature the owner-qualified
// type variable suffix is disabled so that a return type cannot swallow the
// method's own type variable suffix or a following bound.
type scope struct {
	signature bool
}

type parser struct {
	lx *lexer
}

func looksLikePackage(key string) bool {
	switch key[0] {
	case 'L', 'T', '[', '+', '-', '*', '!':
		return false
	}
	if IsBaseCode(key[0]) && (len(key) == 1 || !isIdentByte(key[1]) && key[1] != '/') {
		return false
	}
	for i := 0; i < len(key); i++ {
		if c := key[i]; !isIdentByte(c) && c != '/' && c != '.' {
			return c == '@' && i > 0
		}
	}
	return true
}

func (p *parser) parsePackage() (Node, error) {
	var b strings.Builder
	for {
		name, err := p.lx.expect(identifierMatcher)
		if err != nil {
			return nil, err
		}
		b.WriteString(name)
		if !p.lx.take('/') && !p.lx.take('.') {
			break
		}
		b.WriteByte('.')
	}
	return &PackageNode{Name: b.String()}, nil
}

func (p *parser) parseType(s scope) (Node, error) {
	start := p.lx.offset()
	n, err := p.parseTerm(s)
	if err != nil {
		return nil, err
	}
	if !IsTypeNode(n) {
		return nil, &DecodeError{Key: p.lx.key, Offset: start, Reason: "expected a type key"}
	}
	return n, nil
}

func (p *parser) parseTerm(s scope) (Node, error) {
	c := p.lx.peek()
	switch {
	case p.lx.atEnd():
		return nil, p.lx.errorf("expected a key")
	case IsBaseCode(c):
		p.lx.advance()
		return &BaseNode{Code: c}, nil
	case c == '[':
		dims := 0
		for p.lx.take('[') {
			dims++
		}
		start := p.lx.offset()
		elem, err := p.parseType(s)
		if err != nil {
			return nil, err
		}
		if _, ok := elem.(*WildcardNode); ok {
			return nil, &DecodeError{Key: p.lx.key, Offset: start, Reason: "array of wildcard"}
		}
		return &ArrayNode{Dimensions: dims, Element: elem}, nil
	case c == 'L':
		cls, err := p.parseClass(s)
		if err != nil {
			return nil, err
		}
		return p.parseSuffixes(cls, s)
	case c == 'T':
		p.lx.advance()
		name, err := p.lx.expect(identifierMatcher)
		if err != nil {
			return nil, err
		}
		if _, err := p.lx.expect(semicolonMatcher); err != nil {
			return nil, err
		}
		return &TypeVariableRefNode{Name: name}, nil
	case c == '+' || c == '-' || c == '*':
		return p.parseWildcard(nil, 0, s)
	case c == '!':
		return p.parseCapture(s)
	}
	return nil, p.lx.errorf("unexpected character")
}

func (p *parser) parseClass(s scope) (*ClassNode, error) {
	p.lx.advance() // 'L'
	name, err := p.parseBinaryName()
	if err != nil {
		return nil, err
	}
	cls := &ClassNode{}
	seg := Segment{Name: name}
	for {
		if err := p.parseSegmentSuffix(&seg, s); err != nil {
			return nil, err
		}
		cls.Segments = append(cls.Segments, seg)
		if !p.lx.take('.') {
			break
		}
		member, err := p.lx.expect(identifierMatcher)
		if err != nil {
			return nil, err
		}
		seg = Segment{Name: member}
	}
	if _, err := p.lx.expect(semicolonMatcher); err != nil {
		return nil, err
	}
	return cls, nil
}

// parseBinaryName reads name (('/' | '.' | '$') name)*, normalizing package
// separators to '.'.
func (p *parser) parseBinaryName() (string, error) {
	var b strings.Builder
	for {
		part, err := p.lx.expect(identifierMatcher)
		if err != nil {
			return "", err
		}
		b.WriteString(part)
		switch c := p.lx.peek(); c {
		case '/', '.':
			p.lx.advance()
			b.WriteByte('.')
		case '$':
			p.lx.advance()
			b.WriteByte('$')
		default:
			return b.String(), nil
		}
	}
}

func (p *parser) parseSegmentSuffix(seg *Segment, s scope) error {
	if !p.lx.take('<') {
		return nil
	}
	if p.lx.take('>') {
		seg.Form = FormRaw
		return nil
	}
	seg.Form = FormArguments
	for !p.lx.take('>') {
		arg, err := p.parseType(s)
		if err != nil {
			return err
		}
		seg.Args = append(seg.Args, arg)
	}
	return nil
}

func (p *parser) parseSuffixes(n Node, s scope) (Node, error) {
	for {
		switch p.lx.peek() {
		case '.':
			if !isOwnerNode(n) {
				return n, nil
			}
			p.lx.advance()
			member, err := p.parseMember(n)
			if err != nil {
				return nil, err
			}
			if _, ok := member.(*FieldNode); ok {
				return member, nil
			}
			n = member
		case ':':
			if s.signature {
				return n, nil
			}
			switch n.(type) {
			case *ClassNode, *LocalTypeNode, *MethodNode:
			default:
				return n, nil
			}
			p.lx.advance()
			name, err := p.lx.expect(identifierMatcher)
			if err != nil {
				return nil, err
			}
			if _, err := p.lx.expect(semicolonMatcher); err != nil {
				return nil, err
			}
			return &TypeVariableNode{Owner: n, Name: name}, nil
		case '{':
			if !isOwnerNode(n) {
				return n, nil
			}
			p.lx.advance()
			rank, err := p.number(31)
			if err != nil {
				return nil, err
			}
			if _, err := p.lx.expect(closeBraceMatcher); err != nil {
				return nil, err
			}
			return p.parseWildcard(n, int(rank), s)
		case '$':
			m, ok := n.(*MethodNode)
			if !ok {
				return n, nil
			}
			p.lx.advance()
			occurrence, err := p.number(31)
			if err != nil {
				return nil, err
			}
			name, _ := p.lx.match(identifierMatcher)
			if _, err := p.lx.expect(semicolonMatcher); err != nil {
				return nil, err
			}
			n = &LocalTypeNode{Method: m, Occurrence: int(occurrence), Name: name}
		case '#':
			m, ok := n.(*MethodNode)
			if !ok {
				return n, nil
			}
			p.lx.advance()
			name, err := p.lx.expect(identifierMatcher)
			if err != nil {
				return nil, err
			}
			if _, err := p.lx.expect(semicolonMatcher); err != nil {
				return nil, err
			}
			return &ParameterNode{Method: m, Name: name}, nil
		case '%':
			m, ok := n.(*MethodNode)
			if !ok || m.Instance {
				return n, nil
			}
			p.lx.advance()
			if _, err := p.lx.expect(lessMatcher); err != nil {
				return nil, err
			}
			m.Instance = true
			for !p.lx.take('>') {
				arg, err := p.parseType(s)
				if err != nil {
					return nil, err
				}
				m.TypeArgs = append(m.TypeArgs, arg)
			}
		default:
			return n, nil
		}
	}
}

func (p *parser) parseMember(owner Node) (Node, error) {
	name, ok := p.lx.match(specialNameMatcher)
	if !ok {
		var err error
		if name, err = p.lx.expect(identifierMatcher); err != nil {
			return nil, err
		}
	}
	sig := scope{signature: true}
	if p.lx.take(')') {
		t, err := p.parseType(sig)
		if err != nil {
			return nil, err
		}
		return &FieldNode{Owner: owner, Name: name, Type: t}, nil
	}
	m := &MethodNode{Owner: owner, Name: name}
	if p.lx.take('<') {
		for !p.lx.take('>') {
			param, err := p.parseTypeParam(sig)
			if err != nil {
				return nil, err
			}
			m.TypeParams = append(m.TypeParams, param)
		}
		if len(m.TypeParams) == 0 {
			return nil, p.lx.errorf("expected type parameters")
		}
	}
	if _, err := p.lx.expect(openParenMatcher); err != nil {
		return nil, err
	}
	for !p.lx.take(')') {
		param, err := p.parseType(sig)
		if err != nil {
			return nil, err
		}
		m.Params = append(m.Params, param)
	}
	ret, err := p.parseType(sig)
	if err != nil {
		return nil, err
	}
	m.Return = ret
	return m, nil
}

func (p *parser) parseTypeParam(s scope) (TypeParamNode, error) {
	name, err := p.lx.expect(identifierMatcher)
	if err != nil {
		return TypeParamNode{}, err
	}
	param := TypeParamNode{Name: name}
	if !p.lx.take(':') {
		return param, nil
	}
	for {
		bound, err := p.parseType(s)
		if err != nil {
			return TypeParamNode{}, err
		}
		param.Bounds = append(param.Bounds, bound)
		if !p.lx.take('&') {
			return param, nil
		}
	}
}

func (p *parser) parseWildcard(generic Node, rank int, s scope) (Node, error) {
	w := &WildcardNode{Generic: generic, Rank: rank}
	switch {
	case p.lx.take('*'):
		return w, nil
	case p.lx.take('+'):
		w.Bound = BoundExtends
	case p.lx.take('-'):
		w.Bound = BoundSuper
	default:
		return nil, p.lx.errorf("expected wildcard bound")
	}
	start := p.lx.offset()
	bound, err := p.parseType(s)
	if err != nil {
		return nil, err
	}
	if _, ok := bound.(*WildcardNode); ok {
		return nil, &DecodeError{Key: p.lx.key, Offset: start, Reason: "wildcard bound is a wildcard"}
	}
	w.Type = bound
	return w, nil
}

func (p *parser) parseCapture(s scope) (Node, error) {
	p.lx.advance() // '!'
	start := p.lx.offset()
	n, err := p.parseTerm(s)
	if err != nil {
		return nil, err
	}
	w, ok := n.(*WildcardNode)
	if !ok {
		return nil, &DecodeError{Key: p.lx.key, Offset: start, Reason: "capture must wrap a wildcard"}
	}
	site, err := p.number(64)
	if err != nil {
		return nil, err
	}
	if _, err := p.lx.expect(semicolonMatcher); err != nil {
		return nil, err
	}
	return &CaptureNode{Wildcard: w, Site: site}, nil
}

// number reads a decimal that fits in bits unsigned bits.
func (p *parser) number(bits int) (uint64, error) {
	start := p.lx.offset()
	text, err := p.lx.expect(digitsMatcher)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(text, 10, bits)
	if err != nil {
		return 0, &DecodeError{Key: p.lx.key, Offset: start, Reason: "number out of range"}
	}
	return v, nil
}
