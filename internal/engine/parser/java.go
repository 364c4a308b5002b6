package parser

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"bindkey/internal/engine/symbols"
)

const objectSig = "Ljava.lang.Object;"

var typeDeclarationKinds = map[string]string{
	"class_declaration":           "class",
	"interface_declaration":       "interface",
	"enum_declaration":            "enum",
	"annotation_type_declaration": "annotation",
	"record_declaration":          "record",
}

// javaLang lists java.lang types that resolve without an import when Known
// cannot confirm them.
var javaLang = map[string]bool{
	"Object": true, "String": true, "Class": true, "Enum": true, "Record": true,
	"Integer": true, "Long": true, "Short": true, "Byte": true, "Character": true,
	"Boolean": true, "Double": true, "Float": true, "Number": true, "Void": true,
	"Iterable": true, "Comparable": true, "CharSequence": true, "Runnable": true,
	"Thread": true, "Throwable": true, "Exception": true, "RuntimeException": true,
	"Error": true, "Deprecated": true, "Override": true, "SuppressWarnings": true,
	"FunctionalInterface": true, "SafeVarargs": true, "StringBuilder": true,
	"Math": true, "System": true, "AutoCloseable": true, "Cloneable": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
}

// jdkTypes are platform types outside java.lang that on-demand imports and
// dotted names resolve to without a project declaration.
var jdkTypes = map[string]bool{
	"java.util.List": true, "java.util.ArrayList": true, "java.util.LinkedList": true,
	"java.util.Map": true, "java.util.HashMap": true, "java.util.TreeMap": true,
	"java.util.LinkedHashMap": true, "java.util.Set": true, "java.util.HashSet": true,
	"java.util.TreeSet": true, "java.util.Collection": true, "java.util.Iterator": true,
	"java.util.Optional": true, "java.util.Comparator": true, "java.util.Deque": true,
	"java.util.Queue": true, "java.util.Objects": true, "java.util.Arrays": true,
	"java.util.Collections": true, "java.util.Map$Entry": true,
	"java.util.function.Function": true, "java.util.function.Supplier": true,
	"java.util.function.Consumer": true, "java.util.function.Predicate": true,
	"java.util.function.BiFunction": true, "java.util.stream.Stream": true,
	"java.io.Serializable": true, "java.io.IOException": true, "java.io.File": true,
	"java.io.InputStream": true, "java.io.OutputStream": true,
	"java.lang.annotation.Annotation": true, "java.lang.annotation.Retention": true,
	"java.lang.annotation.Target": true, "java.lang.annotation.RetentionPolicy": true,
	"java.lang.annotation.ElementType": true,
}

// env is a lexical scope for type names. Type variables stop at a static
// boundary; local and member types do not.
type env struct {
	vars     []string
	static   bool
	typeName string
	locals   map[string]string
	parent   *env
}

// owner identifies the method whose body is being walked for local types.
type owner struct {
	typeName    string
	method      string
	methodIndex int
	env         *env
}

type javaExtractor struct {
	ctx      *ExtractionContext
	known    Known
	pkg      string
	imports  map[string]string
	onDemand []string
	topLevel map[string]string
	members  map[string]map[string]string
	counters map[string]int
	types    []*symbols.TypeDecl
}

func extractJava(root *sitter.Node, source []byte, path string, known Known) *symbols.File {
	x := &javaExtractor{
		ctx:      &ExtractionContext{Source: source, File: &symbols.File{Path: path}},
		known:    known,
		imports:  make(map[string]string),
		topLevel: make(map[string]string),
		members:  make(map[string]map[string]string),
		counters: make(map[string]int),
	}

	var decls []*sitter.Node
	collect := func(_ *ExtractionContext, node *sitter.Node) bool {
		decls = append(decls, node)
		return true
	}
	handlers := map[string]NodeHandler{
		"package_declaration": x.packageDeclaration,
		"import_declaration":  x.importDeclaration,
	}
	for kind := range typeDeclarationKinds {
		handlers[kind] = collect
	}
	NewExtractorEngine(handlers).Walk(x.ctx, root)

	for _, node := range decls {
		name := x.ctx.Text(node.ChildByFieldName("name"))
		x.topLevel[name] = x.qualify(name)
	}
	for _, node := range decls {
		name := x.ctx.Text(node.ChildByFieldName("name"))
		x.typeDeclaration(node, x.topLevel[name], "", nil, false, nil)
	}

	f := x.ctx.File
	f.Package = x.pkg
	f.Types = make([]symbols.TypeDecl, 0, len(x.types))
	for _, t := range x.types {
		f.Types = append(f.Types, *t)
	}
	return f
}

func (x *javaExtractor) packageDeclaration(ctx *ExtractionContext, node *sitter.Node) bool {
	if name := childOfKind(node, "scoped_identifier", "identifier"); name != nil {
		x.pkg = ctx.Text(name)
	}
	return true
}

func (x *javaExtractor) importDeclaration(ctx *ExtractionContext, node *sitter.Node) bool {
	if childOfKind(node, "static") != nil {
		return true
	}
	nameNode := childOfKind(node, "scoped_identifier", "identifier")
	if nameNode == nil {
		return true
	}
	names := strings.Split(ctx.Text(nameNode), ".")
	if childOfKind(node, "asterisk") != nil {
		if i := x.splitPackage(names, true); i < len(names) {
			x.onDemand = append(x.onDemand, binaryName(names, i)+"$")
		} else {
			x.onDemand = append(x.onDemand, strings.Join(names, ".")+".")
		}
		return true
	}
	x.imports[names[len(names)-1]] = binaryName(names, x.splitPackage(names, false))
	return true
}

// splitPackage returns the index of the top-level type in a dotted name. With
// packageOnly a name with no type part yields len(names).
func (x *javaExtractor) splitPackage(names []string, packageOnly bool) int {
	for i := 0; i < len(names); i++ {
		if x.isKnown(strings.Join(names[:i+1], ".")) {
			return i
		}
	}
	for i, n := range names {
		if isTypeName(n) {
			return i
		}
	}
	if packageOnly {
		return len(names)
	}
	return len(names) - 1
}

// binaryName joins names, using '$' after the top-level type at index i.
func binaryName(names []string, i int) string {
	qn := strings.Join(names[:i+1], ".")
	for _, n := range names[i+1:] {
		qn += "$" + n
	}
	return qn
}

func isTypeName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func (x *javaExtractor) qualify(name string) string {
	if x.pkg == "" {
		return name
	}
	return x.pkg + "." + name
}

func (x *javaExtractor) isKnown(qn string) bool {
	return jdkTypes[qn] || x.known != nil && x.known(qn)
}

// typeVariable reports whether name is a type variable visible from e.
func (e *env) typeVariable(name string) bool {
	for s := e; s != nil; s = s.parent {
		for _, v := range s.vars {
			if v == name {
				return true
			}
		}
		if s.static {
			return false
		}
	}
	return false
}

// resolveType finds the binary name of a simple type name visible from e.
func (x *javaExtractor) resolveType(name string, e *env) (string, bool) {
	for s := e; s != nil; s = s.parent {
		if qn, ok := s.locals[name]; ok {
			return qn, true
		}
		if s.typeName != "" {
			if qn, ok := x.members[s.typeName][name]; ok {
				return qn, true
			}
		}
	}
	if qn, ok := x.topLevel[name]; ok {
		return qn, true
	}
	if qn, ok := x.imports[name]; ok {
		return qn, true
	}
	if qn := x.qualify(name); x.isKnown(qn) {
		return qn, true
	}
	for _, prefix := range x.onDemand {
		if qn := prefix + name; x.isKnown(qn) {
			return qn, true
		}
	}
	if qn := "java.lang." + name; javaLang[name] || x.isKnown(qn) {
		return qn, true
	}
	return "", false
}

func (x *javaExtractor) typeDeclaration(node *sitter.Node, qn, enclosing string, local *symbols.LocalDecl, static bool, outer *env) *symbols.TypeDecl {
	kind := typeDeclarationKinds[node.Kind()]
	modifiers := childOfKind(node, "modifiers")
	decl := &symbols.TypeDecl{
		QualifiedName: qn,
		Kind:          kind,
		Static:        static,
		Enclosing:     enclosing,
		Local:         local,
		File:          x.ctx.File.Path,
	}
	x.types = append(x.types, decl)
	x.ctx.File.Elements = append(x.ctx.File.Elements, x.ctx.Element(node, qn, symbols.MemberType, 0))

	body := node.ChildByFieldName("body")
	x.registerMembers(qn, body)

	tpNode := node.ChildByFieldName("type_parameters")
	te := &env{vars: typeParamNames(x.ctx, tpNode), static: static, typeName: qn, parent: outer}
	decl.TypeParams = x.typeParams(tpNode, te)

	switch kind {
	case "interface", "annotation":
		if ext := childOfKind(node, "extends_interfaces"); ext != nil {
			decl.Interfaces = x.typeList(ext, te)
		}
		if kind == "annotation" {
			decl.Interfaces = []string{"Ljava.lang.annotation.Annotation;"}
		}
	default:
		if sc := node.ChildByFieldName("superclass"); sc != nil {
			if t := firstType(sc); t != nil {
				decl.Superclass = x.typeSig(t, te)
			}
		}
		if decl.Superclass == "" {
			decl.Superclass = defaultSuperclass(kind, qn)
		}
		if ifs := node.ChildByFieldName("interfaces"); ifs != nil {
			decl.Interfaces = x.typeList(ifs, te)
		}
	}
	decl.Annotations = x.annotations(modifiers, te)

	if kind == "record" {
		x.recordComponents(decl, node.ChildByFieldName("parameters"), te)
	}
	x.classBody(decl, body, te)
	return decl
}

func defaultSuperclass(kind, qn string) string {
	switch kind {
	case "enum":
		return "Ljava.lang.Enum<L" + qn + ";>;"
	case "record":
		return "Ljava.lang.Record;"
	}
	if qn == "java.lang.Object" {
		return ""
	}
	return objectSig
}

// registerMembers makes the member types of a body visible by simple name
// before any member is extracted.
func (x *javaExtractor) registerMembers(qn string, body *sitter.Node) {
	for _, child := range bodyDeclarations(body) {
		if _, ok := typeDeclarationKinds[child.Kind()]; !ok {
			continue
		}
		if x.members[qn] == nil {
			x.members[qn] = make(map[string]string)
		}
		name := x.ctx.Text(child.ChildByFieldName("name"))
		x.members[qn][name] = qn + "$" + name
	}
}

// bodyDeclarations flattens a class, interface, enum or annotation body.
func bodyDeclarations(body *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, child := range namedChildren(body) {
		if child.Kind() == "enum_body_declarations" {
			out = append(out, namedChildren(child)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

// methodBody is a method body walked for local types once every member of the
// declaring type exists. index is the method's slot in decl.Methods.
type methodBody struct {
	node  *sitter.Node
	index int
	env   *env
}

func (x *javaExtractor) classBody(decl *symbols.TypeDecl, body *sitter.Node, te *env) {
	inInterface := decl.Kind == "interface" || decl.Kind == "annotation"
	var staticInit, instanceInit []*sitter.Node
	var nested []*sitter.Node
	var bodies []methodBody
	hasConstructor := false
	addMethod := func(m symbols.MethodDecl, node *sitter.Node, me *env) int {
		idx := len(decl.Methods)
		for i, existing := range decl.Methods {
			// explicit record accessor
			if existing.Name == m.Name && existing.Signature() == m.Signature() {
				idx = i
			}
		}
		if idx == len(decl.Methods) {
			decl.Methods = append(decl.Methods, m)
		} else {
			decl.Methods[idx] = m
		}
		x.ctx.File.Elements = append(x.ctx.File.Elements, x.ctx.Element(node, decl.QualifiedName, symbols.MemberMethod, idx))
		if b := node.ChildByFieldName("body"); b != nil {
			bodies = append(bodies, methodBody{node: b, index: idx, env: me})
		}
		return idx
	}

	if decl.Kind == "enum" {
		for _, c := range childrenOfKind(body, "enum_constant") {
			decl.Fields = append(decl.Fields, symbols.FieldDecl{
				Name:         x.ctx.Text(c.ChildByFieldName("name")),
				Type:         "L" + decl.QualifiedName + ";",
				Static:       true,
				EnumConstant: true,
				Annotations:  x.annotations(childOfKind(c, "modifiers"), te),
			})
			x.ctx.File.Elements = append(x.ctx.File.Elements, x.ctx.Element(c, decl.QualifiedName, symbols.MemberField, len(decl.Fields)-1))
		}
	}

	for _, child := range bodyDeclarations(body) {
		switch child.Kind() {
		case "field_declaration", "constant_declaration":
			modifiers := childOfKind(child, "modifiers")
			static := inInterface || hasKeyword(modifiers, "static")
			typ := x.typeSig(child.ChildByFieldName("type"), te)
			annotations := x.annotations(modifiers, te)
			for _, d := range childrenOfKind(child, "variable_declarator") {
				decl.Fields = append(decl.Fields, symbols.FieldDecl{
					Name:        x.ctx.Text(d.ChildByFieldName("name")),
					Type:        dims(x.ctx, d.ChildByFieldName("dimensions")) + typ,
					Static:      static,
					Annotations: annotations,
				})
				x.ctx.File.Elements = append(x.ctx.File.Elements, x.ctx.Element(d, decl.QualifiedName, symbols.MemberField, len(decl.Fields)-1))
				if v := d.ChildByFieldName("value"); v != nil {
					if static {
						staticInit = append(staticInit, v)
					} else {
						instanceInit = append(instanceInit, v)
					}
				}
			}
		case "method_declaration", "annotation_type_element_declaration":
			m, me := x.method(child, te, inInterface)
			addMethod(m, child, me)
		case "constructor_declaration", "compact_constructor_declaration":
			m, me := x.method(child, te, false)
			m.Name, m.Return = "<init>", "V"
			if child.Kind() == "compact_constructor_declaration" {
				m.Params, m.ParamNames = recordParams(decl)
			}
			addMethod(m, child, me)
			hasConstructor = true
		case "static_initializer":
			staticInit = append(staticInit, child)
		case "block":
			instanceInit = append(instanceInit, child)
		default:
			if _, ok := typeDeclarationKinds[child.Kind()]; ok {
				nested = append(nested, child)
			}
		}
	}

	ctorIndex := -1
	switch decl.Kind {
	case "class", "enum", "record":
		if !hasConstructor {
			m := symbols.MethodDecl{Name: "<init>", Return: "V"}
			if decl.Kind == "record" {
				m.Params, m.ParamNames = recordParams(decl)
			}
			decl.Methods = append(decl.Methods, m)
		}
		for i, m := range decl.Methods {
			if m.Name == "<init>" {
				ctorIndex = i
				break
			}
		}
	}
	if decl.Kind == "enum" {
		self := "L" + decl.QualifiedName + ";"
		decl.Methods = append(decl.Methods,
			symbols.MethodDecl{Name: "values", Return: "[" + self, Static: true},
			symbols.MethodDecl{Name: "valueOf", Params: []string{"Ljava.lang.String;"}, ParamNames: []string{"name"}, Return: self, Static: true},
		)
	}

	for _, b := range bodies {
		m := decl.Methods[b.index]
		x.walkBody(b.node, owner{typeName: decl.QualifiedName, method: m.Name + m.Signature(), methodIndex: b.index, env: b.env})
	}
	if len(instanceInit) > 0 && ctorIndex >= 0 {
		m := decl.Methods[ctorIndex]
		me := &env{parent: te, locals: make(map[string]string)}
		for _, n := range instanceInit {
			x.walkBody(n, owner{typeName: decl.QualifiedName, method: m.Name + m.Signature(), methodIndex: ctorIndex, env: me})
		}
	}
	if len(staticInit) > 0 {
		idx := -1
		for i, m := range decl.Methods {
			if m.Name == "<clinit>" {
				idx = i
			}
		}
		if idx < 0 {
			decl.Methods = append(decl.Methods, symbols.MethodDecl{Name: "<clinit>", Return: "V", Static: true})
			idx = len(decl.Methods) - 1
		}
		me := &env{static: true, parent: te, locals: make(map[string]string)}
		for _, n := range staticInit {
			x.walkBody(n, owner{typeName: decl.QualifiedName, method: "<clinit>()V", methodIndex: idx, env: me})
		}
	}

	for _, child := range nested {
		name := x.ctx.Text(child.ChildByFieldName("name"))
		kind := typeDeclarationKinds[child.Kind()]
		static := inInterface || kind != "class" || hasKeyword(childOfKind(child, "modifiers"), "static")
		x.typeDeclaration(child, decl.QualifiedName+"$"+name, decl.QualifiedName, nil, static, te)
	}
}

func recordParams(decl *symbols.TypeDecl) (params, names []string) {
	for _, f := range decl.Fields {
		if !f.Static {
			params = append(params, f.Type)
			names = append(names, f.Name)
		}
	}
	return params, names
}

func (x *javaExtractor) recordComponents(decl *symbols.TypeDecl, params *sitter.Node, te *env) {
	for _, p := range namedChildren(params) {
		if p.Kind() != "formal_parameter" {
			continue
		}
		name := x.ctx.Text(p.ChildByFieldName("name"))
		typ := x.typeSig(p.ChildByFieldName("type"), te)
		annotations := x.annotations(childOfKind(p, "modifiers"), te)
		decl.Fields = append(decl.Fields, symbols.FieldDecl{Name: name, Type: typ, Annotations: annotations})
		x.ctx.File.Elements = append(x.ctx.File.Elements, x.ctx.Element(p, decl.QualifiedName, symbols.MemberField, len(decl.Fields)-1))
		decl.Methods = append(decl.Methods, symbols.MethodDecl{Name: name, Return: typ})
	}
}

// method extracts a method, constructor or annotation member. The returned
// env is the scope of its body.
func (x *javaExtractor) method(node *sitter.Node, te *env, inInterface bool) (symbols.MethodDecl, *env) {
	modifiers := childOfKind(node, "modifiers")
	tpNode := node.ChildByFieldName("type_parameters")
	static := hasKeyword(modifiers, "static")
	me := &env{vars: typeParamNames(x.ctx, tpNode), static: static, parent: te, locals: make(map[string]string)}
	m := symbols.MethodDecl{
		Name:        x.ctx.Text(node.ChildByFieldName("name")),
		TypeParams:  x.typeParams(tpNode, me),
		Static:      static,
		Annotations: x.annotations(modifiers, me),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			switch p.Kind() {
			case "formal_parameter":
				m.Params = append(m.Params, dims(x.ctx, p.ChildByFieldName("dimensions"))+x.typeSig(p.ChildByFieldName("type"), me))
				m.ParamNames = append(m.ParamNames, x.ctx.Text(p.ChildByFieldName("name")))
			case "spread_parameter":
				m.Params = append(m.Params, "["+x.typeSig(firstType(p), me))
				if d := childOfKind(p, "variable_declarator"); d != nil {
					m.ParamNames = append(m.ParamNames, x.ctx.Text(d.ChildByFieldName("name")))
				} else {
					m.ParamNames = append(m.ParamNames, "")
				}
			}
		}
	}
	if t := node.ChildByFieldName("type"); t != nil {
		m.Return = dims(x.ctx, node.ChildByFieldName("dimensions")) + x.typeSig(t, me)
	} else {
		m.Return = "V"
	}
	if v := node.ChildByFieldName("value"); v != nil {
		val := x.value(v, me)
		m.Default = &val
	}
	return m, me
}

// walkBody numbers the local and anonymous types of a code region in source
// order.
func (x *javaExtractor) walkBody(node *sitter.Node, o owner) {
	if node == nil {
		return
	}
	for _, child := range namedChildren(node) {
		if _, ok := typeDeclarationKinds[child.Kind()]; ok {
			x.localType(child, o)
			continue
		}
		if child.Kind() == "object_creation_expression" {
			if body := childOfKind(child, "class_body"); body != nil {
				x.anonymousType(child, body, o)
				for _, arg := range namedChildren(child) {
					if arg != body {
						x.walkBody(arg, o)
					}
				}
				continue
			}
		}
		x.walkBody(child, o)
	}
}

func (x *javaExtractor) nextOccurrence(typeName, name string) int {
	k := typeName + "/" + name
	x.counters[k]++
	return x.counters[k]
}

func (x *javaExtractor) localType(node *sitter.Node, o owner) {
	name := x.ctx.Text(node.ChildByFieldName("name"))
	occ := x.nextOccurrence(o.typeName, name)
	qn := o.typeName + "$" + strconv.Itoa(occ) + name
	e := o.env
	if e == nil {
		e = &env{}
	}
	if e.locals == nil {
		e.locals = make(map[string]string)
	}
	e.locals[name] = qn
	local := &symbols.LocalDecl{Method: o.method, MethodIndex: o.methodIndex, Occurrence: occ, Name: name}
	x.typeDeclaration(node, qn, o.typeName, local, e.inStaticMethod(), e)
}

func (e *env) inStaticMethod() bool {
	for s := e; s != nil; s = s.parent {
		if s.typeName != "" {
			return false
		}
		if s.static {
			return true
		}
	}
	return false
}

func (x *javaExtractor) anonymousType(node, body *sitter.Node, o owner) {
	occ := x.nextOccurrence(o.typeName, "")
	qn := o.typeName + "$" + strconv.Itoa(occ)
	e := o.env
	decl := &symbols.TypeDecl{
		QualifiedName: qn,
		Kind:          "class",
		Static:        e.inStaticMethod(),
		Enclosing:     o.typeName,
		Local:         &symbols.LocalDecl{Method: o.method, MethodIndex: o.methodIndex, Occurrence: occ},
		File:          x.ctx.File.Path,
		Superclass:    objectSig,
	}
	if t := node.ChildByFieldName("type"); t != nil {
		decl.Superclass = x.typeSig(t, e)
	}
	x.types = append(x.types, decl)
	x.ctx.File.Elements = append(x.ctx.File.Elements, x.ctx.Element(body, qn, symbols.MemberType, 0))
	x.registerMembers(qn, body)
	x.classBody(decl, body, &env{typeName: qn, parent: e})
}

func typeParamNames(ctx *ExtractionContext, tpNode *sitter.Node) []string {
	var names []string
	for _, tp := range childrenOfKind(tpNode, "type_parameter") {
		if id := childOfKind(tp, "type_identifier", "identifier"); id != nil {
			names = append(names, ctx.Text(id))
		}
	}
	return names
}

func (x *javaExtractor) typeParams(tpNode *sitter.Node, e *env) []symbols.TypeParam {
	var out []symbols.TypeParam
	for _, tp := range childrenOfKind(tpNode, "type_parameter") {
		id := childOfKind(tp, "type_identifier", "identifier")
		p := symbols.TypeParam{Name: x.ctx.Text(id)}
		if bound := childOfKind(tp, "type_bound"); bound != nil {
			for _, t := range namedChildren(bound) {
				p.Bounds = append(p.Bounds, x.typeSig(t, e))
			}
		}
		out = append(out, p)
	}
	return out
}

func (x *javaExtractor) typeList(node *sitter.Node, e *env) []string {
	list := childOfKind(node, "type_list")
	if list == nil {
		list = node
	}
	var out []string
	for _, t := range namedChildren(list) {
		out = append(out, x.typeSig(t, e))
	}
	return out
}

// firstType returns the first named child that is not a modifier list.
func firstType(node *sitter.Node) *sitter.Node {
	for _, c := range namedChildren(node) {
		switch c.Kind() {
		case "modifiers", "variable_declarator", "marker_annotation", "annotation":
			continue
		}
		return c
	}
	return nil
}

func dims(ctx *ExtractionContext, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return strings.Repeat("[", strings.Count(ctx.Text(node), "["))
}
