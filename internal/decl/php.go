package decl

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"github.com/jward/stubcat/internal/entity"
)

// PHPSource reads PHP declaration stubs with tree-sitter. A new parser is
// created per call, so one PHPSource may be shared between goroutines.
type PHPSource struct{}

// NewPHPSource returns a Source for PHP files.
func NewPHPSource() *PHPSource { return &PHPSource{} }

// Parse returns the declarations of src in source order. Containers come
// before their members.
func (s *PHPSource) Parse(ctx context.Context, path string, src []byte) ([]Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(php.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("decl: parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("decl: parse %s: empty tree", path)
	}
	w := &phpWalker{src: src, uses: make(map[string]string)}
	w.statements(root)
	return w.nodes, nil
}

type phpWalker struct {
	src   []byte
	ns    string
	uses  map[string]string
	nodes []Node
}

func (w *phpWalker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func line(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func (w *phpWalker) statements(parent *sitter.Node) {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		switch n.Type() {
		case "namespace_definition":
			w.namespace(n)
		case "namespace_use_declaration":
			w.useDeclaration(n)
		case "function_definition":
			w.function(n, entity.KindFunction, -1)
		case "class_declaration":
			w.container(n, entity.KindClass)
		case "interface_declaration":
			w.container(n, entity.KindInterface)
		case "enum_declaration":
			w.container(n, entity.KindEnum)
		case "const_declaration":
			w.constants(n, -1)
		case "expression_statement":
			w.define(n)
		case "compound_statement":
			w.statements(n)
		}
	}
}

func (w *phpWalker) namespace(n *sitter.Node) {
	name := strings.Trim(w.text(n.ChildByFieldName("name")), `\`)
	w.uses = make(map[string]string)
	body := n.ChildByFieldName("body")
	if body == nil {
		w.ns = name
		return
	}
	prev := w.ns
	w.ns = name
	w.statements(body)
	w.ns = prev
}

var useClauseRe = regexp.MustCompile(`^\\?([\w\\]+)(?:\s+as\s+(\w+))?$`)

func (w *phpWalker) useDeclaration(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "namespace_use_clause" {
			continue
		}
		m := useClauseRe.FindStringSubmatch(strings.TrimSpace(w.text(c)))
		if m == nil {
			continue
		}
		alias := m[2]
		if alias == "" {
			alias = m[1][strings.LastIndex(m[1], `\`)+1:]
		}
		w.uses[strings.ToLower(alias)] = m[1]
	}
}

// resolve qualifies a class-like name the way the enclosing namespace and
// use imports do.
func (w *phpWalker) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, `\`) {
		return raw[1:]
	}
	head, rest, nested := strings.Cut(raw, `\`)
	if full, ok := w.uses[strings.ToLower(head)]; ok {
		if nested {
			return full + `\` + rest
		}
		return full
	}
	return entity.QualifiedName(w.ns, raw)
}

func (w *phpWalker) doc(n *sitter.Node) string {
	prev := n.PrevSibling()
	if prev != nil && prev.Type() == "comment" {
		if t := w.text(prev); strings.HasPrefix(t, "/**") {
			return t
		}
	}
	return ""
}

func (w *phpWalker) modifiers(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if strings.HasSuffix(c.Type(), "_modifier") && c.Type() != "reference_modifier" {
			out = append(out, strings.ToLower(strings.TrimSpace(w.text(c))))
		}
	}
	return out
}

func (w *phpWalker) attributes(n *sitter.Node) []Attribute {
	var out []Attribute
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "attribute_list" {
			w.collectAttributes(c, &out)
		}
	}
	return out
}

func (w *phpWalker) collectAttributes(n *sitter.Node, out *[]Attribute) {
	if n.Type() == "attribute" {
		a := Attribute{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "name", "qualified_name":
				if a.Name == "" {
					a.Name = w.text(c)
				}
			case "arguments":
				a.Args = w.arguments(c)
			}
		}
		*out = append(*out, a)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.collectAttributes(n.NamedChild(i), out)
	}
}

func (w *phpWalker) arguments(n *sitter.Node) []Arg {
	var out []Arg
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "argument" {
			continue
		}
		out = append(out, splitNamedArg(w.text(c)))
	}
	return out
}

// splitNamedArg separates "name: value" from a positional argument. A
// "::" scope operator is not a name separator.
func splitNamedArg(s string) Arg {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, ':')
	if i <= 0 || (i+1 < len(s) && s[i+1] == ':') {
		return Arg{Value: s}
	}
	name := strings.TrimSpace(s[:i])
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Arg{Value: s}
		}
	}
	return Arg{Name: name, Value: strings.TrimSpace(s[i+1:])}
}

func (w *phpWalker) typeText(n *sitter.Node) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(w.text(n)), ":"))
}

func (w *phpWalker) function(n *sitter.Node, kind entity.Kind, owner int) {
	node := Node{
		Kind:       kind,
		Name:       w.text(n.ChildByFieldName("name")),
		Owner:      owner,
		Modifiers:  w.modifiers(n),
		Params:     w.params(n.ChildByFieldName("parameters")),
		Type:       w.typeText(n.ChildByFieldName("return_type")),
		Doc:        w.doc(n),
		Attributes: w.attributes(n),
		Line:       line(n),
	}
	w.add(node)
}

func (w *phpWalker) params(n *sitter.Node) []Param {
	if n == nil {
		return nil
	}
	var out []Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		p := Param{
			Name:       w.text(c.ChildByFieldName("name")),
			Type:       w.typeText(c.ChildByFieldName("type")),
			Variadic:   c.Type() == "variadic_parameter",
			Attributes: w.attributes(c),
		}
		if def := c.ChildByFieldName("default_value"); def != nil {
			p.Default = strings.TrimSpace(w.text(def))
			p.HasDefault = true
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			switch cc := c.Child(j); cc.Type() {
			case "reference_modifier", "&":
				p.ByRef = true
			case "variable_name":
				if p.Name == "" {
					p.Name = w.text(cc)
				}
			}
		}
		p.Name = strings.TrimPrefix(p.Name, "$")
		out = append(out, p)
	}
	return out
}

func (w *phpWalker) container(n *sitter.Node, kind entity.Kind) {
	name := w.text(n.ChildByFieldName("name"))
	node := Node{
		Kind:       kind,
		Name:       name,
		Owner:      -1,
		Modifiers:  w.modifiers(n),
		Doc:        w.doc(n),
		Attributes: w.attributes(n),
		Line:       line(n),
	}
	var body *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "base_clause":
			node.Extends = append(node.Extends, w.names(c)...)
		case "class_interface_clause":
			node.Implements = append(node.Implements, w.names(c)...)
		case "declaration_list", "enum_declaration_list":
			body = c
		}
	}
	idx := w.add(node)
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "method_declaration":
			w.function(c, entity.KindMethod, idx)
		case "property_declaration":
			w.properties(c, idx)
		case "const_declaration":
			w.constants(c, idx)
		case "enum_case":
			w.enumCase(c, idx)
		}
	}
}

func (w *phpWalker) names(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "name" || c.Type() == "qualified_name" {
			out = append(out, w.resolve(w.text(c)))
		}
	}
	return out
}

func (w *phpWalker) properties(n *sitter.Node, owner int) {
	mods := w.modifiers(n)
	typ := w.typeText(n.ChildByFieldName("type"))
	doc := w.doc(n)
	attrs := w.attributes(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "property_element" {
			continue
		}
		node := Node{
			Kind:       entity.KindProperty,
			Owner:      owner,
			Modifiers:  mods,
			Type:       typ,
			Doc:        doc,
			Attributes: attrs,
			Line:       line(c),
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			cc := c.NamedChild(j)
			switch cc.Type() {
			case "variable_name":
				node.Name = strings.TrimPrefix(w.text(cc), "$")
			case "property_initializer":
				node.Value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(w.text(cc)), "="))
			}
		}
		if def := c.ChildByFieldName("default_value"); def != nil && node.Value == "" {
			node.Value = strings.TrimSpace(w.text(def))
		}
		w.add(node)
	}
}

func (w *phpWalker) constants(n *sitter.Node, owner int) {
	mods := w.modifiers(n)
	typ := w.typeText(n.ChildByFieldName("type"))
	doc := w.doc(n)
	attrs := w.attributes(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "const_element" {
			continue
		}
		node := Node{
			Kind:       entity.KindConstant,
			Owner:      owner,
			Modifiers:  mods,
			Type:       typ,
			Doc:        doc,
			Attributes: attrs,
			Line:       line(c),
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			cc := c.NamedChild(j)
			if cc.Type() == "name" && node.Name == "" {
				node.Name = w.text(cc)
				continue
			}
			node.Value = strings.TrimSpace(w.text(cc))
		}
		w.add(node)
	}
}

func (w *phpWalker) enumCase(n *sitter.Node, owner int) {
	node := Node{
		Kind:       entity.KindEnumCase,
		Owner:      owner,
		Doc:        w.doc(n),
		Attributes: w.attributes(n),
		Line:       line(n),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case c.Type() == "name" && node.Name == "":
			node.Name = w.text(c)
		case c.Type() != "attribute_list" && c.Type() != "name":
			node.Value = strings.TrimSpace(w.text(c))
		}
	}
	w.add(node)
}

// define turns a top-level define('NAME', value) call into a constant.
func (w *phpWalker) define(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		return
	}
	call := n.NamedChild(0)
	if call.Type() != "function_call_expression" {
		return
	}
	fn := strings.TrimPrefix(w.text(call.ChildByFieldName("function")), `\`)
	if !strings.EqualFold(fn, "define") {
		return
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	parsed := w.arguments(args)
	if len(parsed) < 2 {
		return
	}
	w.add(Node{
		Kind:  entity.KindConstant,
		Name:  unquote(parsed[0].Value),
		Owner: -1,
		Value: parsed[1].Value,
		Doc:   w.doc(n),
		Line:  line(n),
	})
}

// add appends node in the current namespace and returns its index.
func (w *phpWalker) add(node Node) int {
	node.Name = strings.TrimSpace(node.Name)
	if node.Owner >= 0 {
		owner := w.nodes[node.Owner]
		node.OwnerName = entity.QualifiedName(owner.Namespace, owner.Name)
	} else {
		node.Namespace = w.ns
	}
	if node.Kind == entity.KindConstant && node.Owner < 0 && strings.Contains(node.Name, `\`) {
		node.Namespace = ""
	}
	w.nodes = append(w.nodes, node)
	return len(w.nodes) - 1
}
