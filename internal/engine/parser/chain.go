package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// processChainNode decomposes a call or member-access expression into ordered
// segments: `a.b().c` yields MEMBER a, FUNCTION b, MEMBER c.
func (c *FileContext) processChainNode(node *sitter.Node) []ChainSegment {
	if node == nil {
		return nil
	}
	kind := node.Kind()
	s := c.spec

	if shape, ok := s.CallKinds[kind]; ok {
		var segs []ChainSegment
		if shape.Callee != "" {
			segs = c.processChainNode(node.ChildByFieldName(shape.Callee))
		} else {
			segs = c.processChainNode(firstField(node, shape.Receiver))
			if name := firstField(node, shape.Name); name != nil {
				segs = append(segs, ChainSegment{Kind: SegmentMember, Name: leafName(c.Text(name))})
			}
		}
		if len(segs) > 0 {
			segs[len(segs)-1].Kind = SegmentFunction
		}
		return segs
	}

	if field, ok := s.ConstructorKinds[kind]; ok {
		name := simpleTypeName(c.Text(c.constructedType(node, field)))
		if name == "" {
			return nil
		}
		return []ChainSegment{{Kind: SegmentFunction, Name: name}}
	}

	if shape, ok := s.MemberKinds[kind]; ok {
		segs := c.processChainNode(firstField(node, shape.Object))
		if prop := firstField(node, shape.Property); prop != nil {
			segs = append(segs, ChainSegment{Kind: SegmentMember, Name: leafName(c.Text(prop))})
		}
		return segs
	}

	if s.sets.transparent[kind] {
		if children := namedChildren(node); len(children) > 0 {
			return c.processChainNode(children[0])
		}
		return nil
	}

	name := leafName(c.Text(node))
	if name == "" {
		name = "<" + kind + ">"
	}
	return []ChainSegment{{Kind: SegmentMember, Name: name}}
}

// leafName keeps identifier-like text and drops generic arguments.
func leafName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "<(["); i > 0 {
		text = text[:i]
	}
	if text == "" || strings.ContainsAny(text, " \t\n{};,\"'`") {
		return ""
	}
	return text
}

func (c *FileContext) constructedType(node *sitter.Node, field string) *sitter.Node {
	if t := firstField(node, field, "constructor", "type", "name"); t != nil {
		return t
	}
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "name", "qualified_name", "identifier", "type_identifier", "generic_name", "scoped_type_identifier":
			return child
		}
	}
	return nil
}

// handleCall records a call site, attributing self-receiver calls to the
// enclosing class.
func (c *FileContext) handleCall(node *sitter.Node) {
	segs := c.processChainNode(node)
	if len(segs) == 0 {
		return
	}
	last := segs[len(segs)-1]
	if last.Name == "" || strings.HasPrefix(last.Name, "<") {
		return
	}
	call := CallRecord{
		NodeID: c.callNodeID(node),
		Name:   last.Name,
		Chain:  segs,
		Line:   int(node.StartPosition().Row) + 1,
	}
	if len(segs) > 1 {
		call.Receiver = segs[0].Name
		if c.isSelf(call.Receiver) && len(segs) == 2 {
			call.SelfCall = true
			call.ClassName = c.currentClass()
		}
	}
	if _, ok := c.spec.ConstructorKinds[node.Kind()]; ok {
		if !isTypeLikeName(call.Name) {
			return
		}
		call.Constructor = true
		call.ClassName = call.Name
	}
	if c.spec.OnCall != nil && c.spec.OnCall(c, node, &call) {
		return
	}
	c.recordNode(node, call.NodeID, call.Name, "call")
	c.analysis.Calls = append(c.analysis.Calls, call)
	if fn := c.currentFunction(); fn != nil {
		fn.Calls = append(fn.Calls, call)
	}
}

// callNodeID keys a call by its first byte, except a chained call whose
// receiver is itself a call starting at that byte. `new C().c()` and
// `a().b()` key the outer call by its name so the inner one keeps its own id.
func (c *FileContext) callNodeID(node *sitter.Node) string {
	if c.wrapsCallAtStart(node) {
		if name := c.calledName(node); name != nil {
			return c.mapNodeId(name)
		}
	}
	return c.mapNodeId(node)
}

func (c *FileContext) wrapsCallAtStart(node *sitter.Node) bool {
	start := node.StartByte()
	for child := node.NamedChild(0); child != nil && child.StartByte() == start; child = child.NamedChild(0) {
		kind := child.Kind()
		if _, ok := c.spec.CallKinds[kind]; ok {
			return true
		}
		if _, ok := c.spec.ConstructorKinds[kind]; ok {
			return true
		}
	}
	return false
}

// calledName returns the node naming the invoked member of a call.
func (c *FileContext) calledName(node *sitter.Node) *sitter.Node {
	shape, ok := c.spec.CallKinds[node.Kind()]
	if !ok {
		return nil
	}
	if shape.Callee == "" {
		return firstField(node, shape.Name)
	}
	callee := node.ChildByFieldName(shape.Callee)
	if callee == nil {
		return nil
	}
	if member, ok := c.spec.MemberKinds[callee.Kind()]; ok {
		return firstField(callee, member.Property)
	}
	return nil
}

// handleImport records the raw imports declared by node.
func (c *FileContext) handleImport(node *sitter.Node) {
	if c.spec.Imports == nil {
		return
	}
	for _, imp := range c.spec.Imports(c, node) {
		c.addImport(node, imp)
	}
}

func (c *FileContext) addImport(node *sitter.Node, imp Import) {
	imp.Raw = strings.TrimSpace(imp.Raw)
	if imp.Raw == "" {
		return
	}
	imp.NodeID = c.mapNodeId(node)
	if imp.Line == 0 {
		imp.Line = int(node.StartPosition().Row) + 1
	}
	c.recordNode(node, imp.NodeID, imp.Raw, "import")
	c.analysis.RawImports = append(c.analysis.RawImports, imp)
}

// firstStringArg returns the unquoted text of the first string argument of a call.
func (c *FileContext) firstStringArg(call *sitter.Node) (string, bool) {
	args := firstField(call, "arguments")
	if args == nil {
		return "", false
	}
	for _, arg := range namedChildren(args) {
		if literalToken(arg.Kind()) == "STR" {
			return trimQuotes(c.Text(arg)), true
		}
		return "", false
	}
	return "", false
}
