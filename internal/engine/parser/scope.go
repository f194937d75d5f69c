package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type ScopeType int

const (
	ScopeClass ScopeType = iota
	ScopeFunction
	ScopeMethod
)

type scopeEntry struct {
	Type     ScopeType
	Name     string
	Node     *sitter.Node // construct that opens the scope
	Callable *sitter.Node // node carrying parameters/body; differs from Node for lambda assignments
	TypeKind TypeKind
	ImplOnly bool
	Owner    string
}

// getScopeTypeForNode maps a node to the named scope it opens: a class-like
// type, a function or method, or an assignment whose value is a lambda.
func (c *FileContext) getScopeTypeForNode(node *sitter.Node) (scopeEntry, bool) {
	kind := node.Kind()
	s := c.spec

	if tk, ok := s.ClassKinds[kind]; ok {
		if s.Classify != nil {
			var classified bool
			if tk, classified = s.Classify(c, node); !classified {
				return scopeEntry{}, false
			}
		}
		name := simpleTypeName(c.FieldText(node, "name"))
		if name == "" {
			return scopeEntry{}, false
		}
		return scopeEntry{Type: ScopeClass, Name: name, Node: node, TypeKind: tk}, true
	}

	if field, ok := s.ImplKinds[kind]; ok {
		name := simpleTypeName(c.FieldText(node, field))
		if name == "" {
			return scopeEntry{}, false
		}
		return scopeEntry{Type: ScopeClass, Name: name, Node: node, ImplOnly: true}, true
	}

	if s.sets.functions[kind] {
		name := c.FieldText(node, "name")
		if name == "" {
			return scopeEntry{}, false
		}
		entry := scopeEntry{Type: ScopeFunction, Name: name, Node: node, Callable: node}
		if s.Owner != nil {
			entry.Owner = s.Owner(c, node)
		}
		if entry.Owner == "" {
			if frame := c.currentFrame(); frame != nil && frame.entry.Type == ScopeClass {
				entry.Owner = frame.entry.Name
			}
		}
		if entry.Owner != "" {
			entry.Type = ScopeMethod
		}
		return entry, true
	}

	if shape, ok := s.AssignmentKinds[kind]; ok {
		value := assignmentValue(node, shape)
		if value == nil || !s.sets.lambdas[value.Kind()] {
			return scopeEntry{}, false
		}
		name := c.assignmentName(node, shape)
		if name == "" {
			return scopeEntry{}, false
		}
		entry := scopeEntry{Type: ScopeFunction, Name: name, Node: node, Callable: value}
		if frame := c.currentFrame(); frame != nil && frame.entry.Type == ScopeClass {
			entry.Type = ScopeMethod
			entry.Owner = frame.entry.Name
		}
		return entry, true
	}

	return scopeEntry{}, false
}

func assignmentValue(node *sitter.Node, shape AssignShape) *sitter.Node {
	value := firstField(node, shape.Value)
	if value == nil {
		children := namedChildren(node)
		if len(children) < 2 {
			return nil
		}
		value = children[len(children)-1]
	}
	if value.Kind() == "expression_list" || value.Kind() == "equals_value_clause" {
		if children := namedChildren(value); len(children) > 0 {
			value = children[0]
		}
	}
	return value
}

func (c *FileContext) assignmentName(node *sitter.Node, shape AssignShape) string {
	target := firstField(node, shape.Name)
	if target == nil {
		children := namedChildren(node)
		if len(children) == 0 {
			return ""
		}
		target = children[0]
	}
	if target.Kind() == "expression_list" {
		children := namedChildren(target)
		if len(children) == 0 {
			return ""
		}
		target = children[0]
	}
	if segs := c.processChainNode(target); len(segs) > 0 {
		return segs[len(segs)-1].Name
	}
	return strings.TrimSpace(c.Text(target))
}

func (c *FileContext) enterScope(entry scopeEntry) {
	frame := &scopeFrame{entry: entry}
	switch entry.Type {
	case ScopeClass:
		frame.id = c.mapNodeId(entry.Node)
		if entry.ImplOnly {
			c.recordImplRelation(entry)
		} else {
			frame.typ = c.recordType(entry, frame.id)
		}
	default:
		frame.id = c.mapNodeId(entry.Node)
		frame.fn = c.recordFunction(entry, frame)
	}
	c.scopes = append(c.scopes, frame)
}

func (c *FileContext) exitScope() {
	frame := c.currentFrame()
	if frame == nil {
		return
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
	if frame.fn != nil {
		frame.fn.SignatureHash = SignatureHash(frame.fn.Params, frame.fn.ReturnType)
	}
}

func (c *FileContext) recordType(entry scopeEntry, id string) *TypeAnalysis {
	pos := c.position(entry.Node)
	scope := "global"
	if outer := c.currentClass(); outer != "" {
		scope = outer
	} else if c.currentFunction() != nil {
		scope = "nested"
	}
	t := &TypeAnalysis{
		NodeID:        id,
		Name:          entry.Name,
		File:          c.path,
		Kind:          entry.TypeKind,
		Fields:        []Field{},
		Extends:       []string{},
		ExtendedBy:    []string{},
		Implements:    []string{},
		ImplementedBy: []string{},
		Scope:         scope,
		StartLine:     pos.Line,
		EndLine:       pos.EndLine,
		FullText:      c.lineSlice(pos.Line, pos.EndLine),
		Language:      c.spec.Language,
	}
	if c.spec.Heritage != nil {
		c.spec.Heritage(c, entry.Node, t)
	}
	if c.spec.Fields != nil {
		t.Fields = append(t.Fields, c.spec.Fields(c, entry.Node)...)
	}
	c.recordNode(entry.Node, id, entry.Name, string(entry.TypeKind))
	c.types = append(c.types, t)
	c.analysis.ClassNames = append(c.analysis.ClassNames, entry.Name)
	c.addDefine(entry.Name)
	return t
}

func (c *FileContext) recordImplRelation(entry scopeEntry) {
	trait := simpleTypeName(c.FieldText(entry.Node, "trait"))
	if trait == "" {
		return
	}
	c.analysis.Relations = append(c.analysis.Relations, TypeRelation{
		TypeName: entry.Name,
		Kind:     RelationImplements,
		Target:   trait,
	})
}

func (c *FileContext) recordFunction(entry scopeEntry, frame *scopeFrame) *FunctionAnalysis {
	pos := c.position(entry.Node)
	fn := &FunctionAnalysis{
		NodeID:       frame.id,
		File:         c.path,
		Name:         entry.Name,
		Params:       []Param{},
		Calls:        []CallRecord{},
		ClassName:    entry.Owner,
		StartLine:    pos.Line,
		EndLine:      pos.EndLine,
		Lines:        pos.EndLine - pos.Line + 1,
		FunctionHash: FunctionHash(entry.Node, c.source),
		FullText:     c.lineSlice(pos.Line, pos.EndLine),
		Language:     c.spec.Language,
	}
	fn.ReturnType = normalizeType(c.FieldText(entry.Callable, c.spec.ReturnFields...))

	if list := c.parameterList(entry.Callable); list != nil {
		if c.spec.sets.params[list.Kind()] {
			// Filled when the walk reaches the list.
			frame.paramsStart = list.StartByte()
			frame.hasParams = true
		} else {
			fn.Params = c.extractParams(list)
		}
	}

	c.recordNode(entry.Node, frame.id, entry.Name, scopeKindLabel(entry))
	c.functions = append(c.functions, fn)
	c.addDefine(fn.FullName())
	return fn
}

func scopeKindLabel(entry scopeEntry) string {
	if entry.Type == ScopeMethod {
		return "method"
	}
	return "function"
}

func (c *FileContext) parameterList(callable *sitter.Node) *sitter.Node {
	if callable == nil {
		return nil
	}
	if list := firstField(callable, "parameters", "parameter"); list != nil {
		return list
	}
	for _, child := range namedChildren(callable) {
		if c.spec.sets.params[child.Kind()] {
			return child
		}
	}
	return nil
}

// handleParameters fills the enclosing function's params when the walk reaches
// that function's own parameter list.
func (c *FileContext) handleParameters(node *sitter.Node) {
	frame := c.currentFrame()
	if frame == nil || frame.fn == nil || !frame.hasParams || frame.paramsStart != node.StartByte() {
		return
	}
	frame.hasParams = false
	frame.fn.Params = c.extractParams(node)
}

func (c *FileContext) extractParams(list *sitter.Node) []Param {
	if c.spec.Params != nil {
		return c.spec.Params(c, list)
	}
	return c.genericParams(list)
}

func (c *FileContext) genericParams(list *sitter.Node) []Param {
	if isIdentifierKind(list.Kind()) {
		return []Param{{Name: c.Text(list)}}
	}
	params := []Param{}
	for _, child := range namedChildren(list) {
		if isIdentifierKind(child.Kind()) {
			params = append(params, Param{Name: c.Text(child)})
			continue
		}
		typ := normalizeType(c.FieldText(child, "type"))
		nameNode := firstField(child, "name", "pattern", "left")
		if nameNode == nil {
			nameNode = firstIdentifier(child)
		}
		name := strings.TrimSpace(c.Text(nameNode))
		if nameNode == nil {
			name = strings.TrimSpace(c.Text(child))
		}
		if name == "" && typ == "" {
			continue
		}
		params = append(params, Param{Name: name, Type: typ})
	}
	return params
}

// normalizeType strips annotation punctuation and whitespace from a written type.
func normalizeType(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ":")
	s = strings.TrimPrefix(s, "->")
	return strings.Join(strings.Fields(s), "")
}
