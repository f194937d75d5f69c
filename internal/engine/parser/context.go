package parser

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const maxNodeText = 256

// FileContext is the per-file state populated by the single-pass walk.
type FileContext struct {
	spec       *LanguageSpec
	source     []byte
	path       string
	relPath    string
	lineStarts []int

	ids    map[uint]string
	scopes []*scopeFrame

	analysis  *FileAnalysis
	functions []*FunctionAnalysis
	types     []*TypeAnalysis
}

type scopeFrame struct {
	entry       scopeEntry
	id          string
	fn          *FunctionAnalysis
	typ         *TypeAnalysis
	paramsStart uint
	hasParams   bool
}

func newFileContext(spec *LanguageSpec, path, relPath string, source []byte) *FileContext {
	c := &FileContext{
		spec:     spec,
		source:   source,
		path:     path,
		relPath:  relPath,
		ids:      make(map[uint]string),
		analysis: NewFileAnalysis(path, relPath, spec.Language),
	}
	c.lineStarts = append(c.lineStarts, 0)
	for i, b := range source {
		if b == '\n' {
			c.lineStarts = append(c.lineStarts, i+1)
		}
	}
	return c
}

// mapNodeId returns the id for the construct starting at node's first byte.
// Every query that reaches the same construct gets the same id.
func (c *FileContext) mapNodeId(node *sitter.Node) string {
	start := node.StartByte()
	if id, ok := c.ids[start]; ok {
		return id
	}
	id := c.relPath + "#" + strconv.FormatUint(uint64(start), 10)
	c.ids[start] = id
	return id
}

// Text returns the source text spanned by node.
func (c *FileContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint(len(c.source)) {
		return ""
	}
	return string(c.source[start:end])
}

// FieldText returns the trimmed text of the first present field.
func (c *FileContext) FieldText(node *sitter.Node, fields ...string) string {
	if child := firstField(node, fields...); child != nil {
		return strings.TrimSpace(c.Text(child))
	}
	return ""
}

func firstField(node *sitter.Node, fields ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for _, f := range fields {
		if f == "" {
			continue
		}
		if child := node.ChildByFieldName(f); child != nil {
			return child
		}
	}
	return nil
}

func (c *FileContext) position(node *sitter.Node) Position {
	start, end := node.StartPosition(), node.EndPosition()
	return Position{
		Line:      int(start.Row) + 1,
		Column:    int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndColumn: int(end.Column) + 1,
	}
}

// lineSlice returns whole source lines [start, end], 1-based and inclusive.
func (c *FileContext) lineSlice(start, end int) string {
	if start < 1 || end < start || start > len(c.lineStarts) {
		return ""
	}
	from := c.lineStarts[start-1]
	to := len(c.source)
	if end < len(c.lineStarts) {
		to = c.lineStarts[end] - 1
	}
	if to < from {
		return ""
	}
	return strings.TrimRight(string(c.source[from:to]), "\r")
}

func (c *FileContext) recordNode(node *sitter.Node, id, name, kind string) *AnalysisNode {
	if existing, ok := c.analysis.Nodes[id]; ok {
		return existing
	}
	n := &AnalysisNode{
		ID:       id,
		Name:     name,
		Type:     kind,
		Text:     truncateText(c.Text(node), maxNodeText),
		Position: c.position(node),
	}
	c.analysis.Nodes[id] = n
	if parent := c.currentFrame(); parent != nil && parent.id != id {
		if pn, ok := c.analysis.Nodes[parent.id]; ok {
			pn.Children = append(pn.Children, id)
		}
	}
	return n
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (c *FileContext) currentFrame() *scopeFrame {
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[len(c.scopes)-1]
}

// currentFunction returns the innermost enclosing function record.
func (c *FileContext) currentFunction() *FunctionAnalysis {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].fn != nil {
			return c.scopes[i].fn
		}
	}
	return nil
}

// currentClass returns the name of the innermost enclosing class scope.
func (c *FileContext) currentClass() string {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].entry.Type == ScopeClass {
			return c.scopes[i].entry.Name
		}
	}
	return ""
}

// currentType returns the innermost enclosing type record, if it is recorded.
func (c *FileContext) currentType() *TypeAnalysis {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].entry.Type == ScopeClass {
			return c.scopes[i].typ
		}
	}
	return nil
}

func (c *FileContext) isSelf(token string) bool {
	return c.spec.sets.self[token]
}

func (c *FileContext) addDefine(name string) {
	if name != "" {
		c.analysis.Defines = append(c.analysis.Defines, name)
	}
}

func (c *FileContext) finish(hasErrors bool) *FileResult {
	a := c.analysis
	a.HasErrors = hasErrors
	a.Defines = dedupeSorted(a.Defines)
	a.ClassNames = dedupeSorted(a.ClassNames)
	for _, t := range c.types {
		t.Extends = dedupeSorted(t.Extends)
		t.Implements = dedupeSorted(t.Implements)
	}
	return &FileResult{Analysis: a, Functions: c.functions, Types: c.types}
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// namedChildren returns node's named children, skipping comments.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || isCommentKind(child.Kind()) {
			continue
		}
		out = append(out, child)
	}
	return out
}

// childOfKind returns the first direct child whose kind is in kinds.
func childOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, k := range kinds {
			if child.Kind() == k {
				return child
			}
		}
	}
	return nil
}

// firstIdentifier returns the first identifier-like descendant of node,
// skipping the subtree under the "type" field.
func firstIdentifier(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if isIdentifierKind(node.Kind()) {
		return node
	}
	typeNode := node.ChildByFieldName("type")
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if typeNode != nil && child.StartByte() == typeNode.StartByte() && child.EndByte() == typeNode.EndByte() {
			continue
		}
		if found := firstIdentifier(child); found != nil {
			return found
		}
	}
	return nil
}

// simpleTypeName reduces a written type to its bare name:
// "*pkg.Foo[T]" -> "Foo", "Map<K, V>" -> "Map", "\\App\\User" -> "User".
func simpleTypeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":*&?! ")
	s = strings.TrimPrefix(s, "mut ")
	s = strings.TrimPrefix(s, "dyn ")
	s = strings.TrimPrefix(s, "impl ")
	if i := strings.IndexAny(s, "<[({ \t\n"); i >= 0 {
		s = s[:i]
	}
	for _, sep := range []string{"::", "\\", ".", "/"} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return strings.TrimSpace(s)
}

func isTypeLikeName(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, "\"'`")
}
