package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// collectAllInOnePass walks the tree once. Every visited node is matched
// against the compiled query set and all matching queries run on that visit.
func (c *FileContext) collectAllInOnePass(root *sitter.Node) {
	c.visit(root)
}

func (c *FileContext) visit(node *sitter.Node) {
	if node == nil {
		return
	}
	kind := node.Kind()
	match := c.spec.queries.Match(kind)

	pushed := false
	if match.Has(QueryClass | QueryFunction) {
		if entry, ok := c.getScopeTypeForNode(node); ok {
			c.enterScope(entry)
			pushed = true
		}
	}
	if match.Has(QueryParameters) {
		c.handleParameters(node)
	}
	if match.Has(QueryImport) {
		c.handleImport(node)
	}
	if match.Has(QueryCall) {
		c.handleCall(node)
	}
	if handler, ok := c.spec.Handlers[kind]; ok {
		handler(c, node)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		c.visit(node.Child(i))
	}

	if pushed {
		c.exitScope()
	}
}
