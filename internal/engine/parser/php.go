package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func phpSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:        LangPHP,
		ConstructorName: "__construct",
		SelfTokens:      []string{"$this", "self", "static"},
		ImportKinds: []string{
			"namespace_use_declaration",
			"include_expression",
			"include_once_expression",
			"require_expression",
			"require_once_expression",
		},
		ClassKinds: map[string]TypeKind{
			"class_declaration":     TypeClass,
			"trait_declaration":     TypeClass,
			"interface_declaration": TypeInterface,
			"enum_declaration":      TypeEnum,
		},
		FunctionKinds: []string{"function_definition", "method_declaration"},
		CallKinds: map[string]CallShape{
			"function_call_expression":        {Callee: "function"},
			"member_call_expression":          {Receiver: "object", Name: "name"},
			"nullsafe_member_call_expression": {Receiver: "object", Name: "name"},
			"scoped_call_expression":          {Receiver: "scope", Name: "name"},
		},
		ConstructorKinds: map[string]string{
			"object_creation_expression": "",
		},
		MemberKinds: map[string]MemberShape{
			"member_access_expression":          {Object: "object", Property: "name"},
			"nullsafe_member_access_expression": {Object: "object", Property: "name"},
			"scoped_property_access_expression": {Object: "scope", Property: "name"},
		},
		TransparentKinds: []string{"parenthesized_expression"},
		ParameterKinds:   []string{"formal_parameters"},
		AssignmentKinds: map[string]AssignShape{
			"assignment_expression": {Name: "left", Value: "right"},
		},
		LambdaKinds:  []string{"anonymous_function", "anonymous_function_creation_expression", "arrow_function"},
		ReturnFields: []string{"return_type"},
		Imports:      phpImports,
		Heritage:     phpHeritage,
		Fields:       phpFields,
		Handlers: map[string]NodeHandler{
			"use_declaration": phpTraitUse,
		},
	}
}

func phpImports(c *FileContext, node *sitter.Node) []Import {
	if node.Kind() != "namespace_use_declaration" {
		// include/require: take the last string literal in the expression
		var target string
		var walk func(n *sitter.Node)
		walk = func(n *sitter.Node) {
			if literalToken(n.Kind()) == "STR" {
				target = trimQuotes(c.Text(n))
				return
			}
			for _, child := range namedChildren(n) {
				walk(child)
			}
		}
		walk(node)
		if target == "" {
			return nil
		}
		if !strings.HasPrefix(target, ".") && !strings.HasPrefix(target, "/") {
			target = "./" + target
		} else if strings.HasPrefix(target, "/") {
			target = "." + target
		}
		return []Import{{Raw: target}}
	}

	prefix := ""
	if ns := childOfKind(node, "namespace_name"); ns != nil {
		prefix = strings.Trim(c.Text(ns), "\\")
	}
	var out []Import
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		for _, child := range namedChildren(n) {
			switch child.Kind() {
			case "namespace_use_clause":
				imp := c.phpUseClause(child, prefix)
				if imp.Raw != "" {
					out = append(out, imp)
				}
			case "namespace_use_group":
				collect(child)
			}
		}
	}
	collect(node)
	return out
}

func (c *FileContext) phpUseClause(clause *sitter.Node, prefix string) Import {
	var imp Import
	for _, child := range namedChildren(clause) {
		switch child.Kind() {
		case "qualified_name", "name", "namespace_name":
			if imp.Raw == "" {
				imp.Raw = strings.Trim(c.Text(child), "\\")
			} else {
				imp.Alias = c.Text(child)
			}
		case "namespace_aliasing_clause":
			imp.Alias = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Text(child)), "as"))
		}
	}
	if alias := c.FieldText(clause, "alias"); alias != "" {
		imp.Alias = alias
	}
	if prefix != "" && imp.Raw != "" {
		imp.Raw = prefix + "\\" + imp.Raw
	}
	return imp
}

func phpHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "base_clause":
			t.Extends = append(t.Extends, c.typeNames(child)...)
		case "class_interface_clause":
			t.Implements = append(t.Implements, c.typeNames(child)...)
		}
	}
}

func phpFields(c *FileContext, node *sitter.Node) []Field {
	body := node.ChildByFieldName("body")
	var fields []Field
	for _, member := range namedChildren(body) {
		switch member.Kind() {
		case "property_declaration":
			typ := normalizeType(c.FieldText(member, "type"))
			for _, el := range namedChildren(member) {
				if el.Kind() != "property_element" {
					continue
				}
				name := c.FieldText(el, "name")
				if name == "" {
					if v := childOfKind(el, "variable_name"); v != nil {
						name = c.Text(v)
					}
				}
				if name != "" {
					fields = append(fields, Field{Name: strings.TrimPrefix(name, "$"), Type: typ})
				}
			}
		case "enum_case":
			fields = append(fields, Field{Name: c.FieldText(member, "name")})
		}
	}
	return fields
}

// phpTraitUse records `use SomeTrait;` inside a class body.
func phpTraitUse(c *FileContext, node *sitter.Node) {
	t := c.currentType()
	if t == nil {
		return
	}
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "name", "qualified_name":
			t.Implements = append(t.Implements, simpleTypeName(c.Text(child)))
		}
	}
}
