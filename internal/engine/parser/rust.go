package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func rustSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:        LangRust,
		ConstructorName: "new",
		SelfTokens:      []string{"self", "Self"},
		ImportKinds:     []string{"use_declaration", "mod_item", "extern_crate_declaration"},
		ClassKinds: map[string]TypeKind{
			"struct_item": TypeClass,
			"union_item":  TypeClass,
			"enum_item":   TypeEnum,
			"trait_item":  TypeInterface,
		},
		ImplKinds: map[string]string{
			"impl_item": "type",
		},
		FunctionKinds: []string{"function_item", "function_signature_item"},
		CallKinds: map[string]CallShape{
			"call_expression": {Callee: "function"},
		},
		ConstructorKinds: map[string]string{
			"struct_expression": "name",
		},
		MemberKinds: map[string]MemberShape{
			"field_expression":  {Object: "value", Property: "field"},
			"scoped_identifier": {Object: "path", Property: "name"},
		},
		TransparentKinds: []string{"generic_function", "parenthesized_expression", "try_expression", "await_expression", "reference_expression"},
		ParameterKinds:   []string{"parameters", "closure_parameters"},
		AssignmentKinds: map[string]AssignShape{
			"let_declaration": {Name: "pattern", Value: "value"},
		},
		LambdaKinds:  []string{"closure_expression"},
		ReturnFields: []string{"return_type"},
		Imports:      rustImports,
		Heritage:     rustHeritage,
		Fields:       rustFields,
		Params:       rustParams,
	}
}

func rustImports(c *FileContext, node *sitter.Node) []Import {
	switch node.Kind() {
	case "use_declaration":
		var out []Import
		for _, path := range c.rustUsePaths(node.ChildByFieldName("argument"), "") {
			out = append(out, Import{Raw: path})
		}
		return out
	case "mod_item":
		if node.ChildByFieldName("body") != nil {
			return nil
		}
		if name := c.FieldText(node, "name"); name != "" {
			return []Import{{Raw: "self::" + name}}
		}
	case "extern_crate_declaration":
		if name := c.FieldText(node, "name"); name != "" {
			return []Import{{Raw: name}}
		}
	}
	return nil
}

// rustUsePaths expands `use a::{b, c::d as e}` into a::b and a::c::d.
func (c *FileContext) rustUsePaths(node *sitter.Node, prefix string) []string {
	if node == nil {
		return nil
	}
	join := func(p string) string {
		if prefix == "" {
			return p
		}
		return prefix + "::" + p
	}
	switch node.Kind() {
	case "use_as_clause":
		return c.rustUsePaths(node.ChildByFieldName("path"), prefix)
	case "use_wildcard":
		return []string{join(strings.TrimSuffix(strings.TrimSpace(c.Text(node)), "::*"))}
	case "scoped_use_list":
		base := prefix
		if path := node.ChildByFieldName("path"); path != nil {
			base = join(strings.TrimSpace(c.Text(path)))
		}
		return c.rustUsePaths(node.ChildByFieldName("list"), base)
	case "use_list":
		var out []string
		for _, child := range namedChildren(node) {
			out = append(out, c.rustUsePaths(child, prefix)...)
		}
		return out
	case "self":
		if prefix != "" {
			return []string{prefix}
		}
		return []string{"self"}
	default:
		return []string{join(strings.TrimSpace(c.Text(node)))}
	}
}

func rustHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	if bounds := node.ChildByFieldName("bounds"); bounds != nil {
		t.Extends = append(t.Extends, c.typeNames(bounds)...)
	}
}

func rustFields(c *FileContext, node *sitter.Node) []Field {
	body := node.ChildByFieldName("body")
	var fields []Field
	for _, child := range namedChildren(body) {
		switch child.Kind() {
		case "field_declaration":
			fields = append(fields, Field{
				Name: c.FieldText(child, "name"),
				Type: normalizeType(c.FieldText(child, "type")),
			})
		case "enum_variant":
			fields = append(fields, Field{Name: c.FieldText(child, "name")})
		}
	}
	return fields
}

func rustParams(c *FileContext, list *sitter.Node) []Param {
	params := []Param{}
	for _, child := range namedChildren(list) {
		switch child.Kind() {
		case "self_parameter":
			params = append(params, Param{Name: "self", Type: "Self"})
		case "parameter":
			params = append(params, Param{
				Name: c.FieldText(child, "pattern"),
				Type: normalizeType(c.FieldText(child, "type")),
			})
		case "identifier":
			params = append(params, Param{Name: c.Text(child)})
		default:
			params = append(params, Param{
				Name: c.FieldText(child, "pattern"),
				Type: normalizeType(c.FieldText(child, "type")),
			})
		}
	}
	return params
}
