package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func goSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:    LangGo,
		ImportKinds: []string{"import_declaration"},
		ClassKinds: map[string]TypeKind{
			"type_spec": TypeClass,
		},
		FunctionKinds: []string{"function_declaration", "method_declaration", "method_elem", "method_spec"},
		CallKinds: map[string]CallShape{
			"call_expression": {Callee: "function"},
		},
		ConstructorKinds: map[string]string{
			"composite_literal": "type",
		},
		MemberKinds: map[string]MemberShape{
			"selector_expression": {Object: "operand", Property: "field"},
		},
		TransparentKinds: []string{"parenthesized_expression", "generic_type", "index_expression"},
		ParameterKinds:   []string{"parameter_list"},
		AssignmentKinds: map[string]AssignShape{
			"short_var_declaration": {Name: "left", Value: "right"},
			"assignment_statement":  {Name: "left", Value: "right"},
			"var_spec":              {Name: "name", Value: "value"},
		},
		LambdaKinds:  []string{"func_literal"},
		ReturnFields: []string{"result"},
		Imports:      goImports,
		Classify:     goClassify,
		Heritage:     goHeritage,
		Fields:       goFields,
		Params:       goParams,
		Owner:        goReceiverType,
	}
}

func goImports(c *FileContext, node *sitter.Node) []Import {
	var out []Import
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for _, child := range namedChildren(n) {
			switch child.Kind() {
			case "import_spec":
				path := trimQuotes(c.FieldText(child, "path"))
				if path == "" {
					continue
				}
				out = append(out, Import{
					Raw:   path,
					Alias: c.FieldText(child, "name"),
					Line:  int(child.StartPosition().Row) + 1,
				})
			case "import_spec_list":
				walk(child)
			}
		}
	}
	walk(node)
	return out
}

func goClassify(c *FileContext, node *sitter.Node) (TypeKind, bool) {
	typ := node.ChildByFieldName("type")
	if typ == nil {
		return "", false
	}
	switch typ.Kind() {
	case "struct_type":
		return TypeClass, true
	case "interface_type":
		return TypeInterface, true
	}
	return "", false
}

// goHeritage records embedded types as extends.
func goHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	typ := node.ChildByFieldName("type")
	if typ == nil {
		return
	}
	switch typ.Kind() {
	case "struct_type":
		for _, field := range goStructFields(typ) {
			if field.ChildByFieldName("name") == nil {
				if name := simpleTypeName(c.FieldText(field, "type")); name != "" {
					t.Extends = append(t.Extends, name)
				}
			}
		}
	case "interface_type":
		for _, elem := range namedChildren(typ) {
			switch elem.Kind() {
			case "type_elem", "constraint_elem":
				t.Extends = append(t.Extends, c.typeNames(elem)...)
			case "type_identifier", "qualified_type":
				t.Extends = append(t.Extends, simpleTypeName(c.Text(elem)))
			}
		}
	}
}

func goStructFields(structType *sitter.Node) []*sitter.Node {
	list := childOfKind(structType, "field_declaration_list")
	var out []*sitter.Node
	for _, child := range namedChildren(list) {
		if child.Kind() == "field_declaration" {
			out = append(out, child)
		}
	}
	return out
}

func goFields(c *FileContext, node *sitter.Node) []Field {
	typ := node.ChildByFieldName("type")
	if typ == nil || typ.Kind() != "struct_type" {
		return nil
	}
	var fields []Field
	for _, decl := range goStructFields(typ) {
		fieldType := normalizeType(c.FieldText(decl, "type"))
		named := false
		for _, child := range namedChildren(decl) {
			if child.Kind() == "field_identifier" {
				fields = append(fields, Field{Name: c.Text(child), Type: fieldType})
				named = true
			}
		}
		if !named {
			fields = append(fields, Field{Name: simpleTypeName(fieldType), Type: fieldType})
		}
	}
	return fields
}

// goParams expands `a, b int` into one param per name.
func goParams(c *FileContext, list *sitter.Node) []Param {
	params := []Param{}
	for _, decl := range namedChildren(list) {
		switch decl.Kind() {
		case "parameter_declaration", "variadic_parameter_declaration":
			typ := normalizeType(c.FieldText(decl, "type"))
			if decl.Kind() == "variadic_parameter_declaration" {
				typ = "..." + typ
			}
			named := false
			for _, child := range namedChildren(decl) {
				if child.Kind() == "identifier" {
					params = append(params, Param{Name: c.Text(child), Type: typ})
					named = true
				}
			}
			if !named {
				params = append(params, Param{Type: typ})
			}
		}
	}
	return params
}

func goReceiverType(c *FileContext, node *sitter.Node) string {
	if node.Kind() != "method_declaration" {
		return ""
	}
	recv := node.ChildByFieldName("receiver")
	for _, decl := range namedChildren(recv) {
		if name := simpleTypeName(strings.TrimSpace(c.FieldText(decl, "type"))); name != "" {
			return name
		}
	}
	return ""
}
