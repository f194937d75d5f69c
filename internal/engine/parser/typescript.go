package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func javascriptSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:        LangJavaScript,
		ConstructorName: "constructor",
		SelfTokens:      []string{"this"},
		ImportKinds:     []string{"import_statement", "export_statement"},
		ClassKinds: map[string]TypeKind{
			"class_declaration": TypeClass,
		},
		FunctionKinds: []string{
			"function_declaration",
			"generator_function_declaration",
			"method_definition",
		},
		CallKinds: map[string]CallShape{
			"call_expression": {Callee: "function"},
		},
		ConstructorKinds: map[string]string{
			"new_expression": "constructor",
		},
		MemberKinds: map[string]MemberShape{
			"member_expression":    {Object: "object", Property: "property"},
			"subscript_expression": {Object: "object", Property: "index"},
		},
		TransparentKinds: []string{"parenthesized_expression", "await_expression"},
		ParameterKinds:   []string{"formal_parameters"},
		AssignmentKinds: map[string]AssignShape{
			"variable_declarator":   {Name: "name", Value: "value"},
			"assignment_expression": {Name: "left", Value: "right"},
			"field_definition":      {Name: "property", Value: "value"},
			"pair":                  {Name: "key", Value: "value"},
		},
		LambdaKinds:  []string{"arrow_function", "function_expression", "function", "generator_function"},
		ReturnFields: []string{"return_type"},
		Imports:      ecmaImports,
		Heritage:     ecmaHeritage,
		Fields:       ecmaFields,
		OnCall:       ecmaOnCall,
	}
}

func typescriptSpec(lang Language) *LanguageSpec {
	s := javascriptSpec()
	s.Language = lang
	s.ClassKinds = map[string]TypeKind{
		"class_declaration":          TypeClass,
		"abstract_class_declaration": TypeClass,
		"interface_declaration":      TypeInterface,
		"enum_declaration":           TypeEnum,
	}
	s.FunctionKinds = append(s.FunctionKinds,
		"method_signature",
		"abstract_method_signature",
		"function_signature",
	)
	s.TransparentKinds = append(s.TransparentKinds, "non_null_expression", "as_expression")
	s.AssignmentKinds["public_field_definition"] = AssignShape{Name: "name", Value: "value"}
	return s
}

func ecmaImports(c *FileContext, node *sitter.Node) []Import {
	source := node.ChildByFieldName("source")
	if source == nil {
		// export statements without a source re-export nothing
		return nil
	}
	imp := Import{Raw: trimQuotes(c.Text(source))}
	if clause := childOfKind(node, "import_clause"); clause != nil {
		imp.Names = c.identifiersIn(clause)
	}
	return []Import{imp}
}

func (c *FileContext) identifiersIn(node *sitter.Node) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if isIdentifierKind(n.Kind()) {
			names = append(names, c.Text(n))
			return
		}
		for _, child := range namedChildren(n) {
			walk(child)
		}
	}
	walk(node)
	return names
}

// ecmaOnCall turns require('x') and import('x') into imports.
func ecmaOnCall(c *FileContext, node *sitter.Node, call *CallRecord) bool {
	if call.Receiver != "" || (call.Name != "require" && call.Name != "import") {
		return false
	}
	target, ok := c.firstStringArg(node)
	if !ok {
		return false
	}
	c.addImport(node, Import{Raw: target})
	return true
}

func ecmaHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "class_heritage":
			for _, part := range namedChildren(child) {
				switch part.Kind() {
				case "extends_clause":
					t.Extends = append(t.Extends, c.typeNames(part)...)
				case "implements_clause":
					t.Implements = append(t.Implements, c.typeNames(part)...)
				default:
					// plain JavaScript: class_heritage holds the expression directly
					if name := simpleTypeName(c.Text(part)); name != "" {
						t.Extends = append(t.Extends, name)
					}
				}
			}
		case "extends_type_clause", "extends_clause":
			t.Extends = append(t.Extends, c.typeNames(child)...)
		}
	}
}

// typeNames returns bare names of the type-like named children of node.
func (c *FileContext) typeNames(node *sitter.Node) []string {
	var out []string
	for _, child := range namedChildren(node) {
		if child.Kind() == "type_arguments" || child.Kind() == "type_parameters" {
			continue
		}
		if name := simpleTypeName(c.Text(child)); isTypeLikeName(name) {
			out = append(out, name)
		}
	}
	return out
}

func ecmaFields(c *FileContext, node *sitter.Node) []Field {
	body := node.ChildByFieldName("body")
	var fields []Field
	for _, member := range namedChildren(body) {
		switch member.Kind() {
		case "public_field_definition", "field_definition", "property_signature":
			name := c.FieldText(member, "name", "property")
			if name == "" {
				continue
			}
			fields = append(fields, Field{
				Name: strings.TrimPrefix(name, "#"),
				Type: normalizeType(c.FieldText(member, "type")),
			})
		case "enum_assignment":
			fields = append(fields, Field{Name: c.FieldText(member, "name")})
		case "property_identifier":
			fields = append(fields, Field{Name: c.Text(member)})
		}
	}
	return fields
}
