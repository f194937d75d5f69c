package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func javaSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:    LangJava,
		SelfTokens:  []string{"this", "super"},
		ImportKinds: []string{"import_declaration"},
		ClassKinds: map[string]TypeKind{
			"class_declaration":           TypeClass,
			"record_declaration":          TypeClass,
			"interface_declaration":       TypeInterface,
			"annotation_type_declaration": TypeInterface,
			"enum_declaration":            TypeEnum,
		},
		FunctionKinds: []string{"method_declaration", "constructor_declaration"},
		CallKinds: map[string]CallShape{
			"method_invocation": {Receiver: "object", Name: "name"},
		},
		ConstructorKinds: map[string]string{
			"object_creation_expression": "type",
		},
		MemberKinds: map[string]MemberShape{
			"field_access": {Object: "object", Property: "field"},
		},
		TransparentKinds: []string{"parenthesized_expression"},
		ParameterKinds:   []string{"formal_parameters"},
		AssignmentKinds: map[string]AssignShape{
			"variable_declarator": {Name: "name", Value: "value"},
		},
		LambdaKinds:  []string{"lambda_expression"},
		ReturnFields: []string{"type"},
		Imports:      javaImports,
		Heritage:     javaHeritage,
		Fields:       javaFields,
	}
}

func javaImports(c *FileContext, node *sitter.Node) []Import {
	var path string
	wildcard := false
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "scoped_identifier", "identifier":
			path = c.Text(child)
		case "asterisk":
			wildcard = true
		}
	}
	if path == "" {
		return nil
	}
	if wildcard {
		path += ".*"
	}
	return []Import{{Raw: path}}
}

func javaHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	if super := node.ChildByFieldName("superclass"); super != nil {
		t.Extends = append(t.Extends, c.typeNames(super)...)
	}
	if ifaces := node.ChildByFieldName("interfaces"); ifaces != nil {
		t.Implements = append(t.Implements, c.nestedTypeNames(ifaces)...)
	}
	if ext := childOfKind(node, "extends_interfaces"); ext != nil {
		t.Extends = append(t.Extends, c.nestedTypeNames(ext)...)
	}
}

// nestedTypeNames reads names through an intermediate type_list.
func (c *FileContext) nestedTypeNames(node *sitter.Node) []string {
	if list := childOfKind(node, "type_list"); list != nil {
		return c.typeNames(list)
	}
	return c.typeNames(node)
}

func javaFields(c *FileContext, node *sitter.Node) []Field {
	body := node.ChildByFieldName("body")
	var fields []Field
	for _, member := range namedChildren(body) {
		switch member.Kind() {
		case "field_declaration", "constant_declaration":
			typ := normalizeType(c.FieldText(member, "type"))
			for _, decl := range namedChildren(member) {
				if decl.Kind() == "variable_declarator" {
					fields = append(fields, Field{Name: c.FieldText(decl, "name"), Type: typ})
				}
			}
		case "enum_constant":
			fields = append(fields, Field{Name: c.FieldText(member, "name")})
		case "enum_body_declarations":
			// nested field declarations after the constants
			for _, inner := range namedChildren(member) {
				if inner.Kind() != "field_declaration" {
					continue
				}
				typ := normalizeType(c.FieldText(inner, "type"))
				for _, decl := range namedChildren(inner) {
					if decl.Kind() == "variable_declarator" {
						fields = append(fields, Field{Name: c.FieldText(decl, "name"), Type: typ})
					}
				}
			}
		}
	}
	if params := node.ChildByFieldName("parameters"); params != nil && node.Kind() == "record_declaration" {
		for _, p := range c.genericParams(params) {
			fields = append(fields, Field{Name: p.Name, Type: p.Type})
		}
	}
	for i := range fields {
		fields[i].Name = strings.TrimSpace(fields[i].Name)
	}
	return fields
}
