package parser

import (
	"strings"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func csharpSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:    LangCSharp,
		SelfTokens:  []string{"this", "base"},
		ImportKinds: []string{"using_directive"},
		ClassKinds: map[string]TypeKind{
			"class_declaration":     TypeClass,
			"struct_declaration":    TypeClass,
			"record_declaration":    TypeClass,
			"interface_declaration": TypeInterface,
			"enum_declaration":      TypeEnum,
		},
		FunctionKinds: []string{"method_declaration", "constructor_declaration", "local_function_statement"},
		CallKinds: map[string]CallShape{
			"invocation_expression": {Callee: "function"},
		},
		ConstructorKinds: map[string]string{
			"object_creation_expression": "type",
		},
		MemberKinds: map[string]MemberShape{
			"member_access_expression": {Object: "expression", Property: "name"},
		},
		TransparentKinds: []string{"parenthesized_expression", "await_expression"},
		ParameterKinds:   []string{"parameter_list"},
		ReturnFields:     []string{"returns", "type"},
		Imports:          csharpImports,
		Heritage:         csharpHeritage,
		Fields:           csharpFields,
	}
}

func csharpImports(c *FileContext, node *sitter.Node) []Import {
	var names []*sitter.Node
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "qualified_name", "identifier", "alias_qualified_name":
			names = append(names, child)
		}
	}
	if len(names) == 0 {
		return nil
	}
	imp := Import{Raw: c.Text(names[len(names)-1])}
	if len(names) > 1 {
		imp.Alias = c.Text(names[0])
	} else if alias := c.FieldText(node, "name"); alias != "" && alias != imp.Raw {
		imp.Alias = alias
	}
	return []Import{imp}
}

// csharpHeritage splits the base list by the I-prefix naming convention; the
// graph later reclassifies bases that resolve to interfaces.
func csharpHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	bases := childOfKind(node, "base_list")
	if bases == nil {
		return
	}
	for i, name := range c.typeNames(bases) {
		switch {
		case looksLikeInterfaceName(name):
			t.Implements = append(t.Implements, name)
		case i == 0 && t.Kind == TypeClass:
			t.Extends = append(t.Extends, name)
		case t.Kind == TypeInterface:
			t.Extends = append(t.Extends, name)
		default:
			t.Implements = append(t.Implements, name)
		}
	}
}

func looksLikeInterfaceName(name string) bool {
	r := []rune(name)
	return len(r) > 1 && r[0] == 'I' && unicode.IsUpper(r[1])
}

func csharpFields(c *FileContext, node *sitter.Node) []Field {
	body := node.ChildByFieldName("body")
	var fields []Field
	for _, member := range namedChildren(body) {
		switch member.Kind() {
		case "field_declaration":
			decl := childOfKind(member, "variable_declaration")
			typ := normalizeType(c.FieldText(decl, "type"))
			for _, v := range namedChildren(decl) {
				if v.Kind() != "variable_declarator" {
					continue
				}
				name := c.FieldText(v, "name")
				if name == "" {
					if id := firstIdentifier(v); id != nil {
						name = c.Text(id)
					}
				}
				fields = append(fields, Field{Name: name, Type: typ})
			}
		case "property_declaration":
			fields = append(fields, Field{
				Name: c.FieldText(member, "name"),
				Type: normalizeType(c.FieldText(member, "type")),
			})
		case "enum_member_declaration":
			fields = append(fields, Field{Name: c.FieldText(member, "name")})
		}
	}
	for i := range fields {
		fields[i].Name = strings.TrimSpace(fields[i].Name)
	}
	return fields
}
