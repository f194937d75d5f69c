package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func pythonSpec() *LanguageSpec {
	return &LanguageSpec{
		Language:        LangPython,
		ConstructorName: "__init__",
		SelfTokens:      []string{"self", "cls"},
		ImportKinds:     []string{"import_statement", "import_from_statement"},
		ClassKinds: map[string]TypeKind{
			"class_definition": TypeClass,
		},
		FunctionKinds: []string{"function_definition"},
		CallKinds: map[string]CallShape{
			"call": {Callee: "function"},
		},
		MemberKinds: map[string]MemberShape{
			"attribute": {Object: "object", Property: "attribute"},
		},
		TransparentKinds: []string{"parenthesized_expression", "await"},
		ParameterKinds:   []string{"parameters", "lambda_parameters"},
		AssignmentKinds: map[string]AssignShape{
			"assignment": {Name: "left", Value: "right"},
		},
		LambdaKinds:  []string{"lambda"},
		ReturnFields: []string{"return_type"},
		Imports:      pythonImports,
		Classify:     pythonClassify,
		Heritage:     pythonHeritage,
		Fields:       pythonFields,
	}
}

func pythonImports(c *FileContext, node *sitter.Node) []Import {
	switch node.Kind() {
	case "import_statement":
		var out []Import
		for _, child := range namedChildren(node) {
			switch child.Kind() {
			case "dotted_name":
				out = append(out, Import{Raw: c.Text(child)})
			case "aliased_import":
				out = append(out, Import{
					Raw:   c.FieldText(child, "name"),
					Alias: c.FieldText(child, "alias"),
				})
			}
		}
		return out
	case "import_from_statement":
		module := node.ChildByFieldName("module_name")
		if module == nil {
			return nil
		}
		modText := strings.TrimSpace(c.Text(module))
		var names []string
		for _, child := range namedChildren(node) {
			if child.StartByte() == module.StartByte() {
				continue
			}
			switch child.Kind() {
			case "dotted_name":
				names = append(names, c.Text(child))
			case "aliased_import":
				names = append(names, c.FieldText(child, "name"))
			case "wildcard_import":
				names = append(names, "*")
			}
		}
		// `from . import a, b` imports sibling modules, not names of a package.
		if strings.Trim(modText, ".") == "" {
			out := make([]Import, 0, len(names))
			for _, name := range names {
				if name == "*" {
					out = append(out, Import{Raw: modText})
					continue
				}
				out = append(out, Import{Raw: modText + name, Names: []string{name}})
			}
			return out
		}
		return []Import{{Raw: modText, Names: names}}
	}
	return nil
}

var pythonInterfaceBases = map[string]bool{
	"ABC":      true,
	"Protocol": true,
}

func pythonClassify(c *FileContext, node *sitter.Node) (TypeKind, bool) {
	for _, base := range pythonBases(c, node) {
		if pythonInterfaceBases[base] {
			return TypeInterface, true
		}
		if base == "Enum" || base == "IntEnum" || base == "StrEnum" {
			return TypeEnum, true
		}
	}
	return TypeClass, true
}

func pythonBases(c *FileContext, node *sitter.Node) []string {
	supers := node.ChildByFieldName("superclasses")
	var out []string
	for _, arg := range namedChildren(supers) {
		switch arg.Kind() {
		case "identifier", "attribute", "subscript":
			if name := simpleTypeName(c.Text(arg)); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func pythonHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	for _, base := range pythonBases(c, node) {
		if pythonInterfaceBases[base] || base == "object" {
			continue
		}
		t.Extends = append(t.Extends, base)
	}
}

// pythonFields collects class-level assignments (`x: int = 0`).
func pythonFields(c *FileContext, node *sitter.Node) []Field {
	var fields []Field
	for _, stmt := range namedChildren(node.ChildByFieldName("body")) {
		if stmt.Kind() != "expression_statement" {
			continue
		}
		for _, expr := range namedChildren(stmt) {
			if expr.Kind() != "assignment" {
				continue
			}
			left := expr.ChildByFieldName("left")
			if left == nil || left.Kind() != "identifier" {
				continue
			}
			fields = append(fields, Field{
				Name: c.Text(left),
				Type: normalizeType(c.FieldText(expr, "type")),
			})
		}
	}
	return fields
}
