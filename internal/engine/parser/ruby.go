package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func rubySpec() *LanguageSpec {
	return &LanguageSpec{
		Language:        LangRuby,
		ConstructorName: "initialize",
		SelfTokens:      []string{"self"},
		ClassKinds: map[string]TypeKind{
			"class":  TypeClass,
			"module": TypeInterface,
		},
		FunctionKinds: []string{"method", "singleton_method"},
		CallKinds: map[string]CallShape{
			"call": {Receiver: "receiver", Name: "method"},
		},
		MemberKinds: map[string]MemberShape{
			"scope_resolution": {Object: "scope", Property: "name"},
		},
		TransparentKinds: []string{"parenthesized_statements"},
		ParameterKinds:   []string{"method_parameters", "lambda_parameters", "block_parameters"},
		AssignmentKinds: map[string]AssignShape{
			"assignment": {Name: "left", Value: "right"},
		},
		LambdaKinds: []string{"lambda"},
		Heritage:    rubyHeritage,
		OnCall:      rubyOnCall,
	}
}

func rubyHeritage(c *FileContext, node *sitter.Node, t *TypeAnalysis) {
	if super := node.ChildByFieldName("superclass"); super != nil {
		for _, child := range namedChildren(super) {
			if name := simpleTypeName(c.Text(child)); name != "" {
				t.Extends = append(t.Extends, name)
			}
		}
	}
}

var rubyMixins = map[string]bool{"include": true, "extend": true, "prepend": true}

var rubyAccessors = map[string]bool{"attr_accessor": true, "attr_reader": true, "attr_writer": true}

// rubyOnCall handles require/require_relative, mixins, attribute macros and
// Foo.new constructor calls.
func rubyOnCall(c *FileContext, node *sitter.Node, call *CallRecord) bool {
	if call.Receiver == "" {
		switch {
		case call.Name == "require" || call.Name == "load":
			if target, ok := c.firstStringArg(node); ok {
				c.addImport(node, Import{Raw: target})
				return true
			}
		case call.Name == "require_relative":
			if target, ok := c.firstStringArg(node); ok {
				if !strings.HasPrefix(target, ".") {
					target = "./" + target
				}
				c.addImport(node, Import{Raw: target})
				return true
			}
		case rubyMixins[call.Name]:
			if t := c.currentType(); t != nil {
				for _, arg := range namedChildren(node.ChildByFieldName("arguments")) {
					if name := simpleTypeName(c.Text(arg)); isTypeLikeName(name) {
						t.Implements = append(t.Implements, name)
					}
				}
				return true
			}
		case rubyAccessors[call.Name]:
			if t := c.currentType(); t != nil {
				for _, arg := range namedChildren(node.ChildByFieldName("arguments")) {
					name := strings.TrimPrefix(strings.TrimSpace(c.Text(arg)), ":")
					if name != "" {
						t.Fields = append(t.Fields, Field{Name: name})
					}
				}
				return true
			}
		}
		return false
	}
	if call.Name == "new" && len(call.Chain) == 2 && isTypeLikeName(call.Receiver) &&
		strings.ToUpper(call.Receiver[:1]) == call.Receiver[:1] {
		call.Constructor = true
		call.ClassName = call.Receiver
	}
	return false
}
