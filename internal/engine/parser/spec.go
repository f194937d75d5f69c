package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// CallShape describes where a call node keeps its parts. Function-style calls
// set Callee; method-style calls set Receiver and Name.
type CallShape struct {
	Callee   string
	Receiver string
	Name     string
}

// MemberShape describes a member-access node.
type MemberShape struct {
	Object   string
	Property string
}

// AssignShape describes an assignment-like node whose value may be a lambda.
type AssignShape struct {
	Name  string
	Value string
}

// NodeHandler runs for a node kind during the single pass.
type NodeHandler func(c *FileContext, node *sitter.Node)

// LanguageSpec is the per-language hook table consulted by the single-pass
// walk. Kind sets are compiled once into a QuerySet.
type LanguageSpec struct {
	Language        Language
	ConstructorName string
	SelfTokens      []string

	ImportKinds      []string
	ClassKinds       map[string]TypeKind
	ImplKinds        map[string]string // scope-only kinds -> field naming the owner type
	FunctionKinds    []string
	CallKinds        map[string]CallShape
	ConstructorKinds map[string]string // kind -> field naming the constructed type
	MemberKinds      map[string]MemberShape
	TransparentKinds []string
	ParameterKinds   []string
	AssignmentKinds  map[string]AssignShape
	LambdaKinds      []string
	ReturnFields     []string

	Imports  func(c *FileContext, node *sitter.Node) []Import
	Classify func(c *FileContext, node *sitter.Node) (TypeKind, bool)
	Heritage func(c *FileContext, node *sitter.Node, t *TypeAnalysis)
	Fields   func(c *FileContext, node *sitter.Node) []Field
	Params   func(c *FileContext, node *sitter.Node) []Param
	Owner    func(c *FileContext, node *sitter.Node) string
	OnCall   func(c *FileContext, node *sitter.Node, call *CallRecord) bool
	Handlers map[string]NodeHandler

	queries QuerySet
	sets    kindSets
}

type kindSets struct {
	functions   map[string]bool
	transparent map[string]bool
	params      map[string]bool
	lambdas     map[string]bool
	self        map[string]bool
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func (s *LanguageSpec) compile() *LanguageSpec {
	s.sets = kindSets{
		functions:   toSet(s.FunctionKinds),
		transparent: toSet(s.TransparentKinds),
		params:      toSet(s.ParameterKinds),
		lambdas:     toSet(s.LambdaKinds),
		self:        toSet(s.SelfTokens),
	}
	s.queries = compileQueries(s)
	return s
}

var languageSpecs = map[Language]*LanguageSpec{
	LangTypeScript: typescriptSpec(LangTypeScript).compile(),
	LangTSX:        typescriptSpec(LangTSX).compile(),
	LangJavaScript: javascriptSpec().compile(),
	LangPython:     pythonSpec().compile(),
	LangRuby:       rubySpec().compile(),
	LangRust:       rustSpec().compile(),
	LangPHP:        phpSpec().compile(),
	LangJava:       javaSpec().compile(),
	LangCSharp:     csharpSpec().compile(),
	LangGo:         goSpec().compile(),
}

// SpecFor returns the hook table for lang.
func SpecFor(lang Language) (*LanguageSpec, bool) {
	s, ok := languageSpecs[lang]
	return s, ok
}

// ConstructorName returns the conventional constructor method name for lang.
// An empty result means constructors are named after their class.
func ConstructorName(lang Language) string {
	if s, ok := languageSpecs[lang]; ok {
		return s.ConstructorName
	}
	return ""
}
