package parser

import (
	"sort"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"github.com/zeebo/xxh3"
)

// FunctionHash fingerprints a construct from its normalized token stream:
// identifiers collapse to one token, literals keep only their type, comments
// and whitespace vanish. Type names are not identifiers here, so changing a
// parameter from int to string changes the hash.
func FunctionHash(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	writeNormalized(&b, node, source)
	return hashString(b.String())
}

// SignatureHash fingerprints parameter types and the return type. Parameter
// names are ignored and the types are sorted, so reordering parameters of
// different types yields the same hash.
func SignatureHash(params []Param, returnType string) string {
	types := make([]string, 0, len(params))
	for _, p := range params {
		t := normalizeType(p.Type)
		if t == "" {
			t = "any"
		}
		types = append(types, t)
	}
	sort.Strings(types)
	ret := normalizeType(returnType)
	if ret == "" {
		ret = "none"
	}
	return hashString(strings.Join(types, ",") + "->" + ret)
}

func hashString(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}

func writeNormalized(b *strings.Builder, node *sitter.Node, source []byte) {
	kind := node.Kind()
	if isCommentKind(kind) {
		return
	}
	if tok := literalToken(kind); tok != "" {
		b.WriteString(tok)
		b.WriteByte(' ')
		return
	}
	if isIdentifierKind(kind) {
		b.WriteString("ID ")
		return
	}
	if node.ChildCount() == 0 {
		b.WriteString(kind)
		if node.IsNamed() {
			start, end := node.StartByte(), node.EndByte()
			if start <= end && end <= uint(len(source)) {
				b.WriteByte('=')
				b.Write(source[start:end])
			}
		}
		b.WriteByte(' ')
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			writeNormalized(b, child, source)
		}
	}
}

func isCommentKind(kind string) bool {
	return strings.Contains(kind, "comment")
}

var identifierKinds = map[string]bool{
	"identifier":        true,
	"name":              true,
	"variable_name":     true,
	"constant":          true,
	"instance_variable": true,
	"class_variable":    true,
	"global_variable":   true,
	"simple_identifier": true,
}

func isIdentifierKind(kind string) bool {
	if strings.HasSuffix(kind, "type_identifier") {
		return false
	}
	return identifierKinds[kind] || strings.HasSuffix(kind, "_identifier")
}

// literalToken returns the typed placeholder for literal kinds, or "".
func literalToken(kind string) string {
	switch kind {
	case "true", "false", "boolean", "boolean_literal":
		return "BOOL"
	case "null", "nil", "none", "None", "null_literal", "undefined":
		return "NULL"
	case "number", "integer", "float", "decimal", "rune_literal", "char_literal", "character_literal":
		return "NUM"
	}
	switch {
	case strings.Contains(kind, "string") || kind == "heredoc_body" || kind == "template_literal":
		return "STR"
	case strings.HasSuffix(kind, "integer_literal"), strings.HasSuffix(kind, "float_literal"),
		strings.HasSuffix(kind, "floating_point_literal"), kind == "int_literal", kind == "real_literal",
		kind == "imaginary_literal":
		return "NUM"
	}
	return ""
}
