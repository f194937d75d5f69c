package parser

import (
	"testing"
)

func functionHashOf(t *testing.T, p *Parser, path, code, name string) string {
	t.Helper()
	res := analyze(t, p, path, code)
	fn := findFunction(res, name)
	if fn == nil {
		t.Fatalf("function %s not found in %s", name, path)
	}
	return fn.FunctionHash
}

func TestFunctionHashIgnoresNamesAndWhitespace(t *testing.T) {
	p := newTestParser(t)
	a := functionHashOf(t, p, "a.ts", "function add(a,b){return a+b;}", "add")
	b := functionHashOf(t, p, "b.ts", "function add(x,y){ return x + y; }", "add")
	c := functionHashOf(t, p, "c.ts", "function add(a,b){return a-b;}", "add")

	if a == "" {
		t.Fatal("Expected non-empty hash")
	}
	if a != b {
		t.Errorf("Expected renamed/reformatted function to hash equally: %s != %s", a, b)
	}
	if a == c {
		t.Error("Expected a different operator to change the hash")
	}
}

func TestFunctionHashIgnoresComments(t *testing.T) {
	p := newTestParser(t)
	plain := functionHashOf(t, p, "a.py", "def f(x):\n    return x + 1\n", "f")
	commented := functionHashOf(t, p, "b.py", "def f(x):\n    # bump\n    return x + 1  # done\n", "f")
	if plain != commented {
		t.Errorf("Expected comments to be ignored: %s != %s", plain, commented)
	}
}

func TestFunctionHashLiteralTypes(t *testing.T) {
	p := newTestParser(t)
	one := functionHashOf(t, p, "a.go", "package a\nfunc f() int { return 1 }\n", "f")
	two := functionHashOf(t, p, "b.go", "package a\nfunc f() int { return 2 }\n", "f")
	str := functionHashOf(t, p, "c.go", "package a\nfunc f() string { return \"x\" }\n", "f")

	if one != two {
		t.Error("Expected literals of the same type to hash equally")
	}
	if one == str {
		t.Error("Expected literal type change to alter the hash")
	}
}

func TestSignatureHash(t *testing.T) {
	base := SignatureHash([]Param{{Name: "a", Type: "int"}, {Name: "b", Type: "string"}}, "bool")
	renamed := SignatureHash([]Param{{Name: "x", Type: "int"}, {Name: "y", Type: "string"}}, "bool")
	reordered := SignatureHash([]Param{{Name: "b", Type: "string"}, {Name: "a", Type: "int"}}, "bool")
	retyped := SignatureHash([]Param{{Name: "a", Type: "int64"}, {Name: "b", Type: "string"}}, "bool")
	returns := SignatureHash([]Param{{Name: "a", Type: "int"}, {Name: "b", Type: "string"}}, "error")

	if base != renamed {
		t.Error("Expected parameter names to be ignored")
	}
	if base != reordered {
		t.Error("Expected parameter order to be ignored")
	}
	if base == retyped {
		t.Error("Expected parameter type change to alter the hash")
	}
	if base == returns {
		t.Error("Expected return type change to alter the hash")
	}
	if SignatureHash(nil, "") != SignatureHash([]Param{}, "") {
		t.Error("Expected nil and empty params to hash equally")
	}
	if SignatureHash([]Param{{Name: "a"}}, "") == SignatureHash(nil, "") {
		t.Error("Expected untyped parameter to count")
	}
}

func TestSignatureHashFromSource(t *testing.T) {
	p := newTestParser(t)
	res := analyze(t, p, "a.ts", `
function one(a: number, b: string): boolean { return true; }
function two(s: string, n: number): boolean { return false; }
function three(a: number, b: number): boolean { return true; }
`)
	one, two, three := findFunction(res, "one"), findFunction(res, "two"), findFunction(res, "three")
	if one == nil || two == nil || three == nil {
		t.Fatal("Expected all three functions")
	}
	if one.SignatureHash != two.SignatureHash {
		t.Error("Expected same multiset of types to share a signature hash")
	}
	if one.SignatureHash == three.SignatureHash {
		t.Error("Expected differing types to change the signature hash")
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	p := newTestParser(t)
	code := `
class A:
    def m(self, v):
        return helper(v).strip()

def helper(v):
    return str(v)
`
	first := analyze(t, p, "m.py", code)
	second := analyze(t, p, "m.py", code)

	if len(first.Functions) != len(second.Functions) {
		t.Fatalf("function count differs: %d vs %d", len(first.Functions), len(second.Functions))
	}
	for i := range first.Functions {
		f, s := first.Functions[i], second.Functions[i]
		if f.NodeID != s.NodeID || f.FunctionHash != s.FunctionHash || f.SignatureHash != s.SignatureHash {
			t.Errorf("function %d differs: %+v vs %+v", i, f, s)
		}
	}
	if len(first.Analysis.Nodes) != len(second.Analysis.Nodes) {
		t.Error("Expected identical node maps")
	}
	for id := range first.Analysis.Nodes {
		if _, ok := second.Analysis.Nodes[id]; !ok {
			t.Errorf("node %s missing on second run", id)
		}
	}
}

func TestFunctionHashKeepsTypeNames(t *testing.T) {
	p := newTestParser(t)
	goInt := functionHashOf(t, p, "a.go", "package a\nfunc F(a int) int { return g(a) }\n", "F")
	goRenamed := functionHashOf(t, p, "b.go", "package a\nfunc F(n int) int { return g(n) }\n", "F")
	goString := functionHashOf(t, p, "c.go", "package a\nfunc F(a string) int { return g(a) }\n", "F")
	if goInt != goRenamed {
		t.Error("Expected parameter renames to hash equally")
	}
	if goInt == goString {
		t.Error("Expected a parameter type change to alter the hash")
	}

	javaA := functionHashOf(t, p, "A.java", "class A { int f(Foo x) { return x.size(); } }", "A.f")
	javaB := functionHashOf(t, p, "B.java", "class A { int f(Bar x) { return x.size(); } }", "A.f")
	if javaA == javaB {
		t.Error("Expected a class-typed parameter change to alter the hash")
	}
}
