package parser

import (
	"testing"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	registry, err := NewGrammarRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewParser(registry)
}

func analyze(t *testing.T, p *Parser, path, code string) *FileResult {
	t.Helper()
	res, err := p.Analyze("/repo/"+path, path, []byte(code))
	if err != nil {
		t.Fatalf("Analyze(%s) failed: %v", path, err)
	}
	return res
}

func findFunction(res *FileResult, fullName string) *FunctionAnalysis {
	for _, fn := range res.Functions {
		if fn.FullName() == fullName {
			return fn
		}
	}
	return nil
}

func findType(res *FileResult, name string) *TypeAnalysis {
	for _, typ := range res.Types {
		if typ.Name == name {
			return typ
		}
	}
	return nil
}

func rawImports(res *FileResult) map[string]Import {
	out := make(map[string]Import)
	for _, imp := range res.Analysis.RawImports {
		out[imp.Raw] = imp
	}
	return out
}

func hasCall(calls []CallRecord, name string) (CallRecord, bool) {
	for _, call := range calls {
		if call.Name == name {
			return call, true
		}
	}
	return CallRecord{}, false
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestTypeScriptExtraction(t *testing.T) {
	p := newTestParser(t)
	code := `
import { helper } from './util';
import express from 'express';

export class Service extends Base implements Runner {
  private count: number = 0;

  constructor(private name: string) {
    super();
  }

  run(input: string): number {
    this.log(input);
    return helper(input).length;
  }

  log(msg: string) {
    console.log(msg);
  }
}

export function foo(a: number, b: number): number {
  return a + b;
}

const bar = (x: string) => x.trim();
`
	res := analyze(t, p, "src/service.ts", code)

	imports := rawImports(res)
	if imp, ok := imports["./util"]; !ok || !contains(imp.Names, "helper") {
		t.Errorf("Expected ./util import naming helper, got %+v", res.Analysis.RawImports)
	}
	if _, ok := imports["express"]; !ok {
		t.Error("Expected express import")
	}

	svc := findType(res, "Service")
	if svc == nil {
		t.Fatal("Expected Service type")
	}
	if svc.Kind != TypeClass {
		t.Errorf("Expected class kind, got %s", svc.Kind)
	}
	if !contains(svc.Extends, "Base") || !contains(svc.Implements, "Runner") {
		t.Errorf("Expected extends Base / implements Runner, got %v / %v", svc.Extends, svc.Implements)
	}
	if len(svc.Fields) == 0 || svc.Fields[0].Name != "count" {
		t.Errorf("Expected field count, got %+v", svc.Fields)
	}

	run := findFunction(res, "Service.run")
	if run == nil {
		t.Fatal("Expected method Service.run")
	}
	if run.ReturnType != "number" {
		t.Errorf("Expected return type number, got %q", run.ReturnType)
	}
	if len(run.Params) != 1 || run.Params[0].Name != "input" || run.Params[0].Type != "string" {
		t.Errorf("Unexpected params %+v", run.Params)
	}
	logCall, ok := hasCall(run.Calls, "log")
	if !ok || !logCall.SelfCall || logCall.ClassName != "Service" {
		t.Errorf("Expected self call to log attributed to Service, got %+v", logCall)
	}
	if _, ok := hasCall(run.Calls, "helper"); !ok {
		t.Error("Expected call to helper")
	}

	if findFunction(res, "Service.constructor") == nil {
		t.Error("Expected constructor method")
	}
	if foo := findFunction(res, "foo"); foo == nil || len(foo.Params) != 2 {
		t.Errorf("Expected foo with two params, got %+v", foo)
	}
	bar := findFunction(res, "bar")
	if bar == nil {
		t.Fatal("Expected arrow function assigned to bar")
	}
	if trim, ok := hasCall(bar.Calls, "trim"); !ok || trim.Receiver != "x" {
		t.Errorf("Expected x.trim() call inside bar, got %+v", bar.Calls)
	}
	if !contains(res.Analysis.ClassNames, "Service") {
		t.Errorf("Expected classNames to include Service, got %v", res.Analysis.ClassNames)
	}
	if !contains(res.Analysis.Defines, "Service.run") || !contains(res.Analysis.Defines, "foo") {
		t.Errorf("Unexpected defines %v", res.Analysis.Defines)
	}
}

func TestPythonExtraction(t *testing.T) {
	p := newTestParser(t)
	code := `
import os
from .models import User
from . import helpers

class Repo(Base):
    limit: int = 10

    def __init__(self, db):
        self.db = db

    def get(self, key: str) -> User:
        return self.db.fetch(key)

def handler(event):
    repo = Repo(event)
    return repo.get("x")
`
	res := analyze(t, p, "app/repo.py", code)

	imports := rawImports(res)
	for _, want := range []string{"os", ".models", ".helpers"} {
		if _, ok := imports[want]; !ok {
			t.Errorf("Expected import %q, got %+v", want, res.Analysis.RawImports)
		}
	}

	repo := findType(res, "Repo")
	if repo == nil || !contains(repo.Extends, "Base") {
		t.Fatalf("Expected Repo extending Base, got %+v", repo)
	}
	if len(repo.Fields) != 1 || repo.Fields[0].Name != "limit" || repo.Fields[0].Type != "int" {
		t.Errorf("Expected class field limit:int, got %+v", repo.Fields)
	}

	get := findFunction(res, "Repo.get")
	if get == nil {
		t.Fatal("Expected Repo.get")
	}
	if get.ReturnType != "User" {
		t.Errorf("Expected return type User, got %q", get.ReturnType)
	}
	if len(get.Params) != 2 || get.Params[1].Name != "key" || get.Params[1].Type != "str" {
		t.Errorf("Unexpected params %+v", get.Params)
	}
	fetch, ok := hasCall(get.Calls, "fetch")
	if !ok {
		t.Fatal("Expected fetch call")
	}
	if len(fetch.Chain) != 3 || fetch.Chain[0].Name != "self" || fetch.Chain[2].Kind != SegmentFunction {
		t.Errorf("Unexpected chain %+v", fetch.Chain)
	}

	if findFunction(res, "Repo.__init__") == nil {
		t.Error("Expected Repo.__init__")
	}
	handler := findFunction(res, "handler")
	if handler == nil {
		t.Fatal("Expected handler")
	}
	if _, ok := hasCall(handler.Calls, "Repo"); !ok {
		t.Error("Expected Repo(...) instantiation call")
	}
}

func TestGoExtraction(t *testing.T) {
	p := newTestParser(t)
	code := `package svc

import (
	"fmt"
	str "strings"
)

type Store interface {
	Get(key string) (string, error)
}

type memStore struct {
	data map[string]string
}

func (m *memStore) Get(key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return str.ToUpper(v), nil
}

func Join(a, b string) string { return a + b }
`
	res := analyze(t, p, "svc/store.go", code)

	imports := rawImports(res)
	if _, ok := imports["fmt"]; !ok {
		t.Error("Expected fmt import")
	}
	if imp, ok := imports["strings"]; !ok || imp.Alias != "str" {
		t.Errorf("Expected aliased strings import, got %+v", imp)
	}

	store := findType(res, "Store")
	if store == nil || store.Kind != TypeInterface {
		t.Fatalf("Expected Store interface, got %+v", store)
	}
	mem := findType(res, "memStore")
	if mem == nil || mem.Kind != TypeClass {
		t.Fatalf("Expected memStore struct, got %+v", mem)
	}
	if len(mem.Fields) != 1 || mem.Fields[0].Name != "data" {
		t.Errorf("Expected data field, got %+v", mem.Fields)
	}

	if findFunction(res, "Store.Get") == nil {
		t.Error("Expected interface method Store.Get")
	}
	get := findFunction(res, "memStore.Get")
	if get == nil {
		t.Fatal("Expected method memStore.Get")
	}
	if len(get.Params) != 1 || get.Params[0].Type != "string" {
		t.Errorf("Expected receiver excluded from params, got %+v", get.Params)
	}
	if _, ok := hasCall(get.Calls, "Errorf"); !ok {
		t.Error("Expected fmt.Errorf call")
	}

	join := findFunction(res, "Join")
	if join == nil || len(join.Params) != 2 {
		t.Fatalf("Expected Join with two params, got %+v", join)
	}
	if join.Params[0].Type != "string" || join.Params[1].Type != "string" {
		t.Errorf("Expected grouped params to share a type, got %+v", join.Params)
	}
}

func TestJavaExtraction(t *testing.T) {
	p := newTestParser(t)
	code := `package com.acme;

import java.util.List;
import com.acme.util.*;

public class OrderService extends BaseService implements Service {
    private final List<Order> orders;

    public OrderService(List<Order> orders) {
        this.orders = orders;
    }

    public int total(int discount) {
        return compute(discount) + this.helper();
    }
}
`
	res := analyze(t, p, "src/main/java/com/acme/OrderService.java", code)

	imports := rawImports(res)
	for _, want := range []string{"java.util.List", "com.acme.util.*"} {
		if _, ok := imports[want]; !ok {
			t.Errorf("Expected import %q, got %+v", want, res.Analysis.RawImports)
		}
	}

	svc := findType(res, "OrderService")
	if svc == nil {
		t.Fatal("Expected OrderService")
	}
	if !contains(svc.Extends, "BaseService") || !contains(svc.Implements, "Service") {
		t.Errorf("Unexpected heritage %v / %v", svc.Extends, svc.Implements)
	}
	if len(svc.Fields) != 1 || svc.Fields[0].Name != "orders" {
		t.Errorf("Expected orders field, got %+v", svc.Fields)
	}

	total := findFunction(res, "OrderService.total")
	if total == nil {
		t.Fatal("Expected total method")
	}
	if total.ReturnType != "int" {
		t.Errorf("Expected int return, got %q", total.ReturnType)
	}
	if helper, ok := hasCall(total.Calls, "helper"); !ok || !helper.SelfCall {
		t.Errorf("Expected this.helper() self call, got %+v", total.Calls)
	}
	if findFunction(res, "OrderService.OrderService") == nil {
		t.Error("Expected constructor")
	}
}

func TestRubyPHPCSharpRustExtraction(t *testing.T) {
	p := newTestParser(t)

	rb := analyze(t, p, "lib/foo.rb", `
require 'json'
require_relative 'bar'

class Foo < Bar
  include Comparable

  def initialize(a)
    @a = a
  end

  def run
    helper(1)
  end
end
`)
	foo := findType(rb, "Foo")
	if foo == nil || !contains(foo.Extends, "Bar") || !contains(foo.Implements, "Comparable") {
		t.Errorf("Unexpected ruby type %+v", foo)
	}
	if findFunction(rb, "Foo.initialize") == nil || findFunction(rb, "Foo.run") == nil {
		t.Errorf("Expected ruby methods, got %d functions", len(rb.Functions))
	}
	rbImports := rawImports(rb)
	if _, ok := rbImports["json"]; !ok {
		t.Error("Expected require 'json'")
	}
	if _, ok := rbImports["./bar"]; !ok {
		t.Error("Expected require_relative as ./bar")
	}

	php := analyze(t, p, "src/UserService.php", `<?php
namespace App;

use App\Models\User;

class UserService extends Base implements Svc {
    public function find($id) {
        return $this->repo->find($id);
    }
}
`)
	if _, ok := rawImports(php)["App\\Models\\User"]; !ok {
		t.Errorf("Expected php use import, got %+v", php.Analysis.RawImports)
	}
	svc := findType(php, "UserService")
	if svc == nil || !contains(svc.Extends, "Base") || !contains(svc.Implements, "Svc") {
		t.Errorf("Unexpected php type %+v", svc)
	}
	if findFunction(php, "UserService.find") == nil {
		t.Error("Expected UserService.find")
	}

	cs := analyze(t, p, "Greeter.cs", `
using System.Text;

namespace Acme {
    public class Greeter : IGreeter {
        public string Greet(string name) {
            return Format(name);
        }
    }
}
`)
	greeter := findType(cs, "Greeter")
	if greeter == nil || !contains(greeter.Implements, "IGreeter") {
		t.Errorf("Unexpected c# type %+v", greeter)
	}
	if findFunction(cs, "Greeter.Greet") == nil {
		t.Error("Expected Greeter.Greet")
	}
	if _, ok := rawImports(cs)["System.Text"]; !ok {
		t.Error("Expected using System.Text")
	}

	rs := analyze(t, p, "src/lib.rs", `
use crate::a::{b, c::d as e};
mod util;

pub trait Shape {
    fn area(&self) -> f64;
}

pub struct Circle { r: f64 }

impl Shape for Circle {
    fn area(&self) -> f64 { 3.14 * self.r * self.r }
}
`)
	rsImports := rawImports(rs)
	for _, want := range []string{"crate::a::b", "crate::a::c::d", "self::util"} {
		if _, ok := rsImports[want]; !ok {
			t.Errorf("Expected rust import %q, got %+v", want, rs.Analysis.RawImports)
		}
	}
	if findFunction(rs, "Circle.area") == nil || findFunction(rs, "Shape.area") == nil {
		t.Error("Expected trait and impl methods")
	}
	if len(rs.Analysis.Relations) != 1 || rs.Analysis.Relations[0].Target != "Shape" {
		t.Errorf("Expected impl relation Circle->Shape, got %+v", rs.Analysis.Relations)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	p := newTestParser(t)
	if _, err := p.Analyze("/repo/readme.md", "readme.md", []byte("# hi")); err == nil {
		t.Fatal("Expected error for unsupported extension")
	}
}

func TestSyntaxErrorsYieldPartialResults(t *testing.T) {
	p := newTestParser(t)
	garbage := "def class ((( {{{ function fn func <?php \"unterminated\n}}} end ]] ::"
	for _, ext := range p.Registry().Extensions() {
		res, err := p.Analyze("/repo/broken"+ext, "broken"+ext, []byte(garbage))
		if err != nil {
			t.Errorf("%s: Expected partial result, got error %v", ext, err)
			continue
		}
		if res == nil || res.Analysis == nil {
			t.Errorf("%s: Expected non-nil analysis", ext)
		}
	}
}

func TestPartialAnalysisKeepsValidFunctions(t *testing.T) {
	p := newTestParser(t)
	res := analyze(t, p, "a.ts", `
function ok(a: number) { return a; }
function broken( {
`)
	if !res.Analysis.HasErrors {
		t.Error("Expected HasErrors for malformed source")
	}
	if findFunction(res, "ok") == nil {
		t.Error("Expected the well-formed function to survive")
	}
}

func TestChainedCallsKeepDistinctIDs(t *testing.T) {
	p := newTestParser(t)

	java := analyze(t, p, "p/B.java", `package p;

public class B {
    public int b() {
        return new C().c();
    }
}
`)
	fn := findFunction(java, "B.b")
	if fn == nil {
		t.Fatal("B.b not found")
	}
	ctor, ok := hasCall(fn.Calls, "C")
	if !ok || !ctor.Constructor {
		t.Fatalf("expected constructor call to C, got %+v", fn.Calls)
	}
	method, ok := hasCall(fn.Calls, "c")
	if !ok {
		t.Fatalf("expected chained call to c, got %+v", fn.Calls)
	}
	if ctor.NodeID == method.NodeID {
		t.Fatalf("chained calls share id %s", ctor.NodeID)
	}
	if java.Analysis.Nodes[ctor.NodeID] == nil || java.Analysis.Nodes[method.NodeID] == nil {
		t.Fatal("both calls should be recorded as analysis nodes")
	}

	ts := analyze(t, p, "src/q.ts", "function run() {\n  return load().then(done);\n}\n")
	run := findFunction(ts, "run")
	if run == nil {
		t.Fatal("run not found")
	}
	load, _ := hasCall(run.Calls, "load")
	then, ok := hasCall(run.Calls, "then")
	if !ok || load.NodeID == then.NodeID {
		t.Fatalf("expected distinct ids for load and then, got %+v", run.Calls)
	}

	// A plain receiver call still keys by its first byte.
	plain := analyze(t, p, "src/r.ts", "x.y();\n")
	call, ok := hasCall(plain.Analysis.Calls, "y")
	if !ok || call.NodeID != "src/r.ts#0" {
		t.Fatalf("expected src/r.ts#0, got %+v", plain.Analysis.Calls)
	}
}
