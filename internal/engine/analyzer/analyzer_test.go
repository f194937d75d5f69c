package analyzer

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/parser"
	"codegraph/internal/engine/resolver"
	"codegraph/internal/shared/util"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	registry, err := parser.NewGrammarRegistry(nil)
	require.NoError(t, err)
	return New(parser.NewParser(registry), resolver.NewCache(nil), opts...)
}

func write(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		require.NoError(t, util.WriteFileWithDirs(filepath.Join(root, filepath.FromSlash(rel)), []byte(content), 0o644))
	}
}

func TestAnalyzeSourceFileResolvesImports(t *testing.T) {
	root := t.TempDir()
	write(t, root, map[string]string{
		"package.json": `{"dependencies": {"react": "18"}}`,
		"src/a.ts":     "import { b } from './b';\nimport React from 'react';\nimport x from './missing';\nexport function a() { return b(); }\n",
		"src/b.ts":     "export function b() { return 1; }\n",
	})
	a := newAnalyzer(t)

	res, err := a.AnalyzeSourceFile(context.Background(), root, filepath.Join(root, "src", "a.ts"))
	require.NoError(t, err)
	require.NotNil(t, res)

	fa := res.Analysis
	assert.Equal(t, "src/a.ts", fa.RelativePath)
	require.Len(t, fa.ResolvedImports, 3)
	assert.Equal(t, util.NormalizeAbsPath(filepath.Join(root, "src", "b.ts")), fa.ResolvedImports[0].Normalized)
	assert.True(t, fa.ResolvedImports[1].External)
	assert.Equal(t, "react", fa.ResolvedImports[1].Normalized)
	assert.False(t, fa.ResolvedImports[2].Resolved)
	assert.Equal(t, "./missing", fa.ResolvedImports[2].Normalized)

	assert.Equal(t, []string{
		util.NormalizeAbsPath(filepath.Join(root, "src", "b.ts")),
		"react",
		"./missing",
	}, fa.Imports)
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "a", res.Functions[0].Name)
}

func TestAnalyzeSourceFileManyImports(t *testing.T) {
	root := t.TempDir()
	var src strings.Builder
	files := map[string]string{}
	for i := 0; i < 45; i++ {
		fmt.Fprintf(&src, "import m%d\n", i)
		files[fmt.Sprintf("m%d.py", i)] = "x = 1\n"
	}
	files["main.py"] = src.String()
	files["requirements.txt"] = "requests\n"
	write(t, root, files)

	a := newAnalyzer(t, WithImportConcurrency(4))
	res, err := a.AnalyzeSourceFile(context.Background(), root, filepath.Join(root, "main.py"))
	require.NoError(t, err)
	require.Len(t, res.Analysis.ResolvedImports, 45)
	for i, link := range res.Analysis.ResolvedImports {
		assert.Equal(t, fmt.Sprintf("m%d", i), link.Original)
		assert.True(t, link.Resolved, link.Original)
		assert.Equal(t, util.NormalizeAbsPath(filepath.Join(root, fmt.Sprintf("m%d.py", i))), link.Normalized)
	}
}

func TestAnalyzeSourceFileTooLarge(t *testing.T) {
	root := t.TempDir()
	write(t, root, map[string]string{"big.go": "package big\n\nfunc F() {}\n"})
	a := newAnalyzer(t, WithMaxFileSize(8))

	res, err := a.AnalyzeSourceFile(context.Background(), root, filepath.Join(root, "big.go"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileTooLarge))
	assert.False(t, errors.IsFatal(err))
	require.NotNil(t, res)
	assert.Empty(t, res.Analysis.Defines)
	assert.Empty(t, res.Functions)
	assert.Equal(t, string(errors.CodeFileTooLarge), res.Analysis.Skipped)
	assert.Equal(t, errors.StageRead, errors.ContextValue(err, errors.CtxStage))
}

func TestAnalyzeSourceFileUnreadable(t *testing.T) {
	root := t.TempDir()
	a := newAnalyzer(t)

	res, err := a.AnalyzeSourceFile(context.Background(), root, filepath.Join(root, "gone.py"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileUnreadable))
	require.NotNil(t, res)
	assert.Empty(t, res.Analysis.Calls)
}

func TestAnalyzeSourceFileUnsupported(t *testing.T) {
	root := t.TempDir()
	write(t, root, map[string]string{"notes.txt": "hello"})
	a := newAnalyzer(t)

	res, err := a.AnalyzeSourceFile(context.Background(), root, filepath.Join(root, "notes.txt"))
	assert.Nil(t, res)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedLanguage))
	assert.Equal(t, util.NormalizeAbsPath(filepath.Join(root, "notes.txt")), errors.ContextValue(err, errors.CtxPath))
}

func TestAnalyzeSourceFileSyntaxErrors(t *testing.T) {
	root := t.TempDir()
	write(t, root, map[string]string{"broken.py": "import os\ndef ok():\n    return 1\n\ndef broken(:\n"})
	a := newAnalyzer(t)

	res, err := a.AnalyzeSourceFile(context.Background(), root, filepath.Join(root, "broken.py"))
	require.NoError(t, err)
	assert.True(t, res.Analysis.HasErrors)
	assert.Contains(t, res.Analysis.Imports, "os")
}
