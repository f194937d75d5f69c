package resolver

import (
	"bufio"
	"codegraph/internal/engine/parser"
	"encoding/xml"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DotnetResolver reads .csproj package references and maps `using`
// namespaces to the directories whose files declare them.
type DotnetResolver struct {
	project
	rootNamespaces []string
	namespaceDirs  map[string][]string
}

func NewDotnetResolver() *DotnetResolver {
	return &DotnetResolver{}
}

func (r *DotnetResolver) Name() string { return "dotnet" }

func (r *DotnetResolver) CanHandle(root string) bool {
	return len(csprojFiles(root)) > 0
}

func (r *DotnetResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangCSharp
}

// csprojFiles finds project files at the root or one directory below, the
// usual layout for a solution.
func csprojFiles(root string) []string {
	files := globMarker(root, "*.csproj")
	files = append(files, globMarker(root, filepath.Join("*", "*.csproj"))...)
	sort.Strings(files)
	return files
}

type csproj struct {
	PropertyGroups []struct {
		RootNamespace string `xml:"RootNamespace"`
		AssemblyName  string `xml:"AssemblyName"`
	} `xml:"PropertyGroup"`
	ItemGroups []struct {
		Packages []struct {
			Include string `xml:"Include,attr"`
		} `xml:"PackageReference"`
	} `xml:"ItemGroup"`
}

var csharpNamespaceDecl = regexp.MustCompile(`^\s*namespace\s+([A-Za-z_][A-Za-z0-9_.]*)`)

func (r *DotnetResolver) Initialize(root string) error {
	r.project = newProject(root)
	r.namespaceDirs = make(map[string][]string)

	for _, path := range csprojFiles(r.root) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var proj csproj
		if err := xml.Unmarshal(data, &proj); err != nil {
			return err
		}
		for _, group := range proj.ItemGroups {
			for _, pkg := range group.Packages {
				r.addDep(pkg.Include)
			}
		}
		ns := strings.TrimSuffix(filepath.Base(path), ".csproj")
		for _, group := range proj.PropertyGroups {
			if group.RootNamespace != "" {
				ns = group.RootNamespace
			} else if group.AssemblyName != "" {
				ns = group.AssemblyName
			}
		}
		r.rootNamespaces = append(r.rootNamespaces, ns)
	}
	return r.indexNamespaces()
}

// indexNamespaces records which directories declare each namespace. C#
// namespaces need not follow the folder layout, so declarations win over
// path guessing.
func (r *DotnetResolver) indexNamespaces() error {
	seen := make(map[string]map[string]bool)
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case "bin", "obj", ".git", "node_modules", "packages":
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".cs" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if m := csharpNamespaceDecl.FindStringSubmatch(scanner.Text()); m != nil {
				dir := filepath.Dir(path)
				if seen[m[1]] == nil {
					seen[m[1]] = make(map[string]bool)
				}
				if !seen[m[1]][dir] {
					seen[m[1]][dir] = true
					r.namespaceDirs[m[1]] = append(r.namespaceDirs[m[1]], dir)
				}
			}
		}
		return nil
	})
	for ns := range r.namespaceDirs {
		sort.Strings(r.namespaceDirs[ns])
	}
	return err
}

func (r *DotnetResolver) ResolveImport(req Request) ResolvedImport {
	imported := strings.TrimSpace(req.Imported)
	if dirs := r.namespaceDirs[imported]; len(dirs) > 0 {
		return r.local(req, dirs[0], false)
	}
	for _, ns := range r.rootNamespaces {
		rest, ok := strings.CutPrefix(imported, ns)
		if !ok || (rest != "" && !strings.HasPrefix(rest, ".")) {
			continue
		}
		dir := filepath.Join(r.root, filepath.FromSlash(strings.ReplaceAll(strings.TrimPrefix(rest, "."), ".", "/")))
		if r.dirExists(dir) {
			return r.local(req, dir, false)
		}
	}
	if isStdlib(parser.LangCSharp, imported) {
		return external(req)
	}
	for dep := range r.deps {
		if dottedPrefix(imported, []string{dep}) {
			return external(req)
		}
	}
	return unresolved(req)
}
