package resolver

import (
	"bufio"
	"bytes"
	"codegraph/internal/engine/parser"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// PythonResolver reads pip/poetry/conda manifests and maps dotted module
// paths onto the source tree.
type PythonResolver struct {
	project
	sourceRoots []string
}

func NewPythonResolver() *PythonResolver {
	return &PythonResolver{}
}

func (r *PythonResolver) Name() string { return "python" }

func (r *PythonResolver) CanHandle(root string) bool {
	if hasMarker(root, "pyproject.toml", "requirements.txt", "setup.py", "setup.cfg", "Pipfile", "environment.yml") {
		return true
	}
	return len(globMarker(root, "requirements*.txt")) > 0
}

func (r *PythonResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangPython
}

// Distribution names that install under a different import name.
var pythonImportNames = map[string][]string{
	"pyyaml":          {"yaml"},
	"beautifulsoup4":  {"bs4"},
	"pillow":          {"PIL"},
	"scikit_learn":    {"sklearn"},
	"python_dateutil": {"dateutil"},
	"protobuf":        {"google"},
	"opencv_python":   {"cv2"},
	"python_dotenv":   {"dotenv"},
	"attrs":           {"attr", "attrs"},
	"pyjwt":           {"jwt"},
	"msgpack_python":  {"msgpack"},
}

func (r *PythonResolver) Initialize(root string) error {
	r.project = newProject(root)

	r.sourceRoots = r.pythonSourceRoots()

	if err := r.readPyproject(filepath.Join(r.root, "pyproject.toml")); err != nil {
		return err
	}
	for _, req := range globMarker(r.root, "requirements*.txt") {
		r.readRequirements(req)
	}
	r.readSetupPy(filepath.Join(r.root, "setup.py"))
	if err := r.readCondaEnv(filepath.Join(r.root, "environment.yml")); err != nil {
		return err
	}
	return nil
}

func (r *PythonResolver) addDistribution(name string) {
	name = normalizePyName(name)
	if name == "" {
		return
	}
	r.addDep(name)
	for _, alias := range pythonImportNames[name] {
		r.addDep(alias)
	}
}

var pyRequirementName = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

// normalizePyName applies PEP 503 normalization with '_' as the separator,
// which also matches the usual import spelling.
func normalizePyName(spec string) string {
	m := pyRequirementName.FindStringSubmatch(spec)
	if m == nil {
		return ""
	}
	name := strings.ToLower(m[1])
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

type pyproject struct {
	Project struct {
		Name                 string              `toml:"name"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name            string                    `toml:"name"`
			Dependencies    map[string]toml.Primitive `toml:"dependencies"`
			DevDependencies map[string]toml.Primitive `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]toml.Primitive `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (r *PythonResolver) readPyproject(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc pyproject
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return err
	}
	for _, dep := range doc.Project.Dependencies {
		r.addDistribution(dep)
	}
	for _, group := range doc.Project.OptionalDependencies {
		for _, dep := range group {
			r.addDistribution(dep)
		}
	}
	poetry := doc.Tool.Poetry
	for name := range poetry.Dependencies {
		if name != "python" {
			r.addDistribution(name)
		}
	}
	for name := range poetry.DevDependencies {
		r.addDistribution(name)
	}
	for _, group := range poetry.Group {
		for name := range group.Dependencies {
			r.addDistribution(name)
		}
	}
	return nil
}

func (r *PythonResolver) readRequirements(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		r.addDistribution(line)
	}
}

var setupRequires = regexp.MustCompile(`(?s)install_requires\s*=\s*\[(.*?)\]`)
var quoted = regexp.MustCompile(`["']([^"']+)["']`)

func (r *PythonResolver) readSetupPy(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, block := range setupRequires.FindAllSubmatch(data, -1) {
		for _, m := range quoted.FindAllSubmatch(block[1], -1) {
			r.addDistribution(string(m[1]))
		}
	}
}

type condaEnv struct {
	Dependencies []yaml.Node `yaml:"dependencies"`
}

// readCondaEnv accepts both plain entries and the nested `- pip: [...]` list.
func (r *PythonResolver) readCondaEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var env condaEnv
	if err := yaml.Unmarshal(data, &env); err != nil {
		return err
	}
	for _, node := range env.Dependencies {
		switch node.Kind {
		case yaml.ScalarNode:
			r.addDistribution(strings.SplitN(node.Value, "=", 2)[0])
		case yaml.MappingNode:
			var nested map[string][]string
			if err := node.Decode(&nested); err != nil {
				continue
			}
			for _, deps := range nested {
				for _, dep := range deps {
					r.addDistribution(dep)
				}
			}
		}
	}
	return nil
}

func (r *PythonResolver) ResolveImport(req Request) ResolvedImport {
	imported := req.Imported
	if strings.HasPrefix(imported, ".") {
		if path, ok := r.pythonRelative(req); ok {
			return r.local(req, path, false)
		}
		return unresolved(req)
	}

	root := rootNamespace(imported, ".")
	// Declared distributions win over a local module of the same name.
	if pythonStdlib[root] || r.deps[root] || r.deps[normalizePyName(root)] {
		return external(req)
	}
	if path, ok := r.findPythonModule(imported, r.sourceRoots); ok {
		return r.local(req, path, false)
	}
	return unresolved(req)
}

func (p *project) pythonSourceRoots() []string {
	var roots []string
	for _, dir := range []string{"src", "lib", "app", ""} {
		candidate := filepath.Join(p.root, dir)
		if p.dirExists(candidate) {
			roots = append(roots, candidate)
		}
	}
	return roots
}

// findPythonModule tries each root for a.b.c as a module or package. A
// trailing name may be an attribute (`from a.b import C` is recorded as a.b,
// but `import a.b.C` is not), so shorter prefixes are tried too.
func (p *project) findPythonModule(dotted string, roots []string) (string, bool) {
	parts := strings.Split(dotted, ".")
	for n := len(parts); n > 0; n-- {
		rel := filepath.Join(parts[:n]...)
		for _, src := range roots {
			if path, ok := p.lookup(filepath.Join(src, rel), candidateExtensions[parser.LangPython], indexNames[parser.LangPython]); ok {
				return path, true
			}
		}
	}
	return "", false
}
