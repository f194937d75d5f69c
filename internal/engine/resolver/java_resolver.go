package resolver

import (
	"bufio"
	"bytes"
	"codegraph/internal/engine/parser"
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// JVMResolver reads Maven or Gradle manifests and maps fully qualified class
// names onto the standard source roots.
type JVMResolver struct {
	project
	sourceRoots []string
	groups      []string
}

func NewJVMResolver() *JVMResolver {
	return &JVMResolver{}
}

func (r *JVMResolver) Name() string { return "jvm" }

func (r *JVMResolver) CanHandle(root string) bool {
	return hasMarker(root, "pom.xml", "build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts")
}

func (r *JVMResolver) Handles(lang parser.Language) bool {
	return lang == parser.LangJava
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

type pomProject struct {
	GroupID      string          `xml:"groupId"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
	Managed      []pomDependency `xml:"dependencyManagement>dependencies>dependency"`
	Modules      []string        `xml:"modules>module"`
}

// Gradle coordinates: "group:artifact:version" or group: 'g', name: 'a'.
var (
	gradleCoordinate = regexp.MustCompile(`["']([A-Za-z0-9_.\-]+):([A-Za-z0-9_.\-]+)(?::[^"']*)?["']`)
	gradleMapGroup   = regexp.MustCompile(`group\s*[:=]\s*["']([A-Za-z0-9_.\-]+)["']`)
)

func (r *JVMResolver) Initialize(root string) error {
	r.project = newProject(root)

	modules := []string{""}
	if err := r.readPom(filepath.Join(r.root, "pom.xml"), &modules); err != nil {
		return err
	}
	for _, name := range []string{"build.gradle", "build.gradle.kts"} {
		r.readGradle(filepath.Join(r.root, name))
	}
	modules = append(modules, r.gradleModules()...)

	for _, module := range modules {
		for _, src := range []string{"src/main/java", "src/test/java", "src/main/kotlin", "src"} {
			candidate := filepath.Join(r.root, filepath.FromSlash(module), filepath.FromSlash(src))
			if r.dirExists(candidate) {
				r.sourceRoots = append(r.sourceRoots, candidate)
			}
		}
	}
	if len(r.sourceRoots) == 0 {
		r.sourceRoots = []string{r.root}
	}
	for dep := range r.deps {
		if group, _, ok := strings.Cut(dep, ":"); ok {
			r.groups = append(r.groups, group)
		}
	}
	return nil
}

func (r *JVMResolver) readPom(path string, modules *[]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var pom pomProject
	if err := xml.Unmarshal(data, &pom); err != nil {
		return err
	}
	for _, dep := range append(pom.Dependencies, pom.Managed...) {
		if dep.GroupID != "" && !strings.Contains(dep.GroupID, "${") {
			r.addDep(dep.GroupID + ":" + dep.ArtifactID)
		}
	}
	*modules = append(*modules, pom.Modules...)
	return nil
}

func (r *JVMResolver) readGradle(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, m := range gradleCoordinate.FindAllSubmatch(data, -1) {
		r.addDep(string(m[1]) + ":" + string(m[2]))
	}
	for _, m := range gradleMapGroup.FindAllSubmatch(data, -1) {
		r.addDep(string(m[1]) + ":")
	}
}

var gradleInclude = regexp.MustCompile(`["']:?([A-Za-z0-9_.\-:]+)["']`)

func (r *JVMResolver) gradleModules() []string {
	var out []string
	for _, name := range []string{"settings.gradle", "settings.gradle.kts"} {
		data, err := os.ReadFile(filepath.Join(r.root, name))
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "include") {
				continue
			}
			for _, m := range gradleInclude.FindAllStringSubmatch(line, -1) {
				out = append(out, strings.ReplaceAll(m[1], ":", "/"))
			}
		}
	}
	return out
}

func (r *JVMResolver) ResolveImport(req Request) ResolvedImport {
	imported := strings.TrimPrefix(strings.TrimSpace(req.Imported), "static ")
	if isStdlib(parser.LangJava, imported) {
		return external(req)
	}

	if pkg, ok := strings.CutSuffix(imported, ".*"); ok {
		rel := filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/"))
		for _, src := range r.sourceRoots {
			if dir := filepath.Join(src, rel); r.dirExists(dir) {
				return r.local(req, dir, false)
			}
		}
	} else {
		// Trailing segments may be nested classes or static members.
		parts := strings.Split(imported, ".")
		for n := len(parts); n > 1; n-- {
			rel := filepath.Join(parts[:n]...)
			for _, src := range r.sourceRoots {
				if path := filepath.Join(src, rel) + ".java"; r.exists(path) {
					return r.local(req, path, false)
				}
			}
		}
	}

	for _, group := range r.groups {
		if group != "" && (imported == group || strings.HasPrefix(imported, group+".")) {
			return external(req)
		}
	}
	return unresolved(req)
}
