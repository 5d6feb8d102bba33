package orchestrator

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/modfile"

	"github.com/Camier/2SEARX2COOL-sub001/internal/protect"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// DefaultIgnore lists doublestar patterns the analyzer never walks into.
var DefaultIgnore = []string{
	".git/**",
	".autopilot/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/*.min.js",
}

const (
	// largeFileLines is the line count above which a file is reported as large.
	largeFileLines = 500
	// maxScanBytes bounds the files whose lines are counted.
	maxScanBytes = 1 << 20
	// manyDependencies is the inventory size reported as a risk factor.
	manyDependencies = 50
)

// expected artifacts every project should have, keyed by the name used in
// MissingArtifacts. Any of the listed paths satisfies the entry.
var expectedArtifacts = []struct {
	name  string
	paths []string
}{
	{"README.md", []string{"README.md", "README", "README.rst", "README.txt"}},
	{"LICENSE", []string{"LICENSE", "LICENSE.md", "LICENSE.txt", "COPYING"}},
	{".gitignore", []string{".gitignore"}},
	{"tests", nil},
	{"ci", []string{".github/workflows", ".gitlab-ci.yml", ".circleci/config.yml"}},
}

// Analyzer walks a project and summarizes its structure. Results are
// cached per absolute path until Invalidate.
type Analyzer struct {
	protector *protect.Detector
	ignore    []string
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]*models.ProjectAnalysis
}

// NewAnalyzer creates an analyzer. With a nil protector each project's own
// .autopilot.yaml protected_areas are loaded on top of the defaults.
func NewAnalyzer(protector *protect.Detector, ignore ...string) *Analyzer {
	return &Analyzer{
		protector: protector,
		ignore:    append(append([]string{}, DefaultIgnore...), ignore...),
		now:       time.Now,
		cache:     make(map[string]*models.ProjectAnalysis),
	}
}

// AnalyzeProject returns the structural analysis of the project at path.
func (o *Orchestrator) AnalyzeProject(path string) (*models.ProjectAnalysis, error) {
	return o.analyzer.Analyze(path)
}

// Invalidate drops the cached analysis of path.
func (a *Analyzer) Invalidate(root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return
	}
	a.mu.Lock()
	delete(a.cache, abs)
	a.mu.Unlock()
}

// Analyze walks root. The returned analysis is shared with the cache and
// must not be modified.
func (a *Analyzer) Analyze(root string) (*models.ProjectAnalysis, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("analyze project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("analyze project: %s is not a directory", abs)
	}

	a.mu.Lock()
	cached := a.cache[abs]
	a.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	res, err := a.analyze(abs)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache[abs] = res
	a.mu.Unlock()
	return res, nil
}

func (a *Analyzer) analyze(abs string) (*models.ProjectAnalysis, error) {
	detector := a.protector
	if detector == nil {
		detector = protect.New()
		if err := detector.LoadConfig(filepath.Join(abs, ".autopilot.yaml")); err != nil {
			debugLog("[analyzer] ignoring project protected areas: %v", err)
		}
	}

	res := &models.ProjectAnalysis{
		Path:        abs,
		ProjectType: string(DetectProjectType(abs)),
		FilesByType: make(map[string]int),
		AnalyzedAt:  a.now(),
	}
	present := make(map[string]bool)

	err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			debugLog("[analyzer] skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if a.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		present[rel] = true
		if d.IsDir() {
			return nil
		}

		res.TotalFiles++
		ext := strings.ToLower(path.Ext(rel))
		if ext == "" {
			ext = "(none)"
		}
		res.FilesByType[ext]++
		if isTestFile(rel) {
			res.TestFiles++
		}
		if detector.IsProtected(rel) {
			res.ProtectedFiles = append(res.ProtectedFiles, rel)
		}
		if lines := countLines(p); lines > largeFileLines {
			res.LargeFiles = append(res.LargeFiles, models.FileInfo{Path: rel, Lines: lines})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project: %w", err)
	}

	sort.SliceStable(res.LargeFiles, func(i, j int) bool { return res.LargeFiles[i].Lines > res.LargeFiles[j].Lines })
	res.Dependencies = inventory(abs)

	for _, ex := range expectedArtifacts {
		found := false
		if ex.name == "tests" {
			found = res.TestFiles > 0
		}
		for _, p := range ex.paths {
			found = found || present[p]
		}
		if !found {
			res.MissingArtifacts = append(res.MissingArtifacts, ex.name)
		}
	}
	res.CompletionRatio = float64(len(expectedArtifacts)-len(res.MissingArtifacts)) / float64(len(expectedArtifacts))

	res.RiskFactors = riskFactors(res)
	res.Recommendations = recommend(res)
	debugLog("[analyzer] %s: %d files, %d tests, %d deps, missing %v", abs, res.TotalFiles, res.TestFiles, len(res.Dependencies), res.MissingArtifacts)
	return res, nil
}

func (a *Analyzer) ignored(rel string, dir bool) bool {
	for _, pat := range a.ignore {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		if dir {
			if ok, _ := doublestar.Match(pat, rel+"/_"); ok {
				return true
			}
		}
	}
	return false
}

func isTestFile(rel string) bool {
	base := path.Base(rel)
	return strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasPrefix(rel, "tests/") ||
		strings.Contains(rel, "/tests/")
}

// countLines returns the number of lines of a text file, or 0 for large
// or binary files.
func countLines(p string) int {
	info, err := os.Stat(p)
	if err != nil || info.Size() > maxScanBytes {
		return 0
	}
	data, err := os.ReadFile(p)
	if err != nil || bytes.IndexByte(data, 0) >= 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// inventory reads dependencies from go.mod, package.json and requirements.txt.
func inventory(root string) []models.DependencyInfo {
	var deps []models.DependencyInfo

	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		f, err := modfile.Parse("go.mod", data, nil)
		if err != nil {
			debugLog("[analyzer] parse go.mod: %v", err)
		} else {
			for _, r := range f.Require {
				deps = append(deps, models.DependencyInfo{Name: r.Mod.Path, Version: r.Mod.Version, Source: "go.mod"})
			}
		}
	}

	if pkg, err := readPackageJSON(root); err == nil {
		deps = append(deps, nodeDeps(pkg.Dependencies, false)...)
		deps = append(deps, nodeDeps(pkg.DevDependencies, true)...)
	}

	if f, err := os.Open(filepath.Join(root, "requirements.txt")); err == nil {
		deps = append(deps, parseRequirements(f)...)
		f.Close()
	}
	return deps
}

func nodeDeps(m map[string]string, dev bool) []models.DependencyInfo {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]models.DependencyInfo, 0, len(names))
	for _, n := range names {
		out = append(out, models.DependencyInfo{Name: n, Version: m[n], Source: "package.json", Dev: dev})
	}
	return out
}

func parseRequirements(f *os.File) []models.DependencyInfo {
	var out []models.DependencyInfo
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		name, version := line, ""
		if i := strings.IndexAny(line, "=<>~!;["); i > 0 {
			name = strings.TrimSpace(line[:i])
			version = strings.TrimLeft(strings.TrimSpace(line[i:]), "=<>~! ")
			if j := strings.IndexAny(version, ";,"); j >= 0 {
				version = version[:j]
			}
			if strings.HasPrefix(line[i:], "[") || strings.HasPrefix(line[i:], ";") {
				version = ""
			}
		}
		out = append(out, models.DependencyInfo{Name: name, Version: strings.TrimSpace(version), Source: "requirements.txt"})
	}
	return out
}

func riskFactors(res *models.ProjectAnalysis) []string {
	var out []string
	if n := len(res.ProtectedFiles); n > 0 {
		out = append(out, fmt.Sprintf("%d file(s) in protected areas, e.g. %s", n, res.ProtectedFiles[0]))
	}
	if res.TestFiles == 0 && res.TotalFiles > 0 {
		out = append(out, "no test files")
	}
	if n := len(res.LargeFiles); n > 0 {
		out = append(out, fmt.Sprintf("%d file(s) over %d lines", n, largeFileLines))
	}
	if n := len(res.Dependencies); n > manyDependencies {
		out = append(out, fmt.Sprintf("%d dependencies", n))
	}
	if res.ProjectType == string(ProjectTypeUnknown) {
		out = append(out, "no recognised project manifest")
	}
	return out
}

func recommend(res *models.ProjectAnalysis) models.Recommendations {
	var r models.Recommendations
	missing := make(map[string]bool, len(res.MissingArtifacts))
	for _, m := range res.MissingArtifacts {
		missing[m] = true
	}

	if missing["tests"] {
		r.Immediate = append(r.Immediate, "add a test suite")
	}
	if missing["README.md"] {
		r.Immediate = append(r.Immediate, "add a README describing the project")
	}
	if len(res.ProtectedFiles) > 0 {
		r.Immediate = append(r.Immediate, "review changes to protected areas manually")
	}

	for _, f := range res.LargeFiles {
		r.ShortTerm = append(r.ShortTerm, fmt.Sprintf("split %s (%d lines)", f.Path, f.Lines))
	}
	if missing["ci"] {
		r.ShortTerm = append(r.ShortTerm, "add a CI workflow")
	}
	if missing[".gitignore"] {
		r.ShortTerm = append(r.ShortTerm, "add a .gitignore")
	}

	if n := len(res.Dependencies); n > 0 {
		r.LongTerm = append(r.LongTerm, fmt.Sprintf("audit %d dependencies", n))
	}
	if missing["LICENSE"] {
		r.LongTerm = append(r.LongTerm, "choose a license")
	}
	return r
}
