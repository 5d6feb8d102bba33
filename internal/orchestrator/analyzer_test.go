package orchestrator

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAnalyzeProject(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod": "module example.com/demo\n\ngo 1.22\n\nrequire (\n\tgithub.com/google/uuid v1.6.0\n\tgolang.org/x/sync v0.7.0\n)\n",
		"README.md":                 "# demo\n",
		"main.go":                   "package main\n\nfunc main() {}\n",
		"main_test.go":              "package main\n",
		"internal/big/big.go":       strings.Repeat("// filler\n", 620),
		"internal/auth/session.go":  "package auth\n",
		"node_modules/lib/index.js": "module.exports = {}\n",
		"Makefile":                  "all:\n",
	})

	o := New()
	a, err := o.AnalyzeProject(root)
	if err != nil {
		t.Fatalf("AnalyzeProject() = %v", err)
	}

	if a.ProjectType != string(ProjectTypeGo) {
		t.Errorf("ProjectType = %q, want go", a.ProjectType)
	}
	if a.TotalFiles != 7 {
		t.Errorf("TotalFiles = %d, want 7 (node_modules ignored)", a.TotalFiles)
	}
	if a.FilesByType[".go"] != 4 || a.FilesByType["(none)"] != 1 {
		t.Errorf("FilesByType = %v", a.FilesByType)
	}
	if a.TestFiles != 1 {
		t.Errorf("TestFiles = %d, want 1", a.TestFiles)
	}
	if len(a.LargeFiles) != 1 || a.LargeFiles[0].Path != "internal/big/big.go" || a.LargeFiles[0].Lines != 620 {
		t.Errorf("LargeFiles = %+v", a.LargeFiles)
	}
	if !slices.Contains(a.ProtectedFiles, "internal/auth/session.go") {
		t.Errorf("ProtectedFiles = %v, want the auth file", a.ProtectedFiles)
	}
	if want := []string{"LICENSE", ".gitignore", "ci"}; !slices.Equal(a.MissingArtifacts, want) {
		t.Errorf("MissingArtifacts = %v, want %v", a.MissingArtifacts, want)
	}
	if a.CompletionRatio != 0.4 {
		t.Errorf("CompletionRatio = %v, want 0.4", a.CompletionRatio)
	}
	if len(a.Dependencies) != 2 || a.Dependencies[0] != (models.DependencyInfo{Name: "github.com/google/uuid", Version: "v1.6.0", Source: "go.mod"}) {
		t.Errorf("Dependencies = %+v", a.Dependencies)
	}
	if len(a.Recommendations.ShortTerm) == 0 || !strings.Contains(a.Recommendations.ShortTerm[0], "internal/big/big.go") {
		t.Errorf("ShortTerm = %v, want a split recommendation first", a.Recommendations.ShortTerm)
	}
	if len(a.RiskFactors) == 0 {
		t.Error("no risk factors reported")
	}
}

func TestAnalyzeProjectCache(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "a\n"})

	an := NewAnalyzer(nil)
	first, err := an.Analyze(root)
	if err != nil {
		t.Fatal(err)
	}
	writeFiles(t, root, map[string]string{"b.txt": "b\n"})

	second, err := an.Analyze(root)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("second Analyze() did not use the cache")
	}

	an.Invalidate(root)
	third, err := an.Analyze(root)
	if err != nil {
		t.Fatal(err)
	}
	if third.TotalFiles != 2 {
		t.Errorf("TotalFiles after Invalidate = %d, want 2", third.TotalFiles)
	}
}

func TestAnalyzeProjectErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"file.txt": "x"})

	an := NewAnalyzer(nil)
	for _, p := range []string{filepath.Join(root, "missing"), filepath.Join(root, "file.txt")} {
		if _, err := an.Analyze(p); err == nil {
			t.Errorf("Analyze(%s) succeeded, want error", p)
		}
	}
}

func TestDependencyInventory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":     `{"dependencies": {"react": "^18.2.0"}, "devDependencies": {"jest": "29.0.0"}}`,
		"requirements.txt": "# pinned\nrequests==2.31.0\nflask>=2.0  # web\n-r other.txt\nuvicorn[standard]\n",
	})

	got := inventory(root)
	want := []models.DependencyInfo{
		{Name: "react", Version: "^18.2.0", Source: "package.json"},
		{Name: "jest", Version: "29.0.0", Source: "package.json", Dev: true},
		{Name: "requests", Version: "2.31.0", Source: "requirements.txt"},
		{Name: "flask", Version: "2.0", Source: "requirements.txt"},
		{Name: "uvicorn", Source: "requirements.txt"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("inventory() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestIgnorePatterns(t *testing.T) {
	an := NewAnalyzer(nil, "**/*.log")
	tests := []struct {
		rel  string
		dir  bool
		want bool
	}{
		{".git", true, true},
		{"web/node_modules", true, true},
		{"vendor", true, true},
		{"src/app.min.js", false, true},
		{"logs/out.log", false, true},
		{"src", true, false},
		{"src/main.go", false, false},
	}
	for _, tt := range tests {
		if got := an.ignored(tt.rel, tt.dir); got != tt.want {
			t.Errorf("ignored(%q, %v) = %v, want %v", tt.rel, tt.dir, got, tt.want)
		}
	}
}
