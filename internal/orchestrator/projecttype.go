package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ProjectType represents the primary language/framework of a project.
type ProjectType string

const (
	// ProjectTypeGo indicates a Go project (has go.mod).
	ProjectTypeGo ProjectType = "go"
	// ProjectTypeNode indicates a Node.js/JavaScript/TypeScript project (has package.json).
	ProjectTypeNode ProjectType = "node"
	// ProjectTypeRust indicates a Rust project (has Cargo.toml).
	ProjectTypeRust ProjectType = "rust"
	// ProjectTypePython indicates a Python project (has pyproject.toml or requirements.txt).
	ProjectTypePython ProjectType = "python"
	// ProjectTypeUnknown indicates the project type couldn't be detected.
	ProjectTypeUnknown ProjectType = "unknown"
)

// ProjectTypeInfo contains details about a detected project type.
type ProjectTypeInfo struct {
	Type ProjectType
	// TestCommand runs the project's tests; validate tasks execute it.
	TestCommand []string
	// TestArtifact is where a first test file for the project goes.
	TestArtifact string
}

// DetectProjectType analyzes a directory and returns the project type.
// It checks for common project files in order of specificity.
func DetectProjectType(projectPath string) ProjectType {
	if fileExists(filepath.Join(projectPath, "go.mod")) {
		return ProjectTypeGo
	}
	if fileExists(filepath.Join(projectPath, "Cargo.toml")) {
		return ProjectTypeRust
	}
	if fileExists(filepath.Join(projectPath, "pyproject.toml")) ||
		fileExists(filepath.Join(projectPath, "setup.py")) ||
		fileExists(filepath.Join(projectPath, "requirements.txt")) {
		return ProjectTypePython
	}
	// Node last since package.json also shows up next to other stacks.
	if fileExists(filepath.Join(projectPath, "package.json")) {
		return ProjectTypeNode
	}
	return ProjectTypeUnknown
}

// GetProjectTypeInfo returns the test command and test artifact location
// for the project at projectPath.
func GetProjectTypeInfo(projectPath string) *ProjectTypeInfo {
	pt := DetectProjectType(projectPath)
	info := &ProjectTypeInfo{Type: pt}

	switch pt {
	case ProjectTypeGo:
		info.TestCommand = []string{"go", "test", "./..."}
		info.TestArtifact = "smoke_test.go"
	case ProjectTypeNode:
		if hasNodeScript(projectPath, "test") {
			info.TestCommand = []string{"npm", "test"}
		}
		info.TestArtifact = "tests/smoke.test.js"
	case ProjectTypeRust:
		info.TestCommand = []string{"cargo", "test"}
		info.TestArtifact = "tests/smoke.rs"
	case ProjectTypePython:
		if dirExists(filepath.Join(projectPath, "tests")) {
			info.TestCommand = []string{"python", "-m", "pytest"}
		}
		info.TestArtifact = "tests/test_smoke.py"
	default:
		info.TestArtifact = "tests/README.md"
	}
	return info
}

// TestCommandLine returns the test command as a shell line, or "".
func (i *ProjectTypeInfo) TestCommandLine() string {
	return strings.Join(i.TestCommand, " ")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// packageJSON is the subset of package.json the analyzer reads.
type packageJSON struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageJSON(projectPath string) (*packageJSON, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// hasNodeScript checks if package.json defines the named script.
func hasNodeScript(projectPath, scriptName string) bool {
	pkg, err := readPackageJSON(projectPath)
	if err != nil {
		return false
	}
	_, ok := pkg.Scripts[scriptName]
	return ok
}
