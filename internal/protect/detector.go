package protect

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"
)

// Detector checks whether artifacts are in protected areas. Four
// strategies are tried in order: glob patterns, path keywords, file
// types and security-sensitive imports in the content.
type Detector struct {
	mu        sync.RWMutex
	patterns  []string
	keywords  []string
	fileTypes []string
	imports   []compiledImport
}

type compiledImport struct {
	re     *regexp.Regexp
	reason string
}

// projectConfig is the protected_areas section of .autopilot.yaml.
type projectConfig struct {
	ProtectedAreas struct {
		Patterns  []string `yaml:"patterns"`
		Keywords  []string `yaml:"keywords"`
		FileTypes []string `yaml:"file_types"`
	} `yaml:"protected_areas"`
}

// New creates a detector with the default rules.
func New() *Detector {
	d := &Detector{
		patterns:  append([]string{}, DefaultPatterns...),
		keywords:  append([]string{}, DefaultKeywords...),
		fileTypes: append([]string{}, DefaultFileTypes...),
	}
	for _, ip := range SecurityImports {
		d.imports = append(d.imports, compiledImport{re: regexp.MustCompile("(?m)" + ip.Pattern), reason: ip.Reason})
	}
	return d
}

// IsProtected reports whether path is protected.
func (d *Detector) IsProtected(path string) bool {
	ok, _ := d.Check(path, "")
	return ok
}

// Check reports whether the artifact at path with the given content is
// protected, and why. Content may be empty.
func (d *Detector) Check(path, content string) (bool, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	normalized := filepath.ToSlash(path)
	lower := strings.ToLower(normalized)

	for _, pattern := range d.patterns {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return true, "path matches protected pattern " + pattern
		}
	}

	for _, kw := range d.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, "path contains protected keyword " + kw
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, ft := range d.fileTypes {
		if ext == strings.ToLower(ft) {
			return true, "file type " + ft + " is protected"
		}
	}

	for _, ci := range d.imports {
		if content != "" && ci.re.MatchString(content) {
			return true, "imports " + ci.reason + " code"
		}
	}
	return false, ""
}

// AddPattern adds a glob pattern. Invalid patterns are rejected.
func (d *Detector) AddPattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid protected pattern %q", pattern)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, pattern)
	return nil
}

// AddKeyword adds a path keyword.
func (d *Detector) AddKeyword(keyword string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keywords = append(d.keywords, keyword)
}

// LoadConfig adds the protected_areas section of a project config file.
// A missing file is not an error.
func (d *Detector) LoadConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", configPath, err)
	}

	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", configPath, err)
	}

	for _, p := range cfg.ProtectedAreas.Patterns {
		if err := d.AddPattern(p); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.keywords = append(d.keywords, cfg.ProtectedAreas.Keywords...)
	d.fileTypes = append(d.fileTypes, cfg.ProtectedAreas.FileTypes...)
	return nil
}
