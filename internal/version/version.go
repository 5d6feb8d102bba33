// Package version reports the build version of the autopilot binary.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Commit returns the VCS revision the binary was built from, shortened,
// or "" when the build carries no VCS information.
func Commit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}

// String returns the version with the commit appended when known.
func String() string {
	if c := Commit(); c != "" {
		return Get() + " (" + c + ")"
	}
	return Get()
}
