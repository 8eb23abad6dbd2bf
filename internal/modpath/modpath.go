// Package modpath implements the path-style reference resolution shared by
// the in-memory and JavaScript hosts.
package modpath

import (
	"path"
	"strings"
)

// DefaultExtensions are probed, in order, when a reference has no exact
// match.
var DefaultExtensions = []string{".js", ".json"}

// IsRelative reports whether reference is relative to its parent.
func IsRelative(reference string) bool {
	return reference == "." || reference == ".." ||
		strings.HasPrefix(reference, "./") || strings.HasPrefix(reference, "../")
}

// IsPath reports whether reference names a file rather than a bare package.
func IsPath(reference string) bool {
	return IsRelative(reference) || strings.HasPrefix(reference, "/")
}

// Join computes the candidate identity for reference requested from parent.
// Bare names are returned unchanged.
func Join(reference, parent string) string {
	switch {
	case IsRelative(reference):
		base := "/"
		if parent != "" && strings.HasPrefix(parent, "/") {
			base = path.Dir(parent)
		}
		return path.Join(base, reference)
	case strings.HasPrefix(reference, "/"):
		return path.Clean(reference)
	default:
		return reference
	}
}

// Resolve returns the first candidate for reference accepted by exists: the
// joined path, then the path with each extension, then path/index with each
// extension. Bare names are only matched exactly.
func Resolve(reference, parent string, exists func(string) bool, extensions []string) (string, bool) {
	if reference == "" || exists == nil {
		return "", false
	}
	candidate := Join(reference, parent)
	if exists(candidate) {
		return candidate, true
	}
	if !IsPath(reference) {
		return "", false
	}
	for _, ext := range extensions {
		if exists(candidate + ext) {
			return candidate + ext, true
		}
	}
	for _, ext := range extensions {
		index := path.Join(candidate, "index"+ext)
		if exists(index) {
			return index, true
		}
	}
	return "", false
}

// Normalize returns the identity a module defined under name is stored
// with: paths are cleaned and rooted, bare names kept.
func Normalize(name string) string {
	if IsPath(name) {
		return Join(name, "")
	}
	return name
}
