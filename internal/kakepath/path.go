// Package kakepath canonicalizes and classifies target paths.
//
// All paths inside the engine are project-root-relative, forward-slash
// separated strings. A path under the configured generated-files prefix
// (default "genfiles/") is a generated path; anything else is a source
// path. Absolute paths are permitted only for inputs that reference
// host-system binaries; they are opaque to the dependency graph.
package kakepath

import (
	"path"
	"strings"
)

const DefaultGenfilesPrefix = "genfiles/"

// Resolver canonicalizes and classifies paths relative to one project root.
type Resolver struct {
	genfilesPrefix string
}

// NewResolver creates a Resolver using genfilesPrefix (normalized to end
// in exactly one trailing slash). An empty prefix falls back to the default.
func NewResolver(genfilesPrefix string) *Resolver {
	p := strings.TrimSpace(genfilesPrefix)
	if p == "" {
		p = DefaultGenfilesPrefix
	}
	p = Clean(p)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return &Resolver{genfilesPrefix: p}
}

// GenfilesPrefix returns the configured generated-files prefix.
func (r *Resolver) GenfilesPrefix() string { return r.genfilesPrefix }

// Clean canonicalizes a path to forward-slash, project-relative form.
// It does not touch the filesystem.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return p
	}
	abs := strings.HasPrefix(p, "/")
	cleaned := path.Clean(p)
	if abs && !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

// IsAbsolute reports whether p is an absolute (opaque, host-system) path.
func IsAbsolute(p string) bool {
	return strings.HasPrefix(p, "/")
}

// IsGenerated reports whether p falls under the generated-files prefix.
func (r *Resolver) IsGenerated(p string) bool {
	c := Clean(p)
	return strings.HasPrefix(c, r.genfilesPrefix)
}

// IsSource reports whether p is a source path (not generated, not absolute).
func (r *Resolver) IsSource(p string) bool {
	c := Clean(p)
	return !IsAbsolute(c) && !r.IsGenerated(c)
}

// Segments splits a cleaned relative path into its slash-separated segments.
func Segments(p string) []string {
	c := Clean(p)
	c = strings.TrimPrefix(c, "/")
	if c == "" || c == "." {
		return nil
	}
	return strings.Split(c, "/")
}
