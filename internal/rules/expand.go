package rules

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandInputPattern substitutes bound variables into pattern and, if the
// result still contains a {{glob}} or ** segment, expands it against the
// filesystem rooted at projectRoot. A ** segment is expanded as a single
// "*", so it matches exactly one directory level, not any number of them.
// Patterns with no glob segment expand to exactly the variable-substituted
// literal path.
//
// Glob expansion results are sorted lexicographically: spec.md S5 requires
// glob inputs be presented to builders in sorted order, not filesystem
// enumeration order.
func ExpandInputPattern(pattern string, bindings map[string]string, projectRoot string) ([]string, error) {
	compiled := compilePattern(pattern)

	segs := make([]string, len(compiled.segs))
	hasGlob := false
	for i, s := range compiled.segs {
		switch s.kind {
		case segLiteral:
			segs[i] = s.literal
		case segVariable:
			if v, ok := bindings[s.name]; ok {
				segs[i] = v
			} else {
				segs[i] = "{" + s.name + "}"
			}
		case segGlob:
			hasGlob = true
			segs[i] = s.glob
		case segDoubleStar:
			hasGlob = true
			segs[i] = "*"
		}
	}
	substituted := strings.Join(segs, "/")

	if !hasGlob {
		return []string{substituted}, nil
	}

	full := substituted
	if !strings.HasPrefix(full, "/") {
		full = filepath.Join(projectRoot, substituted)
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(projectRoot, m)
		if err != nil {
			return nil, fmt.Errorf("relativizing glob match %q: %w", m, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}
