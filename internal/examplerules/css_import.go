package examplerules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"kake/internal/buildctx"
	"kake/internal/rules"
)

var importRe = regexp.MustCompile(`@import\s+"([^"]+)"\s*;`)

// CSSImportRule demonstrates ComputedInputter (spec.md §3.3): it scans a
// stylesheet for @import lines and feeds each imported path back into the
// resolver as an extra input, expanding a glob import (e.g.
// "components/**/*.css") with doublestar so an entire subtree of partials
// can be pulled in with one line. Build concatenates the current input set
// in order, with later files able to override earlier selectors the way a
// real cascade would.
type CSSImportRule struct {
	ProjectRoot string
	Ver         int
}

func (c *CSSImportRule) ComputedInputs(node *rules.Node, currentInputs []string, bc buildctx.Context) ([]string, error) {
	var discovered []string
	for _, in := range currentInputs {
		full := in
		if !filepath.IsAbs(full) {
			full = filepath.Join(c.ProjectRoot, in)
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		for _, m := range importRe.FindAllStringSubmatch(string(data), -1) {
			imported := m[1]
			if strings.ContainsAny(imported, "*?[") {
				matches, err := doublestar.Glob(os.DirFS(c.ProjectRoot), imported)
				if err != nil {
					return nil, fmt.Errorf("css import glob %q: %w", imported, err)
				}
				discovered = append(discovered, matches...)
				continue
			}
			discovered = append(discovered, imported)
		}
	}
	return discovered, nil
}

func (c *CSSImportRule) Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error {
	var out strings.Builder
	for _, in := range inputs {
		full := in
		if !filepath.IsAbs(full) {
			full = filepath.Join(c.ProjectRoot, in)
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		out.Write(data)
		out.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte(out.String()), 0644)
}

func (c *CSSImportRule) Version() int { return c.Ver }
