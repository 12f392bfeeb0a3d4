// Package examplerules provides demo rule capabilities exercising the
// symlink fast path and computed-inputs scanning end to end (spec.md §9
// "Polymorphic rules"), used by cmd/kakectl's demo project and by this
// package's own tests. They are not part of the core capability surface;
// any host can write its own in the same shape.
package examplerules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kake/internal/buildctx"
	"kake/internal/rules"
)

// TranslationRule demonstrates S7's symlink fast path: when the bound
// {lang} segment is "en" its output is just a relative symlink to the
// English source, never invoking Build. For any other language it "
// translates" by prefixing each line with the language tag — a stand-in
// for a real translation pipeline.
type TranslationRule struct {
	// EnglishSource is the project-relative path to the canonical English
	// source file every translation is derived from.
	EnglishSource string
	Ver           int
}

func (t *TranslationRule) MaybeSymlinkTo(node *rules.Node) (string, bool) {
	if node.Bindings["lang"] == "en" {
		return t.EnglishSource, true
	}
	return "", false
}

// Build is only reached for non-English languages (MaybeSymlinkTo short
// circuits "en"). It derives the target language from output's path
// rather than from node bindings, since the capability interface's Build
// does not carry the resolved node — output alone is enough given the
// rule's own output pattern shape ("genfiles/{lang}/...").
func (t *TranslationRule) Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error {
	if len(inputs) != 1 {
		return fmt.Errorf("translation rule requires exactly one input, got %d", len(inputs))
	}
	data, err := os.ReadFile(inputs[0])
	if err != nil {
		return err
	}

	lang := filepath.Base(filepath.Dir(output))
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		if l == "" {
			continue
		}
		lines[i] = fmt.Sprintf("[%s] %s", lang, l)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte(strings.Join(lines, "\n")), 0644)
}

func (t *TranslationRule) Version() int { return t.Ver }
