package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"kake/internal/kerr"
)

// Registry stores compile rules and resolves a target path to (rule,
// bindings). It is append-only and safe for concurrent reads once
// registration has settled (spec.md §3 "Lifecycle").
type Registry struct {
	mu    sync.RWMutex
	rules []*Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a rule, failing if its output pattern collides with an
// existing rule's pattern under any instantiation: exact literals must be
// unique, and a pattern must not subsume a literal already present (spec.md
// §4.3 register()).
func (reg *Registry) Register(r *Rule) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	compiled := compilePattern(r.OutputPattern)
	r.compiledOutput = compiled
	r.order = len(reg.rules)

	for _, existing := range reg.rules {
		if existing.OutputPattern == r.OutputPattern {
			return kerr.AmbiguousRule(r.OutputPattern, fmt.Sprintf("duplicate output pattern also registered by %q", existing.Label))
		}
		if compiled.isLiteral() && !existing.compiledOutput.isLiteral() {
			if _, ok := existing.compiledOutput.match(r.OutputPattern); ok {
				return kerr.AmbiguousRule(r.OutputPattern, fmt.Sprintf("literal output is already claimed by pattern rule %q", existing.Label))
			}
		}
		if !compiled.isLiteral() && existing.compiledOutput.isLiteral() {
			if _, ok := compiled.match(existing.OutputPattern); ok {
				return kerr.AmbiguousRule(r.OutputPattern, fmt.Sprintf("pattern subsumes literal output already registered by %q", existing.Label))
			}
		}
	}

	reg.rules = append(reg.rules, r)
	return nil
}

// candidate pairs a matching rule with its bindings and wildcard count,
// for ranking per spec.md §4.3.
type candidate struct {
	rule      *Rule
	bindings  map[string]string
	wildcards int
	order     int
}

// Find resolves target to (rule, bindings), applying spec.md §4.3's
// resolution order: exact literal wins, then fewest wildcard segments,
// then earliest registration.
func (reg *Registry) Find(target string) (*Rule, map[string]string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var candidates []candidate
	for _, r := range reg.rules {
		bindings, ok := r.compiledOutput.match(target)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{
			rule:      r,
			bindings:  bindings,
			wildcards: r.compiledOutput.wildcardCount(),
			order:     r.order,
		})
	}
	if len(candidates) == 0 {
		return nil, nil, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.wildcards != b.wildcards {
			return a.wildcards < b.wildcards
		}
		return a.order < b.order
	})

	best := candidates[0]
	if len(candidates) > 1 && candidates[1].wildcards == best.wildcards {
		slog.Warn("rule match tie broken by registration order", "target", target, "chosen", best.rule.Label, "other", candidates[1].rule.Label)
	}
	return best.rule, best.bindings, true
}

// Rules returns all registered rules in registration order. Intended for
// diagnostics and tests.
func (reg *Registry) Rules() []*Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Rule, len(reg.rules))
	copy(out, reg.rules)
	return out
}
