// Package rules implements the compile-rule registry and the capability
// surface rules satisfy (spec.md §3, §4.3, §4.7).
package rules

import (
	"context"

	"kake/internal/buildctx"
)

// Capability is the minimal contract every rule must satisfy: it can
// produce its output from a set of inputs. The remaining operations in
// spec.md §4.7 (Version, ComputedInputs, UsedContextKeys, SplitOutputs,
// MaybeSymlinkTo, NonInputDeps) are optional and discovered by type
// assertion, the way http.Flusher/http.Hijacker extend http.ResponseWriter.
type Capability interface {
	// Build produces output from inputs. changed is the subset of inputs
	// responsible for the staleness decision (may equal inputs on first
	// build). Must be deterministic given the same inputs, context view,
	// and version.
	Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error
}

// Versioner is bumped by the rule author whenever Build's semantics change
// in a way that alters output bytes.
type Versioner interface {
	Version() int
}

// ComputedInputter returns extra inputs discovered by inspecting the
// current input list (e.g. scanning @import lines). Called repeatedly
// until it returns no new paths.
type ComputedInputter interface {
	ComputedInputs(node *Node, currentInputs []string, bc buildctx.Context) ([]string, error)
}

// ContextKeyer declares the subset of the build context a rule reads;
// that subset participates in staleness.
type ContextKeyer interface {
	UsedContextKeys() []string
}

// SplitOutputter declares secondary outputs produced atomically alongside
// the primary output of a single Build invocation.
type SplitOutputter interface {
	SplitOutputs(node *Node) []string
}

// Symlinker lets a rule short-circuit Build entirely by pointing its
// output at an existing path via a symlink.
type Symlinker interface {
	MaybeSymlinkTo(node *Node) (path string, ok bool)
}

// NonInputDepper declares paths whose staleness forces a rebuild without
// being passed to Build.
type NonInputDepper interface {
	NonInputDeps(node *Node) []string
}

// Rule is an immutable registered compile rule.
type Rule struct {
	// Label is an arbitrary human string, for diagnostics.
	Label string

	// OutputPattern is either a literal generated path or a pattern
	// containing variable segments ({lang}, {{glob}}, **).
	OutputPattern string

	// StaticInputPatterns is the ordered list of input specifiers: each
	// either literal, variable-substituted, or a glob.
	StaticInputPatterns []string

	// Capability is the builder object.
	Capability Capability

	// NonInputDeps lists additional static paths whose staleness forces a
	// rebuild but which are not passed to Build. Capabilities may supply
	// more of these dynamically via NonInputDepper.
	NonInputDeps []string

	// UsedContextKeys is the static set of context-variable names this
	// rule reads. Capabilities may instead (or additionally) implement
	// ContextKeyer.
	UsedContextKeys []string

	compiledOutput compiledPattern
	order          int // registration order, for tie-breaking
}

// Version returns the rule's capability version, or 0 if it does not
// implement Versioner.
func (r *Rule) Version() int {
	if v, ok := r.Capability.(Versioner); ok {
		return v.Version()
	}
	return 0
}

// ContextKeys returns the effective set of used context keys: the union of
// the static UsedContextKeys field and any ContextKeyer implementation.
func (r *Rule) ContextKeys() []string {
	keys := append([]string{}, r.UsedContextKeys...)
	if ck, ok := r.Capability.(ContextKeyer); ok {
		keys = append(keys, ck.UsedContextKeys()...)
	}
	return dedupe(keys)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
