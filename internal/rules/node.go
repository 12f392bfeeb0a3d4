package rules

import "kake/internal/buildctx"

// Node is a rule instantiated against one concrete target, with resolved
// variable bindings and an expanded input list (spec.md §3 "Resolved node").
type Node struct {
	// Target is the generated path being built, or the source path for a leaf.
	Target string

	// IsSource marks a leaf node that is a source file, not a rule output.
	IsSource bool

	// Rule is the matching rule (nil for source leaves).
	Rule *Rule

	// Bindings is the pattern-variable -> literal substitution map.
	Bindings map[string]string

	// Inputs is the ordered, fully expanded input list (static inputs
	// first, computed inputs appended in discovery order).
	Inputs []string

	// Children are the resolved nodes for every input (source leaves
	// included), in Inputs order.
	Children []*Node

	// ContextView is the subset of the build context restricted to the
	// rule's used context keys.
	ContextView buildctx.Context

	// VersionTag is the rule's Version() at the time the plan was formed.
	VersionTag int
}
