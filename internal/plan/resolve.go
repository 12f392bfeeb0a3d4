// Package plan expands a requested target into a complete dependency graph:
// resolving the matching rule, expanding static and computed inputs, and
// recursing into children until every leaf is a source file or an opaque
// absolute path (spec.md §4.4).
package plan

import (
	"fmt"
	"path/filepath"

	"kake/internal/buildctx"
	"kake/internal/fsview"
	"kake/internal/kakepath"
	"kake/internal/kerr"
	"kake/internal/rules"
)

// DefaultComputedInputsMaxDepth bounds the computed-inputs fixpoint loop
// (spec.md §4.4 "The loop is bounded by a configurable depth").
const DefaultComputedInputsMaxDepth = 8

// Plan is the DAG rooted at one requested target.
type Plan struct {
	Root *rules.Node

	// Order is every distinct node in the plan, deepest dependencies
	// first, suitable for driving a topological build (spec.md §4.6).
	Order []*rules.Node
}

// Resolver expands targets into Plans against one project's rule registry
// and filesystem view.
type Resolver struct {
	Registry               *rules.Registry
	Paths                  *kakepath.Resolver
	FS                     *fsview.View
	ProjectRoot            string
	ComputedInputsMaxDepth int
}

// NewResolver creates a Resolver with the default computed-inputs depth bound.
func NewResolver(reg *rules.Registry, paths *kakepath.Resolver, fs *fsview.View, projectRoot string) *Resolver {
	return &Resolver{
		Registry:               reg,
		Paths:                  paths,
		FS:                     fs,
		ProjectRoot:            projectRoot,
		ComputedInputsMaxDepth: DefaultComputedInputsMaxDepth,
	}
}

// resolution carries the per-call mutable state: a cache of completed
// nodes (so a target shared by two dependents is resolved once) and the
// set of targets currently on the resolution stack (for cycle detection).
type resolution struct {
	r          *Resolver
	bc         buildctx.Context
	cache      map[string]*rules.Node
	inProgress map[string]bool
	stack      []string
	order      []*rules.Node
}

// Resolve expands target into a complete Plan under the given build context.
func (r *Resolver) Resolve(target string, bc buildctx.Context) (*Plan, error) {
	res := &resolution{
		r:          r,
		bc:         bc,
		cache:      make(map[string]*rules.Node),
		inProgress: make(map[string]bool),
	}

	root, err := res.resolveNode(target)
	if err != nil {
		return nil, err
	}
	return &Plan{Root: root, Order: res.order}, nil
}

func (res *resolution) resolveNode(target string) (*rules.Node, error) {
	target = kakepath.Clean(target)

	if n, ok := res.cache[target]; ok {
		return n, nil
	}
	if res.inProgress[target] {
		return nil, kerr.CycleDetected(append(append([]string{}, res.stack...), target))
	}

	res.inProgress[target] = true
	res.stack = append(res.stack, target)
	defer func() {
		res.stack = res.stack[:len(res.stack)-1]
		delete(res.inProgress, target)
	}()

	node, err := res.buildNode(target)
	if err != nil {
		return nil, err
	}

	res.cache[target] = node
	res.order = append(res.order, node)
	return node, nil
}

func (res *resolution) buildNode(target string) (*rules.Node, error) {
	if kakepath.IsAbsolute(target) {
		// Opaque reference to a host-system binary: not part of the graph.
		return &rules.Node{Target: target, IsSource: true}, nil
	}

	if res.r.Paths.IsSource(target) {
		full := filepath.Join(res.r.ProjectRoot, target)
		entry, err := res.r.FS.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("stat source %q: %w", target, err)
		}
		if !entry.Exists {
			return nil, kerr.BadRequest(target, "source input does not exist")
		}
		return &rules.Node{Target: target, IsSource: true}, nil
	}

	rule, bindings, ok := res.r.Registry.Find(target)
	if !ok {
		return nil, kerr.UnknownTarget(target)
	}

	node := &rules.Node{Target: target, Rule: rule, Bindings: bindings}

	inputs, err := res.expandStaticInputs(rule, bindings)
	if err != nil {
		return nil, err
	}

	node.ContextView = res.bc.Restrict(rule.ContextKeys())
	node.VersionTag = rule.Version()

	inputs, err = res.convergeComputedInputs(node, inputs)
	if err != nil {
		return nil, err
	}

	node.Inputs = inputs

	children := make([]*rules.Node, 0, len(inputs))
	for _, in := range inputs {
		child, err := res.resolveNode(in)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	node.Children = children

	return node, nil
}

func (res *resolution) expandStaticInputs(rule *rules.Rule, bindings map[string]string) ([]string, error) {
	var inputs []string
	for _, pat := range rule.StaticInputPatterns {
		expanded, err := rules.ExpandInputPattern(pat, bindings, res.r.ProjectRoot)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, expanded...)
	}
	return inputs, nil
}

func (res *resolution) convergeComputedInputs(node *rules.Node, inputs []string) ([]string, error) {
	ci, ok := node.Rule.Capability.(rules.ComputedInputter)
	if !ok {
		return inputs, nil
	}

	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		seen[in] = true
	}

	for i := 0; i < res.r.ComputedInputsMaxDepth; i++ {
		extra, err := ci.ComputedInputs(node, inputs, node.ContextView)
		if err != nil {
			return nil, err
		}

		var fresh []string
		for _, e := range extra {
			e = kakepath.Clean(e)
			if seen[e] {
				continue
			}
			seen[e] = true
			fresh = append(fresh, e)
		}
		if len(fresh) == 0 {
			return inputs, nil
		}
		inputs = append(inputs, fresh...)
	}

	return nil, kerr.ComputedInputsDivergence(node.Target, res.r.ComputedInputsMaxDepth)
}
