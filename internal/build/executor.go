// Package build drives a resolved plan to completion: topological
// scheduling with a bounded worker pool, single-flight coalescing per
// target, the symlink fast path, and split-output handling (spec.md §4.6).
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/singleflight"

	"kake/internal/buildctx"
	"kake/internal/fsview"
	"kake/internal/kakepath"
	"kake/internal/kerr"
	"kake/internal/rules"
	"kake/internal/stale"
	"kake/internal/symlinkutil"
	"kake/internal/trace"
)

// Executor builds resolved plan.Node graphs against one project root.
//
// It holds process-lifetime state (the single-flight group and the worker
// semaphore) and is meant to be constructed once per host process and
// reused across many Build calls, the way the teacher's own Executor
// wraps a long-lived Runner rather than being recreated per request.
type Executor struct {
	ProjectRoot string
	FS          *fsview.View
	Logger      *slog.Logger

	// Trace receives one event per per-node build decision, if set. It
	// defaults to trace.NopSink{}; set it to a *trace.Recorder to collect a
	// deterministic BuildTrace of a run for diagnostics or golden tests.
	Trace trace.Sink

	group singleflight.Group
	sem   chan struct{}
}

// New creates an Executor with a worker pool sized workers (falling back
// to runtime.NumCPU() for a non-positive value, per spec.md §4.6's default
// "≈ number of CPUs").
func New(projectRoot string, fs *fsview.View, workers int, logger *slog.Logger) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		ProjectRoot: projectRoot,
		FS:          fs,
		Logger:      logger,
		Trace:       trace.NopSink{},
		sem:         make(chan struct{}, workers),
	}
}

// Build drives every node reachable from root to completion, in reverse
// topological order, respecting the worker pool and coalescing concurrent
// rebuild attempts of the same target.
func (e *Executor) Build(ctx context.Context, root *rules.Node, bc buildctx.Context) error {
	return e.buildNode(ctx, root, bc)
}

func (e *Executor) buildNode(ctx context.Context, node *rules.Node, bc buildctx.Context) error {
	if node.IsSource {
		return nil
	}

	if err := e.buildChildren(ctx, node, bc); err != nil {
		return &kerr.DownstreamFailedError{Target: node.Target, Cause: err}
	}

	_, err, _ := e.group.Do(node.Target, func() (interface{}, error) {
		return nil, e.buildOne(ctx, node)
	})
	return err
}

func (e *Executor) buildChildren(ctx context.Context, node *rules.Node, bc buildctx.Context) error {
	if len(node.Children) == 0 {
		return nil
	}

	errCh := make(chan error, len(node.Children))
	var wg sync.WaitGroup
	for _, child := range node.Children {
		child := child
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- e.buildNode(ctx, child, bc)
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// buildOne performs the staleness check and, if needed, the actual rebuild
// of a single node. Single-flight in buildNode guarantees at most one
// concurrent call per target (spec.md §4.6 "per-target ordering").
func (e *Executor) buildOne(ctx context.Context, node *rules.Node) error {
	output := e.fullPath(node.Target)
	inputPaths := e.fullPaths(node.Inputs)
	nonInputDeps := e.collectNonInputDeps(node)
	contextDigest := node.ContextView.Digest()

	if sym, ok := node.Rule.Capability.(rules.Symlinker); ok {
		if target, ok := sym.MaybeSymlinkTo(node); ok {
			return e.buildViaSymlink(node, output, target)
		}
	}

	result, err := stale.Analyze(e.FS, output, inputPaths, nonInputDeps, node.VersionTag, contextDigest)
	if err != nil {
		return fmt.Errorf("analyzing staleness of %q: %w", node.Target, err)
	}
	if !result.Stale {
		trace.SafeRecord(e.Trace, trace.TraceEvent{Kind: trace.EventTargetFresh, Target: node.Target})
		return nil
	}

	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	e.Logger.Debug("rebuilding target", "target", node.Target, "reason", result.Reason)

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("creating output directory for %q: %w", node.Target, err)
	}

	changedFull := e.fullPaths(result.Changed)
	if err := node.Rule.Capability.Build(ctx, output, inputPaths, changedFull, node.ContextView); err != nil {
		trace.SafeRecord(e.Trace, trace.TraceEvent{Kind: trace.EventTargetFailed, Target: node.Target, Reason: err.Error()})
		return attachTarget(err, node.Target, output)
	}

	if _, statErr := os.Stat(output); statErr != nil {
		trace.SafeRecord(e.Trace, trace.TraceEvent{Kind: trace.EventTargetFailed, Target: node.Target, Reason: "missing-output"})
		return kerr.MissingOutput(node.Target)
	}

	if err := stale.WriteSidecar(output, stale.Sidecar{VersionTag: node.VersionTag, Digest: contextDigest}); err != nil {
		return fmt.Errorf("writing sidecar for %q: %w", node.Target, err)
	}
	e.FS.Invalidate(output)

	var splitOutputs []string
	if split, ok := node.Rule.Capability.(rules.SplitOutputter); ok {
		splitOutputs = split.SplitOutputs(node)
		for _, s := range splitOutputs {
			full := e.fullPath(s)
			if _, statErr := os.Stat(full); statErr != nil {
				trace.SafeRecord(e.Trace, trace.TraceEvent{Kind: trace.EventTargetFailed, Target: node.Target, Reason: "missing-split-output"})
				return kerr.MissingOutput(s)
			}
			if err := stale.WriteSidecar(full, stale.Sidecar{VersionTag: node.VersionTag, Digest: contextDigest}); err != nil {
				return fmt.Errorf("writing sidecar for split output %q: %w", s, err)
			}
			e.FS.Invalidate(full)
		}
	}

	trace.SafeRecord(e.Trace, trace.TraceEvent{Kind: trace.EventTargetRebuilt, Target: node.Target, Reason: result.Reason, Outputs: splitOutputs})
	return nil
}

func (e *Executor) buildViaSymlink(node *rules.Node, output, target string) error {
	full := target
	if !kakepath.IsAbsolute(target) {
		full = e.fullPath(target)
	}
	entry, err := e.FS.Stat(full)
	if err != nil {
		return fmt.Errorf("checking symlink target %q for %q: %w", target, node.Target, err)
	}
	if !entry.Exists {
		return fmt.Errorf("symlink target %q for %q does not exist", target, node.Target)
	}

	if err := symlinkutil.EnsureRelative(output, full); err != nil {
		return fmt.Errorf("creating symlink for %q: %w", node.Target, err)
	}

	digest := node.ContextView.Digest()
	if err := stale.WriteSidecar(output, stale.Sidecar{VersionTag: node.VersionTag, Digest: digest}); err != nil {
		return fmt.Errorf("writing sidecar for %q: %w", node.Target, err)
	}
	e.FS.Invalidate(output)
	trace.SafeRecord(e.Trace, trace.TraceEvent{Kind: trace.EventTargetSymlinked, Target: node.Target})
	return nil
}

func (e *Executor) collectNonInputDeps(node *rules.Node) []string {
	deps := append([]string{}, node.Rule.NonInputDeps...)
	if nd, ok := node.Rule.Capability.(rules.NonInputDepper); ok {
		deps = append(deps, nd.NonInputDeps(node)...)
	}
	return e.fullPaths(deps)
}

func (e *Executor) fullPath(p string) string {
	if kakepath.IsAbsolute(p) {
		return p
	}
	return filepath.Join(e.ProjectRoot, p)
}

func (e *Executor) fullPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = e.fullPath(p)
	}
	return out
}

// attachTarget annotates a build-failure error with the output path, if it
// is a kerr.BuildFailedError that was constructed without one.
func attachTarget(err error, target, output string) error {
	if bf, ok := err.(*kerr.BuildFailedError); ok {
		if bf.Output == "" {
			bf.Output = output
		}
		return bf
	}
	return &kerr.BuildFailedError{Label: target, Output: output, Cause: err, Stderr: err.Error()}
}
