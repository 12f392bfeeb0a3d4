// Package kake is the embeddable public API for the dependency engine:
// register compile rules once at startup, then call Build/BuildMany to
// bring generated targets up to date. The engine never reads environment
// state itself; hosts construct it from explicit configuration (see
// internal/hostconfig for a concrete .env-backed loader) the same way the
// teacher's core/dag packages take their collaborators as constructor
// arguments rather than reaching for globals.
package kake

import (
	"context"
	"log/slog"
	"sync"

	"kake/internal/build"
	"kake/internal/fsview"
	"kake/internal/hostconfig"
	"kake/internal/kakepath"
	"kake/internal/plan"
	"kake/internal/rules"
	"kake/internal/stale"
	"kake/internal/trace"
)

// Engine is a process-lifetime, embeddable instance of the dependency
// engine: one rule registry, one filesystem view, one executor.
type Engine struct {
	mu sync.RWMutex

	registry *rules.Registry
	paths    *kakepath.Resolver
	fs       *fsview.View
	executor *build.Executor
	logger   *slog.Logger

	projectRoot string
}

// New constructs an Engine from cfg. A nil logger falls back to
// slog.Default(). cfg.SidecarSuffix, if set, overrides the process-wide
// sidecar file suffix used by internal/stale.
func New(cfg hostconfig.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SidecarSuffix != "" {
		stale.Suffix = cfg.SidecarSuffix
	}

	fs := fsview.New(0)
	return &Engine{
		registry:    rules.NewRegistry(),
		paths:       kakepath.NewResolver(cfg.GenfilesPrefix),
		fs:          fs,
		executor:    build.New(cfg.ProjectRoot, fs, cfg.CacheWorkers, logger),
		logger:      logger,
		projectRoot: cfg.ProjectRoot,
	}
}

// RegisterCompile registers a rule producing outputPattern from
// inputPatterns via capability. Fails if outputPattern collides with an
// already-registered pattern (spec.md §4.3 register()).
func (e *Engine) RegisterCompile(label, outputPattern string, inputPatterns []string, capability rules.Capability) error {
	return e.registry.Register(&rules.Rule{
		Label:               label,
		OutputPattern:       outputPattern,
		StaticInputPatterns: inputPatterns,
		Capability:          capability,
	})
}

// RegisterRule registers a fully specified rule, for callers that need
// NonInputDeps or a static UsedContextKeys list rather than relying on the
// corresponding optional capability interfaces.
func (e *Engine) RegisterRule(r *rules.Rule) error {
	return e.registry.Register(r)
}

// Build resolves target into a plan and drives it to completion.
func (e *Engine) Build(ctx context.Context, target string, bc BuildContext) error {
	resolver, executor := e.snapshot()
	p, err := resolver.Resolve(target, bc)
	if err != nil {
		return err
	}
	return executor.Build(ctx, p.Root, bc)
}

// BuildMany resolves and builds every target in targets, coalescing shared
// children through the executor's single-flight table. It returns the
// first error encountered, if any, after every target has been attempted.
func (e *Engine) BuildMany(ctx context.Context, targets []string, bc BuildContext) error {
	resolver, executor := e.snapshot()

	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, t := range targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := resolver.Resolve(t, bc)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = executor.Build(ctx, p.Root, bc)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// InvalidateFilesystemView drops every cached stat/hash entry, forcing the
// next build to re-observe the filesystem directly.
func (e *Engine) InvalidateFilesystemView() {
	e.fs.InvalidateAll()
}

// SetProjectRoot changes the root all relative paths resolve against.
// Intended for host startup/reconfiguration, not for use while a build is
// in flight.
func (e *Engine) SetProjectRoot(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projectRoot = path
	e.executor.ProjectRoot = path
}

// SetGenfilesPrefix changes the prefix distinguishing generated paths from
// source paths.
func (e *Engine) SetGenfilesPrefix(prefix string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = kakepath.NewResolver(prefix)
}

// SetTraceSink attaches sink to receive one event per per-target build
// decision across every subsequent Build/BuildMany call. Pass a
// *trace.Recorder to collect a deterministic BuildTrace for diagnostics;
// pass trace.NopSink{} (the default) to stop collecting.
func (e *Engine) SetTraceSink(sink trace.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executor.Trace = sink
}

func (e *Engine) snapshot() (*plan.Resolver, *build.Executor) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	resolver := plan.NewResolver(e.registry, e.paths, e.fs, e.projectRoot)
	return resolver, e.executor
}
