// Package kerr defines the engine's error taxonomy (spec.md §7).
//
// Errors are typed values wrapping a sentinel Kind, following the shape the
// teacher uses for its own graph/workspace/execution failure errors
// (internal/recovery/state/failures.go): a small struct with a stable Kind
// for errors.Is checks and enough context fields for diagnostics.
package kerr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTarget: no rule matches and the path is not a source file.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrAmbiguousRule: registration detected two rules claiming the same output.
	ErrAmbiguousRule = errors.New("ambiguous rule")
	// ErrCycleDetected: the resolver found a cycle in the dependency graph.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrBadRequest: the request itself is malformed.
	ErrBadRequest = errors.New("bad request")
	// ErrComputedInputsDivergence: the computed-inputs loop did not converge.
	ErrComputedInputsDivergence = errors.New("computed inputs did not converge")
	// ErrBuildFailed: a capability's build raised or its subprocess exited non-zero.
	ErrBuildFailed = errors.New("build failed")
	// ErrMissingOutput: build completed but the declared output does not exist.
	ErrMissingOutput = errors.New("missing output")
	// ErrCancelled: the build was cancelled by the host.
	ErrCancelled = errors.New("build cancelled")
	// ErrTimeout: a per-node timeout elapsed.
	ErrTimeout = errors.New("build timeout")
)

// TargetError names the target a failure occurred against.
type TargetError struct {
	Kind   error
	Target string
	Msg    string
}

func (e *TargetError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Target)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), e.Target, e.Msg)
}

func (e *TargetError) Unwrap() error { return e.Kind }

// UnknownTarget builds an ErrUnknownTarget-wrapping error for target.
func UnknownTarget(target string) error {
	return &TargetError{Kind: ErrUnknownTarget, Target: target}
}

// AmbiguousRule builds an ErrAmbiguousRule-wrapping error describing the collision.
func AmbiguousRule(pattern, msg string) error {
	return &TargetError{Kind: ErrAmbiguousRule, Target: pattern, Msg: msg}
}

// CycleDetected builds an ErrCycleDetected-wrapping error naming the cycle path.
func CycleDetected(path []string) error {
	msg := ""
	if len(path) > 0 {
		msg = fmt.Sprintf("%v", path)
	}
	return &TargetError{Kind: ErrCycleDetected, Target: path[0], Msg: msg}
}

// BadRequest builds an ErrBadRequest-wrapping error.
func BadRequest(target, msg string) error {
	return &TargetError{Kind: ErrBadRequest, Target: target, Msg: msg}
}

// ComputedInputsDivergence builds an ErrComputedInputsDivergence-wrapping error.
func ComputedInputsDivergence(target string, iterations int) error {
	return &TargetError{Kind: ErrComputedInputsDivergence, Target: target, Msg: fmt.Sprintf("did not converge after %d iterations", iterations)}
}

// MissingOutput builds an ErrMissingOutput-wrapping error.
func MissingOutput(target string) error {
	return &TargetError{Kind: ErrMissingOutput, Target: target}
}

// BuildFailedError carries the diagnostics spec.md §7 requires: label,
// output path, argv (if a subprocess was involved), and captured stderr.
type BuildFailedError struct {
	Label  string
	Output string
	Argv   []string
	Stderr string
	Cause  error
}

func (e *BuildFailedError) Error() string {
	if len(e.Argv) > 0 {
		return fmt.Sprintf("build failed: %s (%s): argv=%v: %s", e.Label, e.Output, e.Argv, e.Stderr)
	}
	return fmt.Sprintf("build failed: %s (%s): %s", e.Label, e.Output, e.Stderr)
}

// Unwrap exposes ErrBuildFailed and, when set, Cause, so errors.Is matches
// both the sentinel and the underlying error.
func (e *BuildFailedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrBuildFailed, e.Cause}
	}
	return []error{ErrBuildFailed}
}

// DownstreamFailedError tags a downstream target as failed because one of
// its dependencies failed, per spec.md §7 propagation policy.
type DownstreamFailedError struct {
	Target string
	Cause  error
}

func (e *DownstreamFailedError) Error() string {
	return fmt.Sprintf("build failed: %s (dependency failure): %v", e.Target, e.Cause)
}

func (e *DownstreamFailedError) Unwrap() error { return e.Cause }
