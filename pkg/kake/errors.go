package kake

import "kake/internal/kerr"

// Sentinel errors re-exported for hosts that want errors.Is checks without
// importing internal/kerr directly.
var (
	ErrUnknownTarget            = kerr.ErrUnknownTarget
	ErrAmbiguousRule            = kerr.ErrAmbiguousRule
	ErrCycleDetected            = kerr.ErrCycleDetected
	ErrBadRequest               = kerr.ErrBadRequest
	ErrComputedInputsDivergence = kerr.ErrComputedInputsDivergence
	ErrBuildFailed              = kerr.ErrBuildFailed
	ErrMissingOutput            = kerr.ErrMissingOutput
	ErrCancelled                = kerr.ErrCancelled
	ErrTimeout                  = kerr.ErrTimeout
)

// BuildFailedError carries the diagnostics of a failed capability
// invocation: label, output, argv (if a subprocess ran), and stderr.
type BuildFailedError = kerr.BuildFailedError
