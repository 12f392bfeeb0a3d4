package stale

import "kake/internal/fsview"

// Result is the outcome of analyzing one node for staleness.
type Result struct {
	Stale bool

	// Reason is a short label naming which of the five rules fired, for
	// logging; empty when Stale is false.
	Reason string

	// Changed is the subset of inputs responsible for the decision. On a
	// first build (output missing) it is every input, per spec.md §4.6's
	// "may be all of them for first-build".
	Changed []string
}

// Analyze applies spec.md §4.5's five staleness rules to one node. output,
// inputs, and nonInputDeps are full filesystem paths; versionTag and
// contextDigest are the rule's current version and restricted-context
// digest to compare against the persisted sidecar.
func Analyze(fsv *fsview.View, output string, inputs, nonInputDeps []string, versionTag int, contextDigest string) (Result, error) {
	outEntry, err := fsv.Stat(output)
	if err != nil {
		return Result{}, err
	}
	if !outEntry.Exists {
		return Result{Stale: true, Reason: "output missing", Changed: inputs}, nil
	}

	var changed []string
	for _, in := range inputs {
		inEntry, err := fsv.Stat(in)
		if err != nil {
			return Result{}, err
		}
		if fsview.Newer(inEntry, outEntry) {
			changed = append(changed, in)
		}
	}
	if len(changed) > 0 {
		return Result{Stale: true, Reason: "input newer than output", Changed: changed}, nil
	}

	sidecar, ok := ReadSidecar(output)
	if !ok {
		return Result{Stale: true, Reason: "sidecar missing or unparsable", Changed: inputs}, nil
	}
	if sidecar.VersionTag != versionTag {
		return Result{Stale: true, Reason: "rule version changed", Changed: inputs}, nil
	}
	if sidecar.Digest != contextDigest {
		return Result{Stale: true, Reason: "context digest changed", Changed: inputs}, nil
	}

	for _, dep := range nonInputDeps {
		depEntry, err := fsv.Stat(dep)
		if err != nil {
			return Result{}, err
		}
		if fsview.Newer(depEntry, outEntry) {
			return Result{Stale: true, Reason: "non-input dependency newer than output", Changed: inputs}, nil
		}
	}

	return Result{Stale: false}, nil
}
