package build

import (
	"bytes"
	"context"
	"os/exec"

	"kake/internal/kerr"
)

// NewSubprocessCaller binds a rules.SubprocessCaller to workDir: every
// invocation runs with that working directory, captures stderr, and turns
// a non-zero exit into a kerr.BuildFailedError carrying label, argv, and
// the captured output (spec.md §4.6 "Subprocess helper").
func NewSubprocessCaller(workDir string) func(ctx context.Context, label string, argv []string) error {
	return func(ctx context.Context, label string, argv []string) error {
		if len(argv) == 0 {
			return &kerr.BuildFailedError{Label: label, Stderr: "empty argv"}
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = workDir

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return &kerr.BuildFailedError{
				Label:  label,
				Argv:   argv,
				Stderr: stderr.String(),
				Cause:  err,
			}
		}
		return nil
	}
}
