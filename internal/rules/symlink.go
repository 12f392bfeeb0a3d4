package rules

import (
	"context"
	"fmt"

	"kake/internal/buildctx"
	"kake/internal/symlinkutil"
)

// CreateSymlink is a rule capability whose entire Build is creating a
// relative symlink from the output to its single input.
type CreateSymlink struct {
	Ver int
}

func (c *CreateSymlink) Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error {
	if len(inputs) != 1 {
		return fmt.Errorf("CreateSymlink rule requires exactly one input, got %d", len(inputs))
	}
	return symlinkutil.EnsureRelative(output, inputs[0])
}

func (c *CreateSymlink) Version() int { return c.Ver }
