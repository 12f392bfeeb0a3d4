package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"kake/internal/buildctx"
)

// CachedFile wraps another capability and skips invoking it when the
// content hash of the current inputs matches the hash recorded the last
// time it actually ran — even though mtimes moved enough to make the node
// stale. This is the short-circuit spec.md §4.7 describes: whitespace-only
// upstream edits don't ripple into downstream rebuilds.
//
// On a hash-unchanged skip, output's bytes AND mtime are left exactly as
// they were: touching mtime here would make every node downstream of
// output see it as newer than their own last build, rebuilding them
// anyway and defeating the whole point of skipping. The staleness
// analyzer still re-examines this node on its own next build (driven by
// the upstream input's now-newer mtime), finds this Build call cheap to
// make, and that call is exactly what re-confirms nothing downstream
// needs to move.
//
// The content-hash record is kept in a private sidecar next to the output
// (output + ".__cachedfile__"), separate from the version/context sidecar
// the staleness analyzer owns.
type CachedFile struct {
	Inner Capability
	Ver   int
}

func (c *CachedFile) sidecarPath(output string) string {
	return output + ".__cachedfile__"
}

func (c *CachedFile) Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error {
	hash, err := hashFiles(inputs)
	if err != nil {
		return err
	}

	sidecar := c.sidecarPath(output)
	prev, readErr := os.ReadFile(sidecar)
	if readErr == nil && string(prev) == hash {
		if _, statErr := os.Stat(output); statErr == nil {
			return nil
		}
	}

	if err := c.Inner.Build(ctx, output, inputs, changed, bc); err != nil {
		return err
	}
	return os.WriteFile(sidecar, []byte(hash), 0644)
}

// ComputedInputs forwards to the wrapped capability when it implements
// ComputedInputter, so wrapping a rule does not hide its discovered inputs.
func (c *CachedFile) ComputedInputs(node *Node, currentInputs []string, bc buildctx.Context) ([]string, error) {
	if ci, ok := c.Inner.(ComputedInputter); ok {
		return ci.ComputedInputs(node, currentInputs, bc)
	}
	return nil, nil
}

// Version implements Versioner. When the wrapped capability implements
// Versioner the result combines both (Ver*1000 + inner version), so bumping
// either one forces a rebuild; otherwise it is Ver alone.
func (c *CachedFile) Version() int {
	if v, ok := c.Inner.(Versioner); ok {
		return c.Ver*1000 + v.Version()
	}
	return c.Ver
}

func hashFiles(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(content)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
