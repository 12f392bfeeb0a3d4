package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kake/internal/buildctx"
	"kake/internal/fsview"
	"kake/internal/kakepath"
	"kake/internal/kerr"
	"kake/internal/rules"
)

type noopCapability struct{ ver int }

func (n *noopCapability) Build(ctx context.Context, output string, inputs []string, changed []string, bc buildctx.Context) error {
	return nil
}
func (n *noopCapability) Version() int { return n.ver }

type computingCapability struct {
	noopCapability
	extra map[string][]string // target -> extra inputs to reveal, keyed by call count
	calls int
}

func (c *computingCapability) ComputedInputs(node *rules.Node, current []string, bc buildctx.Context) ([]string, error) {
	key := node.Target
	seq, ok := c.extra[key]
	if !ok || c.calls >= len(seq) {
		return nil, nil
	}
	out := seq[c.calls]
	c.calls++
	if out == "" {
		return nil, nil
	}
	return []string{out}, nil
}

func newTestResolver(t *testing.T, root string) (*Resolver, *rules.Registry) {
	t.Helper()
	reg := rules.NewRegistry()
	paths := kakepath.NewResolver("genfiles/")
	fs := fsview.New(64)
	return NewResolver(reg, paths, fs, root), reg
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
}

func TestResolveSourceLeaf(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/a.txt")
	r, _ := newTestResolver(t, root)

	p, err := r.Resolve("src/a.txt", buildctx.Context{})
	require.NoError(t, err)
	assert.True(t, p.Root.IsSource)
	assert.Equal(t, "src/a.txt", p.Root.Target)
}

func TestResolveMissingSourceIsBadRequest(t *testing.T) {
	root := t.TempDir()
	r, _ := newTestResolver(t, root)

	_, err := r.Resolve("src/missing.txt", buildctx.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, kerr.ErrBadRequest)
}

func TestResolveOpaqueAbsoluteLeaf(t *testing.T) {
	root := t.TempDir()
	r, _ := newTestResolver(t, root)

	p, err := r.Resolve("/usr/bin/env", buildctx.Context{})
	require.NoError(t, err)
	assert.True(t, p.Root.IsSource)
	assert.Equal(t, "/usr/bin/env", p.Root.Target)
}

func TestResolveUnknownGeneratedTarget(t *testing.T) {
	root := t.TempDir()
	r, _ := newTestResolver(t, root)

	_, err := r.Resolve("genfiles/nope.out", buildctx.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, kerr.ErrUnknownTarget)
}

func TestResolveStaticInputsAndChildren(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/a.txt")
	touch(t, root, "src/b.txt")
	r, reg := newTestResolver(t, root)

	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "concat",
		OutputPattern:       "genfiles/out.txt",
		StaticInputPatterns: []string{"src/a.txt", "src/b.txt"},
		Capability:          &noopCapability{ver: 1},
	}))

	p, err := r.Resolve("genfiles/out.txt", buildctx.Context{})
	require.NoError(t, err)
	assert.False(t, p.Root.IsSource)
	assert.Equal(t, []string{"src/a.txt", "src/b.txt"}, p.Root.Inputs)
	require.Len(t, p.Root.Children, 2)
	assert.True(t, p.Root.Children[0].IsSource)
	assert.Equal(t, 1, p.Root.VersionTag)
}

func TestResolveComputedInputsFixpoint(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/a.txt")
	touch(t, root, "src/discovered.txt")
	r, reg := newTestResolver(t, root)

	cap := &computingCapability{extra: map[string][]string{
		"genfiles/out.txt": {"src/discovered.txt", ""},
	}}
	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "scan",
		OutputPattern:       "genfiles/out.txt",
		StaticInputPatterns: []string{"src/a.txt"},
		Capability:          cap,
	}))

	p, err := r.Resolve("genfiles/out.txt", buildctx.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.txt", "src/discovered.txt"}, p.Root.Inputs)
	require.Len(t, p.Root.Children, 2)
}

func TestResolveComputedInputsDivergence(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/a.txt")
	r, reg := newTestResolver(t, root)
	r.ComputedInputsMaxDepth = 2

	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "diverge",
		OutputPattern:       "genfiles/out.txt",
		StaticInputPatterns: []string{"src/a.txt"},
		Capability:          &neverConvergingCapability{},
	}))

	_, err := r.Resolve("genfiles/out.txt", buildctx.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, kerr.ErrComputedInputsDivergence)
}

type neverConvergingCapability struct {
	noopCapability
	n int
}

func (c *neverConvergingCapability) ComputedInputs(node *rules.Node, current []string, bc buildctx.Context) ([]string, error) {
	c.n++
	return []string{"src/generated-" + itoa(c.n) + ".txt"}, nil
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}

func TestResolveCycleDetected(t *testing.T) {
	root := t.TempDir()
	r, reg := newTestResolver(t, root)

	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "a",
		OutputPattern:       "genfiles/a.out",
		StaticInputPatterns: []string{"genfiles/b.out"},
		Capability:          &noopCapability{},
	}))
	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "b",
		OutputPattern:       "genfiles/b.out",
		StaticInputPatterns: []string{"genfiles/a.out"},
		Capability:          &noopCapability{},
	}))

	_, err := r.Resolve("genfiles/a.out", buildctx.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, kerr.ErrCycleDetected)
}

func TestResolveSharesCommonSubgraphNode(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/shared.txt")
	r, reg := newTestResolver(t, root)

	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "shared",
		OutputPattern:       "genfiles/shared.out",
		StaticInputPatterns: []string{"src/shared.txt"},
		Capability:          &noopCapability{},
	}))
	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "left",
		OutputPattern:       "genfiles/left.out",
		StaticInputPatterns: []string{"genfiles/shared.out"},
		Capability:          &noopCapability{},
	}))
	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "right",
		OutputPattern:       "genfiles/right.out",
		StaticInputPatterns: []string{"genfiles/shared.out"},
		Capability:          &noopCapability{},
	}))
	require.NoError(t, reg.Register(&rules.Rule{
		Label:               "top",
		OutputPattern:       "genfiles/top.out",
		StaticInputPatterns: []string{"genfiles/left.out", "genfiles/right.out"},
		Capability:          &noopCapability{},
	}))

	p, err := r.Resolve("genfiles/top.out", buildctx.Context{})
	require.NoError(t, err)

	left, _ := p.Lookup("genfiles/left.out")
	right, _ := p.Lookup("genfiles/right.out")
	assert.Same(t, left.Children[0], right.Children[0])
}
