package stale

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kake/internal/fsview"
)

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestAnalyzeMissingOutputIsStale(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	in := filepath.Join(root, "in.txt")
	writeFileAt(t, in, time.Now())

	res, err := Analyze(fsv, filepath.Join(root, "out.txt"), []string{in}, nil, 1, "digest")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, []string{in}, res.Changed)
}

func TestAnalyzeNewerInputIsStale(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")

	base := time.Now().Add(-time.Hour)
	writeFileAt(t, out, base)
	require.NoError(t, WriteSidecar(out, Sidecar{VersionTag: 1, Digest: "digest"}))
	writeFileAt(t, in, base.Add(time.Minute))

	res, err := Analyze(fsv, out, []string{in}, nil, 1, "digest")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, []string{in}, res.Changed)
}

func TestAnalyzeEqualMtimeIsFresh(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")

	same := time.Now().Truncate(time.Second)
	writeFileAt(t, in, same)
	writeFileAt(t, out, same)
	require.NoError(t, WriteSidecar(out, Sidecar{VersionTag: 1, Digest: "digest"}))

	res, err := Analyze(fsv, out, []string{in}, nil, 1, "digest")
	require.NoError(t, err)
	assert.False(t, res.Stale)
}

func TestAnalyzeMissingSidecarIsStale(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")

	base := time.Now().Add(-time.Hour)
	writeFileAt(t, in, base)
	writeFileAt(t, out, base.Add(time.Minute))

	res, err := Analyze(fsv, out, []string{in}, nil, 1, "digest")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "sidecar missing or unparsable", res.Reason)
}

func TestAnalyzeVersionBumpIsStale(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")

	base := time.Now().Add(-time.Hour)
	writeFileAt(t, in, base)
	writeFileAt(t, out, base.Add(time.Minute))
	require.NoError(t, WriteSidecar(out, Sidecar{VersionTag: 1, Digest: "digest"}))

	res, err := Analyze(fsv, out, []string{in}, nil, 2, "digest")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "rule version changed", res.Reason)
}

func TestAnalyzeContextDigestChangeIsStale(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")

	base := time.Now().Add(-time.Hour)
	writeFileAt(t, in, base)
	writeFileAt(t, out, base.Add(time.Minute))
	require.NoError(t, WriteSidecar(out, Sidecar{VersionTag: 1, Digest: "old-digest"}))

	res, err := Analyze(fsv, out, []string{in}, nil, 1, "new-digest")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "context digest changed", res.Reason)
}

func TestAnalyzeNonInputDepNewerIsStale(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")
	dep := filepath.Join(root, "dep.txt")

	base := time.Now().Add(-time.Hour)
	writeFileAt(t, in, base)
	writeFileAt(t, out, base.Add(time.Minute))
	require.NoError(t, WriteSidecar(out, Sidecar{VersionTag: 1, Digest: "digest"}))
	writeFileAt(t, dep, base.Add(2*time.Minute))

	res, err := Analyze(fsv, out, []string{in}, []string{dep}, 1, "digest")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "non-input dependency newer than output", res.Reason)
}

func TestAnalyzeFreshWhenNothingChanged(t *testing.T) {
	root := t.TempDir()
	fsv := fsview.New(16)
	out := filepath.Join(root, "out.txt")
	in := filepath.Join(root, "in.txt")
	dep := filepath.Join(root, "dep.txt")

	base := time.Now().Add(-time.Hour)
	writeFileAt(t, in, base)
	writeFileAt(t, dep, base)
	writeFileAt(t, out, base.Add(time.Minute))
	require.NoError(t, WriteSidecar(out, Sidecar{VersionTag: 1, Digest: "digest"}))

	res, err := Analyze(fsv, out, []string{in}, []string{dep}, 1, "digest")
	require.NoError(t, err)
	assert.False(t, res.Stale)
}
