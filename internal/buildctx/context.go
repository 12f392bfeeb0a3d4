// Package buildctx defines the build context: a host-supplied key/value map
// that rules may read a declared subset of, and that participates in
// staleness analysis via a stable digest of that subset.
package buildctx

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Context is an immutable snapshot of host-supplied build variables.
type Context map[string]string

// Restrict returns the subset of c whose keys are in keys. The original
// context is left unmodified; Digest orders the keys deterministically.
func (c Context) Restrict(keys []string) Context {
	if len(keys) == 0 {
		return Context{}
	}
	out := make(Context, len(keys))
	for _, k := range keys {
		if v, ok := c[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Digest returns a stable hex-encoded hash of the context's contents,
// independent of map iteration order.
func (c Context) Digest() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c[k])
		b.WriteByte('\x00')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
