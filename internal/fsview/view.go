// Package fsview provides a process-lifetime cache of stat results and
// content hashes over the project filesystem, with explicit invalidation.
//
// Multiple concurrent readers are supported; writers replace entries
// atomically. Invalidation of a path must be called only after the
// rebuild that produced it is visible on disk, so that any subsequent
// reader observes the new content (release-order, per spec.md §4.2/§5).
package fsview

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is the cached view of one path.
type Entry struct {
	Exists    bool
	ModTimeNs int64
	Size      int64

	hashOnce sync.Once
	hash     string
	hashErr  error
}

const defaultCapacity = 8192

// View is a thread-safe, bounded cache of filesystem entries.
//
// Entries are evicted least-recently-used once the configured capacity is
// exceeded; a bounded cache keeps a long-lived host process (the reason
// Kake exists) from accumulating unbounded memory across many builds.
type View struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *Entry]
}

// New creates a View with the given capacity (entries). A non-positive
// capacity falls back to a sane default.
func New(capacity int) *View {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c, err := lru.New[string, *Entry](capacity)
	if err != nil {
		// Only returns an error for a non-positive size, which we already guard.
		panic(err)
	}
	return &View{cache: c}
}

// Stat returns the cached entry for path, populating it from the OS on
// a cache miss.
func (v *View) Stat(path string) (*Entry, error) {
	v.mu.RLock()
	if e, ok := v.cache.Get(path); ok {
		v.mu.RUnlock()
		return e, nil
	}
	v.mu.RUnlock()

	info, err := os.Stat(path)
	entry := &Entry{}
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		entry.Exists = false
	} else {
		entry.Exists = true
		entry.ModTimeNs = info.ModTime().UnixNano()
		entry.Size = info.Size()
	}

	v.mu.Lock()
	v.cache.Add(path, entry)
	v.mu.Unlock()
	return entry, nil
}

// Hash returns a stable content hash of path, computing and caching it
// lazily. Used when mtime alone cannot be trusted (e.g. immediately after
// a rebuild whose new mtime might collide with the old one at coarse
// filesystem time resolution).
func (v *View) Hash(path string) (string, error) {
	entry, err := v.Stat(path)
	if err != nil {
		return "", err
	}
	if !entry.Exists {
		return "", os.ErrNotExist
	}

	entry.hashOnce.Do(func() {
		f, ferr := os.Open(path)
		if ferr != nil {
			entry.hashErr = ferr
			return
		}
		defer f.Close()

		h := sha256.New()
		if _, ferr := io.Copy(h, f); ferr != nil {
			entry.hashErr = ferr
			return
		}
		entry.hash = hex.EncodeToString(h.Sum(nil))
	})
	return entry.hash, entry.hashErr
}

// Invalidate removes the cached entry for one path, if any.
func (v *View) Invalidate(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache.Remove(path)
}

// InvalidateAll clears the entire view. Intended for host-initiated resets
// (e.g. on SIGHUP or an out-of-band bulk filesystem change).
func (v *View) InvalidateAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache.Purge()
}

// ModTime is a convenience wrapper returning a time.Time for an entry.
func (e *Entry) ModTime() time.Time {
	if !e.Exists {
		return time.Time{}
	}
	return time.Unix(0, e.ModTimeNs)
}

// Newer reports whether a is strictly newer than b. Equality is not newer,
// matching spec.md §4.5 rule 2 ("equality is treated as fresh").
func Newer(a, b *Entry) bool {
	if !a.Exists {
		return false
	}
	if !b.Exists {
		return true
	}
	return a.ModTimeNs > b.ModTimeNs
}
