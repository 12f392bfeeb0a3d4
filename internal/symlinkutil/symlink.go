// Package symlinkutil creates and refreshes the relative symlinks used by
// the executor's symlink fast path and the CreateSymlink rule capability
// (spec.md §4.6, §4.7).
package symlinkutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureRelative creates (or replaces) a symlink at linkPath pointing at
// targetPath, expressed as a path relative to linkPath's directory so the
// project tree remains relocatable.
func EnsureRelative(linkPath, targetPath string) error {
	dir := filepath.Dir(linkPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating parent directory for symlink: %w", err)
	}

	rel, err := filepath.Rel(dir, targetPath)
	if err != nil {
		return fmt.Errorf("computing relative symlink target: %w", err)
	}

	if existing, err := os.Readlink(linkPath); err == nil && existing == rel {
		return nil
	}

	tmp := linkPath + ".tmp-symlink"
	_ = os.Remove(tmp)
	if err := os.Symlink(rel, tmp); err != nil {
		return fmt.Errorf("creating symlink: %w", err)
	}
	if err := os.Rename(tmp, linkPath); err != nil {
		return fmt.Errorf("committing symlink: %w", err)
	}
	return nil
}
