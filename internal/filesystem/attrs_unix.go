//go:build unix

package filesystem

import (
	"fmt"
	"os"
	"syscall"
)

// CopyAttributes applies the permission bits, owner and group of info to
// path. A failed chown is returned as *OwnershipError after the permission
// bits have already been applied.
func CopyAttributes(info os.FileInfo, path string) error {
	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if err := os.Chown(path, int(st.Uid), int(st.Gid)); err != nil {
		return &OwnershipError{Path: path, Err: err}
	}
	return nil
}
