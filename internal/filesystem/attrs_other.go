//go:build !unix

package filesystem

import (
	"fmt"
	"os"
)

// CopyAttributes applies the permission bits of info to path. Ownership is
// not available on this platform.
func CopyAttributes(info os.FileInfo, path string) error {
	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	return nil
}
