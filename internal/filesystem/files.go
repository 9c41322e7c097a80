package filesystem

import (
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// renameFunc is swapped in tests to simulate cross-device renames.
var renameFunc = os.Rename

// HashFile returns the hex SHA-1 of the file's contents.
func HashFile(path string) (string, error) {
	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec // see import
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Exists reports whether path refers to an existing filesystem entry.
func Exists(path string) bool {
	_, err := StatWithRetry(path, DefaultRetryConfig())
	return err == nil
}

// RemoveIfExists deletes path and reports whether anything was removed.
// A missing file is not an error.
func RemoveIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// MoveFile renames src to dst. When both live on different filesystems the
// file is copied next to dst under a hidden name, renamed into place, and the
// source is removed afterwards, so dst never appears half written.
func MoveFile(src, dst string) error {
	err := renameFunc(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	tmp, err := copyNextTo(src, dst)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move copied file into place: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return nil
}

// Stage places the contents of src in the directory of dst under a hidden
// name and returns that name. On the same filesystem src is renamed; across
// filesystems it is copied and src stays in place. dst is not touched, so a
// failed stage leaves both src and dst as they were.
func Stage(src, dst string) (string, error) {
	staged := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".staged")
	err := renameFunc(src, staged)
	if err == nil {
		return staged, nil
	}
	if !isCrossDevice(err) {
		return "", err
	}
	return copyNextTo(src, dst)
}

func isCrossDevice(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.EXDEV
}

func copyNextTo(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", err
	}
	tmpName := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	return tmpName, nil
}

// OwnershipError reports a failed chown. Callers usually log it and carry on.
type OwnershipError struct {
	Path string
	Err  error
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("failed to set ownership on %s: %v", e.Path, e.Err)
}

func (e *OwnershipError) Unwrap() error { return e.Err }
