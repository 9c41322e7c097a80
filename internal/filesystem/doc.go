/*
Package filesystem wraps the file operations encarne performs on the movie
library and the scratch directory.

# NFS retries

Movie libraries frequently live on NFS mounts. StatWithRetry and
OpenWithRetry retry ESTALE (stale file handle) errors with exponential
backoff; every other error is returned immediately.

	info, err := filesystem.StatWithRetry("/srv/movies/heat.mkv", filesystem.DefaultRetryConfig())

The defaults are three retries starting at 50ms and capped at 500ms. Retries
are reported to an Observer, keyed by operation and by the volume label a
VolumeResolver assigns to the path ("library", "scratch", "database"). The
metrics package provides the Observer; until one is set, observations are
dropped.

# Hashing

HashFile returns the hex SHA-1 of a file's contents. The registry uses it to
recognise movies that were renamed or moved.

# Moving encoded files

MoveFile renames a file and falls back to copy-then-rename when the scratch
directory and the library live on different filesystems. CopyAttributes
carries permission bits and ownership from the original file over to its
replacement; a failed chown is reported as *OwnershipError so callers can log
it without aborting.
*/
package filesystem
