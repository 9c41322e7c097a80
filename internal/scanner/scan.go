package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Nukesor/encarne/internal/logging"
	"github.com/Nukesor/encarne/internal/mediatypes"
	"github.com/Nukesor/encarne/internal/metrics"
)

// Scan returns the absolute paths of all video files below root, sorted
// lexicographically. Hidden files and directories are skipped.
func Scan(ctx context.Context, root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == absRoot {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path == absRoot {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !mediatypes.IsVideo(path) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	metrics.ScannerFilesFound.Set(float64(len(paths)))
	logging.Debug("Scan of %s found %d video files", absRoot, len(paths))
	return paths, nil
}
