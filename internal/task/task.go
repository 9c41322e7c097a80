// Package task defines the unit of work handed from the filter to the
// reconciler.
package task

import (
	"path/filepath"
	"strings"

	"github.com/Nukesor/encarne/internal/command"
	"github.com/Nukesor/encarne/internal/mediatypes"
	"github.com/Nukesor/encarne/internal/registry"
)

// Task is a single file to encode. It lives for one run only; outcomes are
// persisted through its Movie.
type Task struct {
	OriginPath   string
	OriginFolder string
	OriginFile   string

	// TempPath is where ffmpeg writes, inside the scratch directory so the
	// scanner never picks up half-written output.
	TempPath string
	// TargetPath is the final location next to the origin.
	TargetPath string

	Args    []string
	Command string

	Movie *registry.Movie
}

// New builds the task for originPath. originPath must be absolute.
func New(originPath, scratchDir string, enc command.Encoding, movie *registry.Movie) *Task {
	folder, file := filepath.Split(originPath)
	folder = filepath.Clean(folder)

	name := TargetName(file)
	t := &Task{
		OriginPath:   originPath,
		OriginFolder: folder,
		OriginFile:   file,
		TempPath:     filepath.Join(scratchDir, name),
		TargetPath:   filepath.Join(folder, name),
		Movie:        movie,
	}
	t.Args = command.Build(enc, t.OriginPath, t.TempPath)
	t.Command = command.Join(t.Args)
	return t
}

// TargetName derives the encoded file name: "x264" becomes "x265", otherwise
// "-x265" is appended, and the container is always Matroska.
func TargetName(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	if strings.Contains(base, "x264") {
		base = strings.ReplaceAll(base, "x264", "x265")
	} else {
		base += "-x265"
	}
	return base + mediatypes.TargetContainer
}

// TargetFile returns the file name of TargetPath.
func (t *Task) TargetFile() string {
	return filepath.Base(t.TargetPath)
}
