package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/Nukesor/encarne/internal/command"
	"github.com/Nukesor/encarne/internal/probe"
	"github.com/Nukesor/encarne/internal/registry"
)

const (
	mib = int64(1) << 20
	gib = int64(1) << 30
)

// fakeProber returns canned codecs by file name.
type fakeProber struct {
	mu     sync.Mutex
	codecs map[string]string
	calls  int
}

func (p *fakeProber) Probe(_ context.Context, path string) (*probe.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	codec, ok := p.codecs[filepath.Base(path)]
	if !ok {
		return nil, probe.ErrProbeFailed
	}
	return &probe.Info{Codec: codec}, nil
}

// sparse creates a file of the given size without writing its contents.
func sparse(t *testing.T, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.Truncate(path, size); err != nil {
		t.Fatalf("failed to size %s: %v", path, err)
	}
}

// pathHash identifies files by path so tests never read sparse gigabytes.
func pathHash(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return "hash:" + path, nil
}

func newTestFilter(t *testing.T, prober probe.Prober, minSize int64) (*Filter, *registry.MemoryStore) {
	t.Helper()
	store := registry.NewMemoryStore()
	reg := registry.New(store).WithHashFunc(pathHash)
	return NewFilter(reg, prober, Config{
		MinSize:    minSize,
		ScratchDir: t.TempDir(),
		Encoding:   command.DefaultEncoding(),
	}), store
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"b/movie.mkv",
		"a/movie.MP4",
		"a/notes.txt",
		"a/.hidden.mkv",
		".cache/inside.mkv",
		"c/d/deep.avi",
	} {
		sparse(t, filepath.Join(root, p), 1)
	}
	if err := os.Symlink(filepath.Join(root, "b/movie.mkv"), filepath.Join(root, "link.mkv")); err != nil {
		t.Fatal(err)
	}

	got, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "a/movie.MP4"),
		filepath.Join(root, "b/movie.mkv"),
		filepath.Join(root, "c/d/deep.avi"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("Scan() =\n  %v\nwant\n  %v", got, want)
	}
}

func TestScan_RelativeRoot(t *testing.T) {
	root := t.TempDir()
	sparse(t, filepath.Join(root, "movie.mkv"), 1)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, err := Scan(context.Background(), ".")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !filepath.IsAbs(got[0]) {
		t.Errorf("Scan(\".\") = %v, want one absolute path", got)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Scan() on a missing root should fail")
	}
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	sparse(t, filepath.Join(root, "movie.mkv"), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Scan(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

// One file above and one below the threshold yields exactly one task.
func TestScanAndFilter_SizeThreshold(t *testing.T) {
	root := t.TempDir()
	big := filepath.Join(root, "big.mkv")
	small := filepath.Join(root, "small.mkv")
	sparse(t, big, 7*gib)
	sparse(t, small, 10*mib)

	prober := &fakeProber{codecs: map[string]string{"big.mkv": "h264", "small.mkv": "h264"}}
	filter, _ := newTestFilter(t, prober, 6*gib)

	paths, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	tasks, stats, err := filter.Filter(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}

	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].OriginPath != big {
		t.Errorf("task for %s, want %s", tasks[0].OriginPath, big)
	}
	if stats.TooSmall != 1 || stats.Found != 2 || stats.Skipped() != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFilter_Decisions(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	files := map[string]int64{
		"plain.mkv":        2 * mib,
		"hevc.mkv":         2 * mib,
		"Show.x265.mkv":    2 * mib,
		"unprobeable.mkv":  2 * mib,
		"encoded-done.mkv": 2 * mib,
		"failed.mkv":       2 * mib,
	}
	for name, size := range files {
		sparse(t, filepath.Join(root, name), size)
	}

	prober := &fakeProber{codecs: map[string]string{
		"plain.mkv":        "h264",
		"hevc.mkv":         "hevc",
		"encoded-done.mkv": "h264",
		"failed.mkv":       "h264",
	}}
	filter, store := newTestFilter(t, prober, mib)

	for name, flags := range map[string][2]bool{"encoded-done.mkv": {true, false}, "failed.mkv": {false, true}} {
		m := &registry.Movie{
			Hash: "hash:" + filepath.Join(root, name), Name: name, Directory: root,
			Size: 2 * mib, OriginalSize: 2 * mib, Encoded: flags[0], Failed: flags[1],
		}
		if err := store.Insert(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := Scan(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	tasks, stats, err := filter.Filter(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, tk := range tasks {
		got = append(got, tk.OriginFile)
	}
	want := []string{"plain.mkv", "unprobeable.mkv"}
	if !slices.Equal(got, want) {
		t.Errorf("tasks = %v, want %v", got, want)
	}

	if stats.Done != 2 || stats.AlreadyEncoded != 2 || stats.Tasks != 2 {
		t.Errorf("stats = %+v", stats)
	}

	for _, name := range []string{"hevc.mkv", "Show.x265.mkv"} {
		m, _ := store.FindByPath(ctx, name, root)
		if m == nil || !m.Encoded {
			t.Errorf("%s was not marked encoded", name)
		}
	}
}

func TestFilter_DuplicateContent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	sparse(t, filepath.Join(root, "a.mkv"), 2*mib)
	sparse(t, filepath.Join(root, "b.mkv"), 2*mib)

	store := registry.NewMemoryStore()
	reg := registry.New(store).WithHashFunc(func(path string) (string, error) { return "same", nil })
	filter := NewFilter(reg, &fakeProber{codecs: map[string]string{"a.mkv": "h264", "b.mkv": "h264"}}, Config{
		MinSize:    mib,
		ScratchDir: t.TempDir(),
		Encoding:   command.DefaultEncoding(),
	})

	paths, _ := Scan(ctx, root)
	tasks, stats, err := filter.Filter(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || stats.Duplicates != 1 {
		t.Errorf("tasks = %d, duplicates = %d; want 1, 1", len(tasks), stats.Duplicates)
	}
}

func TestFilter_VanishedFile(t *testing.T) {
	filter, store := newTestFilter(t, &fakeProber{}, 0)

	tasks, stats, err := filter.Filter(context.Background(), []string{filepath.Join(t.TempDir(), "gone.mkv")})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 || stats.Vanished != 1 {
		t.Errorf("tasks = %d, stats = %+v", len(tasks), stats)
	}
	if all, _ := store.List(context.Background()); len(all) != 0 {
		t.Errorf("registry changed for vanished file: %d records", len(all))
	}
}

func TestFilter_SecondRunProducesNoTasks(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	sparse(t, filepath.Join(root, "movie.mkv"), 2*mib)

	prober := &fakeProber{codecs: map[string]string{"movie.mkv": "h264"}}
	filter, store := newTestFilter(t, prober, mib)

	paths, _ := Scan(ctx, root)
	tasks, _, err := filter.Filter(ctx, paths)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("first run: %d tasks, %v", len(tasks), err)
	}

	reg := registry.New(store)
	if err := reg.MarkFailed(ctx, tasks[0].Movie); err != nil {
		t.Fatal(err)
	}

	tasks, stats, err := filter.Filter(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 || stats.Done != 1 {
		t.Errorf("second run: %d tasks, stats %+v", len(tasks), stats)
	}
}
