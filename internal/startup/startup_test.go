package startup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

// isolatedHome points HOME at a temp dir so defaults never touch the real one.
func isolatedHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestResolveDefaults(t *testing.T) {
	home := isolatedHome(t)

	cfg, err := Resolve(NewViper())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if cfg.Encoding.CRF != 18 || cfg.Encoding.Preset != "slow" || cfg.Encoding.Threads != 4 {
		t.Errorf("encoding = %+v", cfg.Encoding)
	}
	if cfg.Encoding.Niceness != 15 {
		t.Errorf("niceness = %d, want 15", cfg.Encoding.Niceness)
	}
	if cfg.MinSize != 6<<30 {
		t.Errorf("MinSize = %d, want 6 GiB", cfg.MinSize)
	}
	if cfg.PollInterval != time.Minute || cfg.DurationThreshold != time.Second {
		t.Errorf("intervals = %v / %v", cfg.PollInterval, cfg.DurationThreshold)
	}
	if cfg.QueueBackend != BackendPueue {
		t.Errorf("backend = %q", cfg.QueueBackend)
	}
	if want := filepath.Join(home, ".local", "share", "encarne", "encarne.db"); cfg.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.DatabasePath, want)
	}
	if cfg.ScratchDir != home {
		t.Errorf("ScratchDir = %q, want %q", cfg.ScratchDir, home)
	}
}

func TestReadConfigFileWritesDefaults(t *testing.T) {
	isolatedHome(t)
	path := filepath.Join(t.TempDir(), "conf", "encarne.toml")

	v := NewViper()
	if err := ReadConfigFile(v, path); err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	for _, want := range []string{"[encoding]", "[default]", "crf = 18", "preset = 'slow'"} {
		if !strings.Contains(string(data), want) && !strings.Contains(string(data), strings.ReplaceAll(want, "'", `"`)) {
			t.Errorf("default config missing %q:\n%s", want, data)
		}
	}
	if v.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q", v.ConfigFileUsed())
	}
}

func TestConfigPrecedence(t *testing.T) {
	isolatedHome(t)
	path := filepath.Join(t.TempDir(), "encarne.toml")
	content := `
[encoding]
crf = 20
preset = "medium"
threads = 2

[default]
min-size = "1GB"
poll-interval = "5"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENCARNE_ENCODING_PRESET", "fast")
	t.Setenv("ENCARNE_ENCODING_THREADS", "8")

	flags := pflag.NewFlagSet("encarne", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse([]string{"-t", "6", "--audio", "opus", "--kbitrate-audio", "128k"}); err != nil {
		t.Fatal(err)
	}

	v := NewViper()
	if err := BindFlags(v, flags); err != nil {
		t.Fatal(err)
	}
	if err := ReadConfigFile(v, path); err != nil {
		t.Fatal(err)
	}
	cfg, err := Resolve(v)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"crf from file", cfg.Encoding.CRF, 20},
		{"preset from env", cfg.Encoding.Preset, "fast"},
		{"threads from flag", cfg.Encoding.Threads, 6},
		{"audio from flag", cfg.Encoding.Audio, "opus"},
		{"bitrate from flag", cfg.Encoding.AudioBitrate, "128k"},
		{"min-size from file", cfg.MinSize, int64(1_000_000_000)},
		{"poll interval in seconds", cfg.PollInterval, 5 * time.Second},
		{"niceness default", cfg.Encoding.Niceness, 15},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"bad min-size", map[string]interface{}{"default.min-size": "lots"}},
		{"bad duration", map[string]interface{}{"default.duration-threshold": "soon"}},
		{"zero poll", map[string]interface{}{"default.poll-interval": "0s"}},
		{"crf out of range", map[string]interface{}{"encoding.crf": 60}},
		{"unknown preset", map[string]interface{}{"encoding.preset": "turbo"}},
		{"unknown backend", map[string]interface{}{"queue.backend": "slurm"}},
		{"http without url", map[string]interface{}{"queue.backend": "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolatedHome(t)
			v := NewViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			if _, err := Resolve(v); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResolveHTTPBackend(t *testing.T) {
	isolatedHome(t)
	v := NewViper()
	v.Set("queue.backend", "HTTP")
	v.Set("queue.url", "http://runner:8080")

	cfg, err := Resolve(v)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.QueueBackend != BackendHTTP || cfg.QueueURL != "http://runner:8080" {
		t.Errorf("queue = %s %s", cfg.QueueBackend, cfg.QueueURL)
	}
}

func TestExpandHome(t *testing.T) {
	home := isolatedHome(t)

	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/movies", filepath.Join(home, "movies")},
		{"/srv/movies", "/srv/movies"},
		{"~other/movies", "~other/movies"},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ValidateDirectory(dir)
	if err != nil || got != dir {
		t.Errorf("ValidateDirectory(dir) = %q, %v", got, err)
	}

	for _, bad := range []string{file, filepath.Join(dir, "missing")} {
		if _, err := ValidateDirectory(bad); !errors.Is(err, ErrInvalidDirectory) {
			t.Errorf("ValidateDirectory(%q) error = %v, want ErrInvalidDirectory", bad, err)
		}
	}
}

func TestValidateScratchDir(t *testing.T) {
	base := t.TempDir()
	library := filepath.Join(base, "movies")
	for _, dir := range []string{
		filepath.Join(library, ".encarne"),
		filepath.Join(library, "scratch"),
		filepath.Join(base, "scratch"),
		library + "-scratch",
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(library, link); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		scratch string
		wantErr bool
	}{
		{"same as library", library, true},
		{"below library", filepath.Join(library, "scratch"), true},
		{"symlink to library", link, true},
		{"parent of library", base, false},
		{"sibling", filepath.Join(base, "scratch"), false},
		{"name sharing a prefix", library + "-scratch", false},
		{"hidden below library", filepath.Join(library, ".encarne"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScratchDir(tt.scratch, library)
			if tt.wantErr && !errors.Is(err, ErrScratchInLibrary) {
				t.Errorf("ValidateScratchDir(%q) error = %v, want ErrScratchInLibrary", tt.scratch, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateScratchDir(%q) error = %v, want nil", tt.scratch, err)
			}
		})
	}
}

func TestLoadConfigPreparesDirectories(t *testing.T) {
	home := isolatedHome(t)
	v := NewViper()
	v.Set("default.scratch-dir", "~/scratch")
	v.Set("default.database", "~/db/encarne.db")

	cfg, err := LoadConfig(v, filepath.Join(home, "encarne.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	for _, dir := range []string{cfg.ScratchDir, filepath.Dir(cfg.DatabasePath)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}
}

func TestCheckScratchSpace(t *testing.T) {
	free, err := CheckScratchSpace(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("CheckScratchSpace() error = %v", err)
	}
	if free == 0 {
		t.Error("expected some free space in the temp dir")
	}

	if _, err := CheckScratchSpace(filepath.Join(t.TempDir(), "missing"), 1); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestPreflight(t *testing.T) {
	var ran []string
	ok := func(name string) Check {
		return Check{Name: name, Run: func(context.Context) error {
			ran = append(ran, name)
			return nil
		}}
	}
	boom := errors.New("not installed")

	if err := Preflight(context.Background(), ok("ffprobe"), ok("queue")); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}

	ran = nil
	err := Preflight(context.Background(),
		ok("ffprobe"),
		Check{Name: "queue", Run: func(context.Context) error { return boom }},
		ok("never"))
	if !errors.Is(err, boom) {
		t.Errorf("Preflight() error = %v, want %v", err, boom)
	}
	if len(ran) != 1 {
		t.Errorf("checks after a failure should not run, ran %v", ran)
	}
}
