package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Nukesor/encarne/internal/command"
)

// ErrInvalidDirectory is returned when the directory to encode does not
// exist or is not a directory.
var ErrInvalidDirectory = errors.New("invalid directory")

// ErrScratchInLibrary is returned when the scratch directory would be
// scanned as part of the library.
var ErrScratchInLibrary = errors.New("scratch directory inside library")

// Queue backends
const (
	BackendPueue = "pueue"
	BackendHTTP  = "http"
)

// Config is the resolved, read-only configuration for one invocation.
type Config struct {
	Encoding command.Encoding

	// MinSize is the smallest file size, in bytes, worth encoding.
	MinSize           int64
	DatabasePath      string
	ScratchDir        string
	LogDir            string
	LogLevel          string
	DurationThreshold time.Duration
	PollInterval      time.Duration

	QueueBackend  string
	QueueURL      string
	PueueBinary   string
	FFProbeBinary string

	MetricsEnabled  bool
	MetricsPort     string
	MetricsTextfile string

	// ConfigFile is the file the settings were read from.
	ConfigFile string
}

// DefaultConfigPath returns ~/.config/encarne/encarne.toml.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "encarne", "encarne.toml")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

func dataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "encarne")
}

// setDefaults registers every key with its default value.
func setDefaults(v *viper.Viper) {
	enc := command.DefaultEncoding()
	v.SetDefault("encoding.crf", enc.CRF)
	v.SetDefault("encoding.preset", enc.Preset)
	v.SetDefault("encoding.audio", enc.Audio)
	v.SetDefault("encoding.kbitrate-audio", enc.AudioBitrate)
	v.SetDefault("encoding.threads", enc.Threads)

	v.SetDefault("default.min-size", "6GiB")
	v.SetDefault("default.niceness", enc.Niceness)
	v.SetDefault("default.database", filepath.Join(dataDir(), "encarne.db"))
	v.SetDefault("default.scratch-dir", homeDir())
	v.SetDefault("default.log-dir", dataDir())
	v.SetDefault("default.log-level", "info")
	v.SetDefault("default.duration-threshold", "1s")
	v.SetDefault("default.poll-interval", "60s")

	v.SetDefault("queue.backend", BackendPueue)
	v.SetDefault("queue.url", "")
	v.SetDefault("queue.pueue-binary", "pueue")

	v.SetDefault("probe.ffprobe-binary", "ffprobe")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("metrics.textfile", "")
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"size":           "default.min-size",
	"crf":            "encoding.crf",
	"preset":         "encoding.preset",
	"audio":          "encoding.audio",
	"kbitrate-audio": "encoding.kbitrate-audio",
	"threads":        "encoding.threads",
}

// RegisterFlags adds the encoding overrides to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("size", "s", "", "minimum file size to encode, e.g. 6GB")
	flags.IntP("crf", "c", 0, "x265 constant rate factor (0-51)")
	flags.StringP("preset", "p", "", "x265 speed preset")
	flags.StringP("audio", "a", "", "re-encode audio with this codec (aac, flac, opus, ac3)")
	flags.String("kbitrate-audio", "", "audio bitrate, e.g. 128k")
	flags.IntP("threads", "t", 0, "ffmpeg thread count")
}

// BindFlags makes flags take precedence over file and environment.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and the ENCARNE_
// environment prefix. ENCARNE_ENCODING_CRF overrides encoding.crf.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ENCARNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile loads path into v, first writing a file with the defaults
// when none exists yet.
func ReadConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote default configuration to %s\n", path)
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	defaults := viper.New()
	setDefaults(defaults)
	defaults.SetConfigType("toml")
	if err := defaults.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// Resolve turns the merged settings of v into a validated Config.
func Resolve(v *viper.Viper) (*Config, error) {
	minSize, err := humanize.ParseBytes(v.GetString("default.min-size"))
	if err != nil {
		return nil, fmt.Errorf("invalid min-size %q: %w", v.GetString("default.min-size"), err)
	}

	threshold, err := parseDuration(v, "default.duration-threshold")
	if err != nil {
		return nil, err
	}
	poll, err := parseDuration(v, "default.poll-interval")
	if err != nil {
		return nil, err
	}
	if poll <= 0 {
		return nil, fmt.Errorf("poll-interval must be positive")
	}

	cfg := &Config{
		Encoding: command.Encoding{
			CRF:          v.GetInt("encoding.crf"),
			Preset:       v.GetString("encoding.preset"),
			Audio:        v.GetString("encoding.audio"),
			AudioBitrate: v.GetString("encoding.kbitrate-audio"),
			Threads:      v.GetInt("encoding.threads"),
			Niceness:     v.GetInt("default.niceness"),
		},
		MinSize:           int64(minSize),
		DatabasePath:      expandHome(v.GetString("default.database")),
		ScratchDir:        expandHome(v.GetString("default.scratch-dir")),
		LogDir:            expandHome(v.GetString("default.log-dir")),
		LogLevel:          v.GetString("default.log-level"),
		DurationThreshold: threshold,
		PollInterval:      poll,
		QueueBackend:      strings.ToLower(v.GetString("queue.backend")),
		QueueURL:          v.GetString("queue.url"),
		PueueBinary:       v.GetString("queue.pueue-binary"),
		FFProbeBinary:     v.GetString("probe.ffprobe-binary"),
		MetricsEnabled:    v.GetBool("metrics.enabled"),
		MetricsPort:       v.GetString("metrics.port"),
		MetricsTextfile:   expandHome(v.GetString("metrics.textfile")),
		ConfigFile:        v.ConfigFileUsed(),
	}

	if err := cfg.Encoding.Validate(); err != nil {
		return nil, err
	}
	switch cfg.QueueBackend {
	case BackendPueue:
	case BackendHTTP:
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("queue.url is required for the http backend")
		}
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("90s") and plain seconds ("2").
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	if d, err := time.ParseDuration(raw + "s"); err == nil {
		return d, nil
	}
	return 0, fmt.Errorf("invalid %s %q", key, raw)
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// ValidateDirectory returns the absolute form of dir, or ErrInvalidDirectory.
func ValidateDirectory(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, abs)
	}
	return abs, nil
}

// ValidateScratchDir rejects a scratch directory that equals library or
// lies below it, unless a hidden directory on the way keeps it out of scans.
func ValidateScratchDir(scratch, library string) error {
	rel, err := filepath.Rel(realPath(library), realPath(scratch))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if rel != "." {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s is inside %s, set default.scratch-dir to a directory outside the library",
		ErrScratchInLibrary, scratch, library)
}

func realPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
