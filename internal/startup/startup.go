package startup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Nukesor/encarne/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// LoadConfig reads the config file at path (written with defaults when
// missing), applies environment and bound flags from v, and logs the result.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := ReadConfigFile(v, path); err != nil {
		return nil, err
	}
	cfg, err := Resolve(v)
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" && os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}

	logSection("CONFIGURATION")
	logging.Info("  Config file:         %s", cfg.ConfigFile)
	logging.Info("  CRF:                 %d", cfg.Encoding.CRF)
	logging.Info("  Preset:              %s", cfg.Encoding.Preset)
	logging.Info("  Audio:               %s", valueOr(cfg.Encoding.Audio, "copy"))
	if cfg.Encoding.AudioBitrate != "" {
		logging.Info("  Audio bitrate:       %s", cfg.Encoding.AudioBitrate)
	}
	logging.Info("  Threads:             %d", cfg.Encoding.Threads)
	logging.Info("  Niceness:            %d", cfg.Encoding.Niceness)
	logging.Info("  Min size:            %s", humanize.IBytes(uint64(cfg.MinSize)))
	logging.Info("  Duration threshold:  %v", cfg.DurationThreshold)
	logging.Info("  Poll interval:       %v", cfg.PollInterval)
	logging.Info("  Queue:               %s %s", cfg.QueueBackend, cfg.QueueURL)
	logging.Info("  Database:            %s", cfg.DatabasePath)
	logging.Info("  Scratch dir:         %s", cfg.ScratchDir)
	logging.Info("  Metrics:             %s", enabledString(cfg.MetricsEnabled))
	logging.Info("  Log level:           %s", logging.GetLevel())

	logSection("DIRECTORY SETUP")
	if err := ensureDirectory(cfg.ScratchDir, "scratch"); err != nil {
		return nil, fmt.Errorf("scratch directory error: %w", err)
	}
	if err := testWriteAccess(cfg.ScratchDir); err != nil {
		return nil, fmt.Errorf("scratch directory is not writable: %w", err)
	}
	logging.Info("  [OK] Scratch directory is writable")

	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := ensureDirectory(dbDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(dbDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	return cfg, nil
}

// CheckScratchSpace logs the free space in dir and warns when it is below
// need bytes. The encoded file of a movie is written there in full.
func CheckScratchSpace(dir string, need int64) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read free space of %s: %w", dir, err)
	}
	logging.Info("  Scratch free space:  %s of %s", humanize.IBytes(usage.Free), humanize.IBytes(usage.Total))
	if need > 0 && usage.Free < uint64(need) {
		logging.Warn("  Scratch directory has less free space than the minimum file size (%s)", humanize.IBytes(uint64(need)))
	}
	return usage.Free, nil
}

// Check is a named availability test run before any work starts.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Preflight runs every check and returns the first failure.
func Preflight(ctx context.Context, checks ...Check) error {
	logSection("PREFLIGHT")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, c := range checks {
		if err := c.Run(ctx); err != nil {
			logging.Error("  [FAIL] %s: %v", c.Name, err)
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		logging.Info("  [OK] %s", c.Name)
	}
	return nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logSection("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogMetricsServer logs the metrics endpoint.
func LogMetricsServer(port string) {
	logging.Info("  Metrics:  http://localhost:%s/metrics", port)
	logging.Info("  Health:   http://localhost:%s/healthz", port)
}

// LogRunStarted logs the beginning of a run over dir.
func LogRunStarted(dir string) {
	logSection("ENCODING " + dir)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logSection(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
	logging.Info("  Queued jobs and temp files are left as they are")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func logSection(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

func printBanner() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		banner := `
------------------------------------------------------------
   ___  ____  _________ _________  ___
  / _ \/ __ \/ ___/ __ '/ ___/ __ \/ _ \
 /  __/ / / / /__/ /_/ / /  / / / /  __/
 \___/_/ /_/\___/\__,_/_/  /_/ /_/\___/

------------------------------------------------------------`
		fmt.Println(banner)
	}
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	logSection("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		logging.Info("  CPU model:       %s", infos[0].ModelName)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		logging.Info("  Memory:          %s total, %s available",
			humanize.IBytes(vm.Total), humanize.IBytes(vm.Available))
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".encarne-write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
