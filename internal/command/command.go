package command

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/kballard/go-shellquote"
)

// Presets are the x265 speed presets, fastest first.
var Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// AudioCodecs are the accepted audio re-encode codecs. The empty string
// copies audio streams unchanged.
var AudioCodecs = []string{"", "aac", "flac", "opus", "ac3"}

// Encoding configures the ffmpeg command.
type Encoding struct {
	CRF          int
	Preset       string
	Audio        string
	AudioBitrate string
	Threads      int
	Niceness     int
}

// DefaultEncoding returns the settings used when nothing is configured.
func DefaultEncoding() Encoding {
	return Encoding{
		CRF:      18,
		Preset:   "slow",
		Threads:  4,
		Niceness: 15,
	}
}

// Validate checks every field against the range ffmpeg and nice accept.
func (e Encoding) Validate() error {
	if e.CRF < 0 || e.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", e.CRF)
	}
	if !slices.Contains(Presets, e.Preset) {
		return fmt.Errorf("unknown preset %q", e.Preset)
	}
	if !slices.Contains(AudioCodecs, e.Audio) {
		return fmt.Errorf("unsupported audio codec %q", e.Audio)
	}
	if e.AudioBitrate != "" && e.Audio == "" {
		return fmt.Errorf("audio bitrate %q requires an audio codec", e.AudioBitrate)
	}
	if e.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", e.Threads)
	}
	if e.Niceness < -20 || e.Niceness > 19 {
		return fmt.Errorf("niceness must be between -20 and 19, got %d", e.Niceness)
	}
	return nil
}

// Build returns the argument vector encoding src into dst. Every stream is
// mapped and copied, then the video stream is re-encoded with libx265 and,
// when configured, the audio streams with the configured codec.
func Build(cfg Encoding, src, dst string) []string {
	args := []string{
		"nice", "-n", strconv.Itoa(cfg.Niceness),
		"ffmpeg", "-nostdin",
		"-i", src,
		"-map", "0",
		"-c", "copy",
		"-c:v", "libx265",
		"-preset", cfg.Preset,
		"-x265-params", fmt.Sprintf("crf=%d:pools=none", cfg.CRF),
		"-threads", strconv.Itoa(cfg.Threads),
	}

	if cfg.Audio != "" {
		args = append(args, "-c:a", cfg.Audio)
		if cfg.AudioBitrate != "" {
			args = append(args, "-b:a", cfg.AudioBitrate)
		}
	}

	return append(args, dst)
}

// Join flattens args into a single shell-safe command string.
func Join(args []string) string {
	return shellquote.Join(args...)
}

// Split parses a command string produced by Join.
func Split(command string) ([]string, error) {
	return shellquote.Split(command)
}
