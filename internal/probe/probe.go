package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrProbeFailed is returned when a file could not be inspected.
var ErrProbeFailed = errors.New("probe failed")

// UnknownCodec is reported when the video codec could not be determined.
const UnknownCodec = "unknown"

// Info holds what encarne needs to know about a media file.
type Info struct {
	// Codec is the codec_name of the primary video stream, e.g. "h264".
	Codec string
	// Encoder is the ENCODER tag of the primary video stream, e.g.
	// "Lavc60.3.100 libx265". Often empty.
	Encoder string
	// Duration is only meaningful when DurationKnown is set.
	Duration      time.Duration
	DurationKnown bool
}

// CodecName returns the video codec, or "unknown".
func (i *Info) CodecName() string {
	if i == nil || i.Codec == "" {
		return UnknownCodec
	}
	return i.Codec
}

// Prober inspects media files.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FFProbe runs the ffprobe binary.
type FFProbe struct {
	Binary string
}

// NewFFProbe returns a prober using binary, defaulting to "ffprobe".
func NewFFProbe(binary string) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{Binary: binary}
}

// Probe runs a single ffprobe JSON call against path.
func (p *FFProbe) Probe(ctx context.Context, path string) (*Info, error) {
	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffprobe %q: %v %s", ErrProbeFailed, path, err, strings.TrimSpace(stderr.String()))
	}

	info, err := ParseJSON(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Check verifies that the ffprobe binary can be executed.
func (p *FFProbe) Check(ctx context.Context) error {
	if err := exec.CommandContext(ctx, p.Binary, "-version").Run(); err != nil {
		return fmt.Errorf("%s is not available: %w", p.Binary, err)
	}
	return nil
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Duration    string            `json:"duration"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

// ParseJSON converts raw ffprobe JSON output into an Info.
func ParseJSON(data []byte) (*Info, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe JSON: %v", ErrProbeFailed, err)
	}

	info := &Info{}
	var video *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType == "video" && s.Disposition["attached_pic"] != 1 {
			video = s
			break
		}
	}

	if video != nil {
		info.Codec = video.CodecName
		info.Encoder = tag(video.Tags, "ENCODER")
	}

	// Matroska leaves stream durations empty and stores them as tags instead
	candidates := []string{raw.Format.Duration}
	if video != nil {
		candidates = append(candidates, video.Duration, tag(video.Tags, "DURATION"))
	}
	for _, c := range candidates {
		if d, ok := parseDuration(c); ok {
			info.Duration = d
			info.DurationKnown = true
			break
		}
	}

	return info, nil
}

func tag(tags map[string]string, key string) string {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// parseDuration accepts seconds ("5400.042000") and clock notation
// ("01:30:00.042000000").
func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, false
	}

	if !strings.Contains(s, ":") {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || secs <= 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	secs, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(secs*float64(time.Second))
	if d <= 0 {
		return 0, false
	}
	return d, true
}
