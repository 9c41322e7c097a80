package command

import (
	"slices"
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		cfg  Encoding
		want []string
	}{
		{
			name: "audio copied",
			cfg:  DefaultEncoding(),
			want: []string{
				"nice", "-n", "15", "ffmpeg", "-nostdin", "-i", "/in.mkv",
				"-map", "0", "-c", "copy", "-c:v", "libx265", "-preset", "slow",
				"-x265-params", "crf=18:pools=none", "-threads", "4", "/out.mkv",
			},
		},
		{
			name: "audio re-encoded with bitrate",
			cfg: Encoding{
				CRF: 22, Preset: "medium", Audio: "opus", AudioBitrate: "128k", Threads: 8, Niceness: 10,
			},
			want: []string{
				"nice", "-n", "10", "ffmpeg", "-nostdin", "-i", "/in.mkv",
				"-map", "0", "-c", "copy", "-c:v", "libx265", "-preset", "medium",
				"-x265-params", "crf=22:pools=none", "-threads", "8",
				"-c:a", "opus", "-b:a", "128k", "/out.mkv",
			},
		},
		{
			name: "audio re-encoded without bitrate",
			cfg:  Encoding{CRF: 18, Preset: "slow", Audio: "flac", Threads: 0, Niceness: 0},
			want: []string{
				"nice", "-n", "0", "ffmpeg", "-nostdin", "-i", "/in.mkv",
				"-map", "0", "-c", "copy", "-c:v", "libx265", "-preset", "slow",
				"-x265-params", "crf=18:pools=none", "-threads", "0",
				"-c:a", "flac", "/out.mkv",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.cfg, "/in.mkv", "/out.mkv")
			if !slices.Equal(got, tt.want) {
				t.Errorf("Build() =\n  %q\nwant\n  %q", got, tt.want)
			}
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := DefaultEncoding()
	a := Join(Build(cfg, "/a b.mkv", "/c.mkv"))
	b := Join(Build(cfg, "/a b.mkv", "/c.mkv"))
	if a != b {
		t.Errorf("Build() is not deterministic: %q vs %q", a, b)
	}
}

func TestJoin_QuotesHostileNames(t *testing.T) {
	names := []string{
		"/srv/movies/Heat (1995).mkv",
		"/srv/movies/it's a movie.mkv",
		"/srv/movies/$(rm -rf ~); `id`.mkv",
		"/srv/movies/Amélie – 2001 ★.mkv",
		"/srv/movies/semi;colon & pipe|.mkv",
	}

	for _, src := range names {
		t.Run(src, func(t *testing.T) {
			args := Build(DefaultEncoding(), src, "/scratch/out.mkv")
			joined := Join(args)

			back, err := Split(joined)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if !slices.Equal(back, args) {
				t.Errorf("round trip changed arguments:\n  %q\n  %q", back, args)
			}
			if strings.Contains(joined, " "+src+" ") {
				t.Errorf("source path was not quoted: %s", joined)
			}
		})
	}
}

func TestEncodingValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Encoding)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Encoding) {}, wantErr: false},
		{name: "crf lower bound", modify: func(e *Encoding) { e.CRF = 0 }, wantErr: false},
		{name: "crf upper bound", modify: func(e *Encoding) { e.CRF = 51 }, wantErr: false},
		{name: "crf too high", modify: func(e *Encoding) { e.CRF = 52 }, wantErr: true},
		{name: "crf negative", modify: func(e *Encoding) { e.CRF = -1 }, wantErr: true},
		{name: "unknown preset", modify: func(e *Encoding) { e.Preset = "turbo" }, wantErr: true},
		{name: "placebo preset", modify: func(e *Encoding) { e.Preset = "placebo" }, wantErr: false},
		{name: "aac audio", modify: func(e *Encoding) { e.Audio = "aac" }, wantErr: false},
		{name: "unknown audio", modify: func(e *Encoding) { e.Audio = "mp3" }, wantErr: true},
		{name: "bitrate without codec", modify: func(e *Encoding) { e.AudioBitrate = "128k" }, wantErr: true},
		{name: "negative threads", modify: func(e *Encoding) { e.Threads = -2 }, wantErr: true},
		{name: "niceness too low", modify: func(e *Encoding) { e.Niceness = -21 }, wantErr: true},
		{name: "niceness too high", modify: func(e *Encoding) { e.Niceness = 20 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEncoding()
			tt.modify(&e)
			err := e.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
