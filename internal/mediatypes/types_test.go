package mediatypes

import "testing"

func TestIsVideo(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "MKV video", path: "/srv/movies/heat.mkv", want: true},
		{name: "uppercase extension", path: "/srv/movies/HEAT.MP4", want: true},
		{name: "AVI video", path: "old.avi", want: true},
		{name: "WebM video", path: "clip.webm", want: true},
		{name: "WebP image", path: "poster.webp", want: false},
		{name: "subtitle", path: "heat.srt", want: false},
		{name: "no extension", path: "README", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVideo(tt.path); got != tt.want {
				t.Errorf("IsVideo(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsTargetCodec(t *testing.T) {
	tests := []struct {
		codec string
		want  bool
	}{
		{"hevc", true},
		{"HEVC", true},
		{"h265", true},
		{"x265 - H.265/HEVC codec - Copyright 2013-2018", true},
		{"h264", false},
		{"x264 core 155", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			if got := IsTargetCodec(tt.codec); got != tt.want {
				t.Errorf("IsTargetCodec(%q) = %v, want %v", tt.codec, got, tt.want)
			}
		})
	}
}

func TestHasTargetMarker(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/srv/Heat.1995.x265.mkv", true},
		{"/srv/heat-x265.mkv", true},
		{"/srv/Heat.1995.H265.mkv", true},
		{"/srv/Heat.1995.x264.mkv", false},
		{"/srv/x265/heat.mkv", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := HasTargetMarker(tt.path); got != tt.want {
				t.Errorf("HasTargetMarker(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
