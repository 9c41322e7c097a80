// Package startup resolves the configuration of an encarne invocation and
// owns the banner, section headers and preflight checks printed before any
// work starts.
//
// # Configuration
//
// Settings are merged by viper in this order, later sources winning:
//
//  1. built-in defaults
//  2. the TOML file ~/.config/encarne/encarne.toml, written with the
//     defaults on first use
//  3. ENCARNE_* environment variables (ENCARNE_ENCODING_CRF, ENCARNE_DEFAULT_MIN_SIZE, ...)
//  4. command line flags bound with [BindFlags]
//
// The file looks like
//
//	[encoding]
//	crf = 18
//	preset = "slow"
//	audio = ""
//	kbitrate-audio = ""
//	threads = 4
//
//	[default]
//	min-size = "6GiB"
//	niceness = 15
//	database = "~/.local/share/encarne/encarne.db"
//	scratch-dir = "~"
//	duration-threshold = "1s"
//	poll-interval = "60s"
//
//	[queue]
//	backend = "pueue"   # or "http" together with url
//
//	[metrics]
//	enabled = false
//	port = "9090"
//	textfile = ""
//
// Sizes accept human units ("6GB", "6GiB"). Durations accept Go syntax or
// plain seconds.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed through
// [GetBuildInfo].
package startup
