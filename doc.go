// Command encarne re-encodes a movie library to x265.
//
// # Usage
//
//	encarne [directory] [-s 6GB] [-c 18] [-p slow] [-a opus --kbitrate-audio 128k] [-t 4]
//	encarne stats
//	encarne clean
//	encarne retry <file> [--yes]
//
// A run walks the directory, asks the movie registry which files still need
// work, submits one ffmpeg job per file to pueue (or to an HTTP job runner)
// and then waits for the jobs in submission order, polling once a minute.
// Finished files are validated by duration and size before they replace the
// original.
//
// Interrupting a run with Ctrl+C leaves queued jobs and their temp files
// alone. Running encarne again finds the jobs by their command line and
// continues waiting.
//
// # Files
//
//   - ~/.config/encarne/encarne.toml: configuration, created on first run
//   - ~/.local/share/encarne/encarne.db: SQLite movie registry
//   - ~/.local/share/encarne/encarne-*.log: one log file per invocation
package main
