// Package queue talks to the external job runner that executes encodes.
//
// encarne never runs ffmpeg itself. It hands a command string and a working
// directory to a queue and later looks the job up again by that same command
// string. Two backends are provided: Pueue drives the pueue CLI, HTTP talks
// to a JSON job API. Any failure to reach the backend is ErrQueueUnavailable,
// which aborts the run.
package queue
