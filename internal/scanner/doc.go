// Package scanner finds encode candidates below a directory and decides
// which of them still need encoding.
//
// Scan walks the tree and returns every video file, sorted. Filter resolves
// each file against the registry, drops files that are already encoded,
// failed before, already HEVC or too small, and builds a task for the rest.
package scanner
