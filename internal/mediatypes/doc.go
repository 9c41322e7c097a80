// Package mediatypes holds the file and codec classification shared by the
// scanner, the task builder and the filter.
//
// It has no dependencies beyond the standard library, so any package can
// import it without creating a cycle.
//
//	if mediatypes.IsVideo(path) && !mediatypes.HasTargetMarker(path) {
//	    // candidate for encoding
//	}
package mediatypes
