// Package registry tracks the identity and encode state of every movie
// encarne has looked at.
//
// A movie is identified by the SHA-1 of its contents. The cheap lookup is by
// (name, directory, size); only when that misses is the file hashed, which
// lets the registry follow renames and moves without re-encoding anything.
// At most one record exists per hash, and a record that is encoded or failed
// is never handed out for encoding again.
//
// The Registry is backed by a Store: the SQLite database in production and
// MemoryStore in tests.
package registry
