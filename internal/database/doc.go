// Package database stores encarne's movie records in SQLite.
//
// A single movies table holds one row per tracked file, indexed by location
// (name, directory, size) and by content hash. Every mutation runs in its
// own transaction; WAL mode lets the stats command read while a run is
// writing. Database implements registry.Store.
package database
