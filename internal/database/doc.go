// Package database is the SQLite boundary store.
//
// It holds two tables:
//   - directories: tracked roots and the directory mtime seen at their last
//     committed scan
//   - boundaries: one WGS84 box per file, keyed by path, with a cascading
//     foreign key to the owning tracked directory
//
// Every operation acquires a pooled connection for its own duration and
// writes in its own transaction, so a failed insert never rolls back records
// written before it. The database runs in WAL mode with foreign keys on.
package database
