// Command trackdir manages the directories a geoindex database tracks,
// without going through the HTTP API.
//
// Usage:
//
//	trackdir [--db path] <command>
//
// Commands:
//
//	add <dir>...   Start tracking one or more directories. Paths are made
//	               absolute; directories already tracked are reported and
//	               left alone.
//
//	remove <dir>   Stop tracking a directory. Its boundary records are
//	               deleted with it. When stdin is a terminal the command asks
//	               for confirmation unless --yes is given.
//
//	list           Print every tracked directory with its record count and
//	               the time of its last committed scan.
//
//	scan           Run one reconciliation pass in the foreground and print
//	               the outcome of each directory. --force rescans directories
//	               whose mtime is unchanged. Exits non-zero if any directory
//	               partially failed.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
//
// The server does not need to be stopped. Directories added here are picked
// up by its next pass.
package main
