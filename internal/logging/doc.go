// Package logging provides a simple leveled logging interface for geoindex.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions (unknown CRS, failed reprojection, unreadable files)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true. Components are handed a *Logger tagged with their name so all
// output goes through the same sink.
package logging
