// Package handlers provides the HTTP API of the geoindex service.
//
// It includes handlers for:
//   - Registering and removing tracked directories
//   - Querying boundary records by parent, subtree or intersecting box
//   - Triggering reindex passes and reading the last pass report
//   - Moving, copying and listing matched files
//   - Health checks, version and store statistics
package handlers
