// Package middleware wraps the geoindex HTTP API with a W3C access log and
// per-route Prometheus metrics.
package middleware
