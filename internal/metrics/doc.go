// Package metrics defines the Prometheus metrics exported by the
// service: HTTP traffic, database queries, upload outcomes, and
// transcode job lifecycle.
package metrics
