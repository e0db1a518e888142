// Package handlers implements the HTTP API: authentication, video
// listing and playback, uploads, social actions, and the media and
// HLS file mounts.
package handlers
