// Package manifest reads and writes HLS master playlists.
//
// The transcoder normally relies on ffmpeg to emit master.m3u8; this
// package exists for the fallback case where the encoder produces the
// per-rendition playlists but omits the master, and for validating
// playlist output in tests.
package manifest
