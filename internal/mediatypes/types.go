package mediatypes

import (
	"path/filepath"
	"strings"
)

// UploadExtensions maps file extensions to whether they are accepted
// for upload. Only progressive video containers are allowed in; HLS
// artifacts are produced by the transcoder, never uploaded.
var UploadExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".mov":  true,
	".m4v":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Upload containers
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mov":  "video/quicktime",
	".m4v":  "video/x-m4v",

	// HLS artifacts
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
}

// IsAllowedUpload reports whether a filename carries an accepted upload
// extension. The check is case-insensitive; a missing extension fails.
func IsAllowedUpload(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return UploadExtensions[ext]
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should include the leading dot (e.g., ".mp4").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}
