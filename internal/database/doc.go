// Package database provides SQLite storage for the video sharing
// service.
//
// It handles:
//   - Video records and their playback sources (stored file, HLS
//     manifest, external URL) and transcode status
//   - User accounts, bcrypt password hashes, and session tokens
//   - Comments, likes/dislikes, and follows
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
