// Package ingest takes uploaded video files from multipart form to
// published record: validation against the upload allow-list, collision
// free placement under the upload directory, database insertion, and
// hand-off to the background HLS transcode queue.
package ingest
