package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const videoColumns = `id, title, description, category, COALESCE(filename, ''),
	COALESCE(external_url, ''), COALESCE(thumb_url, ''), duration, creator,
	views, likes, dislikes, COALESCE(user_id, 0), COALESCE(hls_manifest, ''),
	transcode_status, created_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var createdAt int64

	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.Category, &v.Filename,
		&v.ExternalURL, &v.ThumbURL, &v.Duration, &v.Creator,
		&v.Views, &v.Likes, &v.Dislikes, &v.UserID, &v.HLSManifest,
		&v.TranscodeStatus, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &v, nil
}

// nullable converts "" to NULL so the playback source columns stay
// NULL when unset, matching the resolution invariant.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CreateVideo inserts a video record and fills in its ID and creation
// time. The record only becomes visible to readers once this commits.
func (d *Database) CreateVideo(ctx context.Context, v *Video) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if v.Category == "" {
		v.Category = CategoryTendance
	}

	var result sql.Result
	result, err = d.db.ExecContext(ctx, `
		INSERT INTO videos (title, description, category, filename, external_url,
			thumb_url, duration, creator, user_id, hls_manifest, transcode_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Title, v.Description, string(v.Category), nullable(v.Filename),
		nullable(v.ExternalURL), nullable(v.ThumbURL), v.Duration, v.Creator,
		sql.NullInt64{Int64: v.UserID, Valid: v.UserID != 0},
		nullable(v.HLSManifest), string(v.TranscodeStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	v.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read video id: %w", err)
	}
	v.CreatedAt = time.Now().UTC()
	return nil
}

// GetVideo retrieves a single video by ID.
func (d *Database) GetVideo(ctx context.Context, id int64) (*Video, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_video", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var v *Video
	v, err = scanVideo(d.db.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video %d: %w", id, err)
	}
	return v, nil
}

// ListVideos returns one page of videos, newest first, optionally
// filtered by category and by a case-insensitive title/creator match.
func (d *Database) ListVideos(ctx context.Context, opts ListOptions) (*VideoListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_videos", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 12
	}
	if opts.PerPage > 50 {
		opts.PerPage = 50
	}

	var where []string
	var args []interface{}

	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(opts.Category))
	}
	if opts.Query != "" {
		like := "%" + opts.Query + "%"
		where = append(where, "(title LIKE ? OR creator LIKE ?)")
		args = append(args, like, like)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	listing := &VideoListing{
		Items:   []Video{},
		Page:    opts.Page,
		PerPage: opts.PerPage,
	}

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos"+clause, args...).Scan(&listing.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count videos: %w", err)
	}

	query := "SELECT " + videoColumns + " FROM videos" + clause +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, scanErr := scanVideo(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		listing.Items = append(listing.Items, *v)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return listing, nil
}

// SuggestedVideos returns up to limit videos from the same category,
// excluding the video itself, newest first.
func (d *Database) SuggestedVideos(ctx context.Context, id int64, category Category, limit int) ([]Video, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id != ? AND category = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		id, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

// ListUserVideos returns all videos owned by a user, newest first.
func (d *Database) ListUserVideos(ctx context.Context, userID int64) ([]Video, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func collectVideos(rows *sql.Rows) ([]Video, error) {
	videos := []Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// IncrementViews bumps the view counter and returns the new count.
func (d *Database) IncrementViews(ctx context.Context, id int64) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("increment_views", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var views int64
	err = d.db.QueryRowContext(ctx,
		"UPDATE videos SET views = views + 1 WHERE id = ? RETURNING views", id).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment views for video %d: %w", id, err)
	}
	return views, nil
}

// SetVideoManifest attaches the HLS manifest produced by a successful
// transcode and marks the video ready. The manifest is only ever set
// here, so playback resolution can trust a non-empty value.
func (d *Database) SetVideoManifest(ctx context.Context, id int64, relPath string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_manifest", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"UPDATE videos SET hls_manifest = ?, transcode_status = ? WHERE id = ?",
		relPath, string(TranscodeReady), id)
	if err != nil {
		return fmt.Errorf("failed to set manifest for video %d: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// SetTranscodeStatus updates only the transcode status.
func (d *Database) SetTranscodeStatus(ctx context.Context, id int64, status TranscodeStatus) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_transcode_status", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"UPDATE videos SET transcode_status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set transcode status for video %d: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// PendingTranscodes returns the IDs of videos whose transcode never
// completed, oldest first. Used to refill the queue after a restart.
func (d *Database) PendingTranscodes(ctx context.Context) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT id FROM videos WHERE transcode_status = ? ORDER BY created_at ASC, id ASC",
		string(TranscodePending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transcodes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountVideos returns the total number of videos.
func (d *Database) CountVideos(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&n)
	return n, err
}
