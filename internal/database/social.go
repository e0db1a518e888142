package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSelfFollow is returned when a user tries to follow themselves.
var ErrSelfFollow = errors.New("cannot follow yourself")

// AddComment posts a comment on a video.
func (d *Database) AddComment(ctx context.Context, videoID, userID int64, body string) (*Comment, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_comment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"INSERT INTO comments (video_id, user_id, body) VALUES (?, ?, ?)",
		videoID, userID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	id, idErr := result.LastInsertId()
	if idErr != nil {
		err = idErr
		return nil, err
	}

	c := &Comment{
		ID:        id,
		VideoID:   videoID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	// Best effort; the caller usually knows the display name already.
	row := d.db.QueryRowContext(ctx, "SELECT display_name FROM users WHERE id = ?", userID)
	if scanErr := row.Scan(&c.DisplayName); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return nil, fmt.Errorf("failed to resolve commenter: %w", err)
	}

	return c, nil
}

// ListComments returns a video's comments, newest first.
func (d *Database) ListComments(ctx context.Context, videoID int64) ([]Comment, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_comments", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT c.id, c.video_id, c.user_id, c.body, u.display_name, c.created_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.video_id = ?
		ORDER BY c.created_at DESC, c.id DESC`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		var createdAt int64
		if err = rows.Scan(&c.ID, &c.VideoID, &c.UserID, &c.Body, &c.DisplayName, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		comments = append(comments, c)
	}
	err = rows.Err()
	return comments, err
}

// ToggleLike records a like (isLike true) or dislike vote on a video
// and returns the updated counters. Voting the same way twice removes
// the vote; voting the opposite way switches it.
func (d *Database) ToggleLike(ctx context.Context, userID, videoID int64, isLike bool) (likes, dislikes int, err error) {
	start := time.Now()
	defer func() { recordQuery("toggle_like", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var tx *sql.Tx
	tx, err = d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Check the video first so a missing one reads as not-found rather
	// than as a foreign key failure on the insert.
	var one int
	switch scanErr := tx.QueryRowContext(ctx, "SELECT 1 FROM videos WHERE id = ?", videoID).Scan(&one); {
	case errors.Is(scanErr, sql.ErrNoRows):
		err = ErrNotFound
		return 0, 0, err
	case scanErr != nil:
		err = scanErr
		return 0, 0, fmt.Errorf("failed to check video: %w", err)
	}

	var existing bool
	row := tx.QueryRowContext(ctx,
		"SELECT is_like FROM likes WHERE user_id = ? AND video_id = ?", userID, videoID)
	switch scanErr := row.Scan(&existing); {
	case errors.Is(scanErr, sql.ErrNoRows):
		// New vote.
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO likes (user_id, video_id, is_like) VALUES (?, ?, ?)",
			userID, videoID, isLike); err != nil {
			return 0, 0, fmt.Errorf("failed to record vote: %w", err)
		}
		if err = adjustVote(ctx, tx, videoID, isLike, +1); err != nil {
			return 0, 0, err
		}
	case scanErr != nil:
		err = scanErr
		return 0, 0, fmt.Errorf("failed to read vote: %w", err)
	case existing == isLike:
		// Same vote again: remove it.
		if _, err = tx.ExecContext(ctx,
			"DELETE FROM likes WHERE user_id = ? AND video_id = ?", userID, videoID); err != nil {
			return 0, 0, fmt.Errorf("failed to remove vote: %w", err)
		}
		if err = adjustVote(ctx, tx, videoID, isLike, -1); err != nil {
			return 0, 0, err
		}
	default:
		// Opposite vote: switch sides.
		if _, err = tx.ExecContext(ctx,
			"UPDATE likes SET is_like = ? WHERE user_id = ? AND video_id = ?",
			isLike, userID, videoID); err != nil {
			return 0, 0, fmt.Errorf("failed to switch vote: %w", err)
		}
		if err = adjustVote(ctx, tx, videoID, !isLike, -1); err != nil {
			return 0, 0, err
		}
		if err = adjustVote(ctx, tx, videoID, isLike, +1); err != nil {
			return 0, 0, err
		}
	}

	row = tx.QueryRowContext(ctx, "SELECT likes, dislikes FROM videos WHERE id = ?", videoID)
	if scanErr := row.Scan(&likes, &dislikes); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = ErrNotFound
		} else {
			err = scanErr
		}
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit vote: %w", err)
	}
	return likes, dislikes, nil
}

func adjustVote(ctx context.Context, tx *sql.Tx, videoID int64, isLike bool, delta int) error {
	column := "dislikes"
	if isLike {
		column = "likes"
	}
	query := fmt.Sprintf("UPDATE videos SET %s = MAX(0, %s + ?) WHERE id = ?", column, column)
	result, err := tx.ExecContext(ctx, query, delta, videoID)
	if err != nil {
		return fmt.Errorf("failed to update %s counter: %w", column, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFollow follows the target user, or unfollows if already
// following. It returns whether the follower now follows the target.
func (d *Database) ToggleFollow(ctx context.Context, followerID, followedID int64) (following bool, err error) {
	start := time.Now()
	defer func() { recordQuery("toggle_follow", start, err) }()

	if followerID == followedID {
		err = ErrSelfFollow
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followed_id = ?",
		followerID, followedID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unfollow: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return false, nil
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)",
		followerID, followedID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to follow: %w", err)
	}
	return true, nil
}

// IsFollowing reports whether follower follows followed.
func (d *Database) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = ?",
		followerID, followedID,
	).Scan(&n)
	return n > 0, err
}

// FollowerCounts returns how many users follow userID and how many
// userID follows.
func (d *Database) FollowerCounts(ctx context.Context, userID int64) (followers, following int, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM follows WHERE followed_id = ?", userID).Scan(&followers)
	if err != nil {
		return 0, 0, err
	}
	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM follows WHERE follower_id = ?", userID).Scan(&following)
	return followers, following, err
}
