package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"mitabo/internal/logging"
	"mitabo/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all storage operations for the service.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Database instance. dbPath is the full path to the
// database file; the parent directory must already exist and be
// writable (startup.LoadConfig validates this before calling).
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := checkDirWritable(filepath.Dir(dbPath)); err != nil {
		logging.Warn("Database directory diagnostics: %v", err)
	}

	// WAL mode plus busy_timeout to keep concurrent readers from
	// hitting "database is locked" during upload commits.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT 'default.png',
		bio TEXT,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'tendance',
		filename TEXT,
		external_url TEXT,
		thumb_url TEXT,
		duration TEXT NOT NULL DEFAULT '',
		creator TEXT NOT NULL DEFAULT 'Anonyme',
		views INTEGER NOT NULL DEFAULT 0,
		likes INTEGER NOT NULL DEFAULT 0,
		dislikes INTEGER NOT NULL DEFAULT 0,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		hls_manifest TEXT,
		transcode_status TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_videos_category ON videos(category);
	CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);
	CREATE INDEX IF NOT EXISTS idx_videos_user ON videos(user_id);
	CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(transcode_status);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_comments_video ON comments(video_id);
	CREATE INDEX IF NOT EXISTS idx_comments_user ON comments(user_id);

	CREATE TABLE IF NOT EXISTS likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		is_like INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(user_id, video_id)
	);

	CREATE TABLE IF NOT EXISTS follows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		followed_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(follower_id, followed_id)
	);

	CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	err = d.runMigrations(ctx)
	return err
}

// runMigrations applies schema migrations for databases created by
// earlier versions.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: add transcode_status to videos created before the
	// background transcode queue existed.
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('videos')
		WHERE name='transcode_status'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for transcode_status column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding transcode_status column to videos table")

		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE videos ADD COLUMN transcode_status TEXT NOT NULL DEFAULT ''
		`)
		if err != nil {
			return fmt.Errorf("failed to add transcode_status column: %w", err)
		}

		// Rows that already carry a manifest were transcoded by the old
		// synchronous path.
		_, err = d.db.ExecContext(ctx, `
			UPDATE videos SET transcode_status = 'ready'
			WHERE hls_manifest IS NOT NULL AND hls_manifest != ''
		`)
		if err != nil {
			return fmt.Errorf("failed to backfill transcode_status: %w", err)
		}

		logging.Info("Migration complete: transcode_status column added")
	}

	return nil
}

// Seed inserts the demo account and demo video on a fresh database.
func (d *Database) Seed(ctx context.Context) error {
	var users int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		return err
	}

	if users == 0 {
		if _, err := d.CreateUser(ctx, "demo", "demo@mitabo.dev", "Demo", "demo1234"); err != nil {
			return fmt.Errorf("failed to create demo user: %w", err)
		}
		logging.Info("Demo user created: demo@mitabo.dev / demo1234")
	}

	var videos int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&videos); err != nil {
		return err
	}

	if videos == 0 {
		user, err := d.GetUserByUsername(ctx, "demo")
		if err != nil {
			return err
		}
		demo := &Video{
			Title:       "Big Buck Bunny (démo)",
			Description: "Vidéo de démonstration pour Mitabo.",
			Category:    CategoryFilm,
			ExternalURL: "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
			ThumbURL:    "https://picsum.photos/seed/mitabo-demo/640/360",
			Duration:    "10:34",
			Creator:     "Mitabo",
			UserID:      user.ID,
		}
		if err := d.CreateVideo(ctx, demo); err != nil {
			return fmt.Errorf("failed to create demo video: %w", err)
		}
		logging.Info("Demo video created")
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection, for readiness checks.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// UpdateDBMetrics updates database connection metrics.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// checkDirWritable probes that dir exists and accepts writes.
func checkDirWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("database path parent %s is not a directory", dir)
	}

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
