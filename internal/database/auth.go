package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mitabo/internal/logging"
)

// SessionDuration is the length of time a session remains valid.
const SessionDuration = 7 * 24 * time.Hour

// ErrInvalidCredentials is returned when login fails; it does not
// reveal whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrDuplicateUser is returned when the username or email is taken.
var ErrDuplicateUser = errors.New("username or email already in use")

const userColumns = `id, username, email, password_hash, display_name,
	avatar, COALESCE(bio, ''), is_admin, created_at`

func scanUser(row rowScanner) (*User, error) {
	var u User
	var createdAt int64

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Avatar, &u.Bio, &u.IsAdmin, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (d *Database) CreateUser(ctx context.Context, username, email, displayName, password string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var hash []byte
	hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, display_name) VALUES (?, ?, ?, ?)",
		username, email, string(hash), displayName,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err = ErrDuplicateUser
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, idErr := result.LastInsertId()
	if idErr != nil {
		err = idErr
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	return &User{
		ID:          id,
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		Avatar:      "default.png",
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// GetUserByID retrieves a user by ID.
func (d *Database) GetUserByID(ctx context.Context, id int64) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(d.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(d.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUserByUsername retrieves a user by username, case-insensitively.
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(d.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ValidateCredentials checks an email/password pair and returns the
// user on success.
func (d *Database) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_credentials", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	email = strings.ToLower(strings.TrimSpace(email))

	var u *User
	u, err = scanUser(d.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrInvalidCredentials
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		err = ErrInvalidCredentials
		return nil, err
	}

	return u, nil
}

// UpdatePassword replaces a user's password hash and invalidates all
// of their sessions.
func (d *Database) UpdatePassword(ctx context.Context, userID int64, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := d.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", string(hash), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	if _, err := d.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		logging.Error("failed to invalidate sessions after password change: %v", err)
	}
	return nil
}

// PromoteUser grants admin rights.
func (d *Database) PromoteUser(ctx context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"UPDATE users SET is_admin = 1 WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to promote user %d: %w", userID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes an account. Their videos survive with the owner
// cleared; comments, likes, follows, and sessions cascade away.
func (d *Database) DeleteUser(ctx context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession creates a new session for the user.
func (d *Database) CreateSession(ctx context.Context, userID int64) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	expiresAt := time.Now().Add(SessionDuration)

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, token, expiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	id, idErr := result.LastInsertId()
	if idErr != nil {
		err = idErr
		return nil, err
	}

	return &Session{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ValidateSession checks a session token and returns the session's
// user. Expired sessions fail validation even before the sweeper
// removes them.
func (d *Database) ValidateSession(ctx context.Context, token string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u *User
	u, err = scanUser(d.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.display_name,
			u.avatar, COALESCE(u.bio, ''), u.is_admin, u.created_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().Unix()))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}
	return u, nil
}

// DeleteSession removes a session (logout).
func (d *Database) DeleteSession(ctx context.Context, token string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes expired sessions and returns how many
// were deleted. Called periodically from main.
func (d *Database) CleanExpiredSessions(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clean_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		logging.Debug("Cleaned %d expired sessions", deleted)
	}
	return deleted, nil
}

// CountUsers returns the total number of accounts.
func (d *Database) CountUsers(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
