package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateUser(t *testing.T, db *Database, username, email string) *User {
	t.Helper()

	u, err := db.CreateUser(context.Background(), username, email, username, "secret123")
	if err != nil {
		t.Fatalf("CreateUser(%q) error = %v", username, err)
	}
	return u
}

func mustCreateVideo(t *testing.T, db *Database, v *Video) *Video {
	t.Helper()

	if v.Title == "" {
		v.Title = "Untitled"
	}
	if v.Category == "" {
		v.Category = CategoryTendance
	}
	if err := db.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	return v
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "alice", "alice@example.com")
	if u.ID == 0 {
		t.Fatal("expected non-zero user ID")
	}

	if _, err := db.CreateUser(ctx, "alice", "other@example.com", "Alice", "pw123456"); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("duplicate username error = %v, want ErrDuplicateUser", err)
	}
	if _, err := db.CreateUser(ctx, "alice2", "ALICE@example.com", "Alice", "pw123456"); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("duplicate email (case-insensitive) error = %v, want ErrDuplicateUser", err)
	}

	got, err := db.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != u.ID || got.Email != "alice@example.com" {
		t.Errorf("GetUserByUsername() = %+v, want id=%d email=alice@example.com", got, u.ID)
	}

	if _, err := db.GetUserByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "bob", "bob@example.com")

	got, err := db.ValidateCredentials(ctx, "Bob@Example.com", "secret123")
	if err != nil {
		t.Fatalf("ValidateCredentials() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ValidateCredentials() user = %d, want %d", got.ID, u.ID)
	}

	if _, err := db.ValidateCredentials(ctx, "bob@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := db.ValidateCredentials(ctx, "nobody@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "carol", "carol@example.com")

	sess, err := db.CreateSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(sess.Token))
	}

	got, err := db.ValidateSession(ctx, sess.Token)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ValidateSession() user = %d, want %d", got.ID, u.ID)
	}

	if _, err := db.ValidateSession(ctx, "bogus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bogus token error = %v, want ErrNotFound", err)
	}

	if err := db.DeleteSession(ctx, sess.Token); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := db.ValidateSession(ctx, sess.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePasswordInvalidatesSessions(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "dave", "dave@example.com")
	sess, err := db.CreateSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := db.UpdatePassword(ctx, u.ID, "newpass99"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	if _, err := db.ValidateCredentials(ctx, "dave@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: error = %v", err)
	}
	if _, err := db.ValidateCredentials(ctx, "dave@example.com", "newpass99"); err != nil {
		t.Errorf("new password rejected: error = %v", err)
	}
	if _, err := db.ValidateSession(ctx, sess.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("session survived password change: error = %v", err)
	}
}

func TestVideoCRUD(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "erin", "erin@example.com")
	v := mustCreateVideo(t, db, &Video{
		Title:    "First",
		Category: CategoryJeux,
		Filename: "first.mp4",
		Creator:  "erin",
		UserID:   u.ID,
	})

	got, err := db.GetVideo(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.Title != "First" || got.Category != CategoryJeux || got.Filename != "first.mp4" {
		t.Errorf("GetVideo() = %+v", got)
	}
	if got.TranscodeStatus != TranscodeNone {
		t.Errorf("TranscodeStatus = %q, want empty", got.TranscodeStatus)
	}

	if _, err := db.GetVideo(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideo(missing) error = %v, want ErrNotFound", err)
	}

	views, err := db.IncrementViews(ctx, v.ID)
	if err != nil {
		t.Fatalf("IncrementViews() error = %v", err)
	}
	if views != 1 {
		t.Errorf("views after first increment = %d, want 1", views)
	}
}

func TestListVideosFilters(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "frank", "frank@example.com")
	mustCreateVideo(t, db, &Video{Title: "Speedrun Mario", Category: CategoryJeux, Creator: "frank", UserID: u.ID})
	mustCreateVideo(t, db, &Video{Title: "Guitar solo", Category: CategoryMusique, Creator: "frank", UserID: u.ID})
	mustCreateVideo(t, db, &Video{Title: "Mario remix", Category: CategoryMusique, Creator: "frank", UserID: u.ID})

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{"all", ListOptions{}, 3},
		{"by category", ListOptions{Category: CategoryMusique}, 2},
		{"by query", ListOptions{Query: "mario"}, 2},
		{"category and query", ListOptions{Category: CategoryMusique, Query: "mario"}, 1},
		{"no match", ListOptions{Query: "zelda"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := db.ListVideos(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListVideos() error = %v", err)
			}
			if listing.Total != tt.want {
				t.Errorf("Total = %d, want %d", listing.Total, tt.want)
			}
			if len(listing.Items) != tt.want {
				t.Errorf("len(Items) = %d, want %d", len(listing.Items), tt.want)
			}
		})
	}
}

func TestListVideosPagination(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "grace", "grace@example.com")
	for i := 0; i < 5; i++ {
		mustCreateVideo(t, db, &Video{Title: "Clip", Category: CategorySport, Creator: "grace", UserID: u.ID})
	}

	listing, err := db.ListVideos(ctx, ListOptions{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if listing.Total != 5 || len(listing.Items) != 2 || listing.Page != 2 {
		t.Errorf("page 2: total=%d items=%d page=%d, want 5/2/2", listing.Total, len(listing.Items), listing.Page)
	}

	listing, err = db.ListVideos(ctx, ListOptions{Page: 3, PerPage: 2})
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(listing.Items) != 1 {
		t.Errorf("last page items = %d, want 1", len(listing.Items))
	}

	// Out-of-range pages return empty, not an error.
	listing, err = db.ListVideos(ctx, ListOptions{Page: 10, PerPage: 2})
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(listing.Items) != 0 {
		t.Errorf("out-of-range page items = %d, want 0", len(listing.Items))
	}
}

func TestToggleLikeSemantics(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "heidi", "heidi@example.com")
	v := mustCreateVideo(t, db, &Video{Title: "Votes", Creator: "heidi", UserID: u.ID})

	likes, dislikes, err := db.ToggleLike(ctx, u.ID, v.ID, true)
	if err != nil {
		t.Fatalf("first like error = %v", err)
	}
	if likes != 1 || dislikes != 0 {
		t.Errorf("after like: %d/%d, want 1/0", likes, dislikes)
	}

	// Same vote again removes it.
	likes, dislikes, err = db.ToggleLike(ctx, u.ID, v.ID, true)
	if err != nil {
		t.Fatalf("second like error = %v", err)
	}
	if likes != 0 || dislikes != 0 {
		t.Errorf("after toggle off: %d/%d, want 0/0", likes, dislikes)
	}

	// Like then dislike switches sides.
	if _, _, err := db.ToggleLike(ctx, u.ID, v.ID, true); err != nil {
		t.Fatalf("re-like error = %v", err)
	}
	likes, dislikes, err = db.ToggleLike(ctx, u.ID, v.ID, false)
	if err != nil {
		t.Fatalf("switch error = %v", err)
	}
	if likes != 0 || dislikes != 1 {
		t.Errorf("after switch: %d/%d, want 0/1", likes, dislikes)
	}

	if _, _, err := db.ToggleLike(ctx, u.ID, 9999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("vote on missing video error = %v, want ErrNotFound", err)
	}
}

func TestFollows(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	a := mustCreateUser(t, db, "ivan", "ivan@example.com")
	b := mustCreateUser(t, db, "judy", "judy@example.com")

	if _, err := db.ToggleFollow(ctx, a.ID, a.ID); !errors.Is(err, ErrSelfFollow) {
		t.Errorf("self-follow error = %v, want ErrSelfFollow", err)
	}

	following, err := db.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("ToggleFollow() error = %v", err)
	}
	if !following {
		t.Error("first toggle should follow")
	}

	ok, err := db.IsFollowing(ctx, a.ID, b.ID)
	if err != nil || !ok {
		t.Errorf("IsFollowing() = %v, %v, want true", ok, err)
	}

	followers, fing, err := db.FollowerCounts(ctx, b.ID)
	if err != nil {
		t.Fatalf("FollowerCounts() error = %v", err)
	}
	if followers != 1 || fing != 0 {
		t.Errorf("counts for judy = %d/%d, want 1/0", followers, fing)
	}

	following, err = db.ToggleFollow(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("second ToggleFollow() error = %v", err)
	}
	if following {
		t.Error("second toggle should unfollow")
	}
}

func TestComments(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "mallory", "mallory@example.com")
	v := mustCreateVideo(t, db, &Video{Title: "Discuss", Creator: "mallory", UserID: u.ID})

	c, err := db.AddComment(ctx, v.ID, u.ID, "first!")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if c.DisplayName != "mallory" {
		t.Errorf("DisplayName = %q, want mallory", c.DisplayName)
	}

	if _, err := db.AddComment(ctx, v.ID, u.ID, "second"); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	comments, err := db.ListComments(ctx, v.ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("len(comments) = %d, want 2", len(comments))
	}
	if comments[0].Body != "second" {
		t.Errorf("comments[0].Body = %q, want newest first", comments[0].Body)
	}
}

func TestTranscodeStatusTracking(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "nina", "nina@example.com")
	a := mustCreateVideo(t, db, &Video{Title: "A", Filename: "a.mp4", Creator: "nina", UserID: u.ID, TranscodeStatus: TranscodePending})
	b := mustCreateVideo(t, db, &Video{Title: "B", Filename: "b.mp4", Creator: "nina", UserID: u.ID, TranscodeStatus: TranscodePending})
	mustCreateVideo(t, db, &Video{Title: "C", Filename: "c.mp4", Creator: "nina", UserID: u.ID})

	pending, err := db.PendingTranscodes(ctx)
	if err != nil {
		t.Fatalf("PendingTranscodes() error = %v", err)
	}
	if len(pending) != 2 || pending[0] != a.ID || pending[1] != b.ID {
		t.Errorf("PendingTranscodes() = %v, want [%d %d] oldest first", pending, a.ID, b.ID)
	}

	if err := db.SetVideoManifest(ctx, a.ID, "video_1/master.m3u8"); err != nil {
		t.Fatalf("SetVideoManifest() error = %v", err)
	}
	got, err := db.GetVideo(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.HLSManifest != "video_1/master.m3u8" || got.TranscodeStatus != TranscodeReady {
		t.Errorf("after manifest: manifest=%q status=%q", got.HLSManifest, got.TranscodeStatus)
	}

	if err := db.SetTranscodeStatus(ctx, b.ID, TranscodeFailed); err != nil {
		t.Fatalf("SetTranscodeStatus() error = %v", err)
	}
	pending, err = db.PendingTranscodes(ctx)
	if err != nil {
		t.Fatalf("PendingTranscodes() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after resolution = %v, want empty", pending)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := db.Seed(ctx); err != nil {
			t.Fatalf("Seed() run %d error = %v", i+1, err)
		}
	}

	users, err := db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	videos, err := db.CountVideos(ctx)
	if err != nil {
		t.Fatalf("CountVideos() error = %v", err)
	}
	if users != 1 || videos != 1 {
		t.Errorf("after double seed: users=%d videos=%d, want 1/1", users, videos)
	}

	if _, err := db.ValidateCredentials(ctx, "demo@mitabo.dev", "demo1234"); err != nil {
		t.Errorf("demo credentials rejected: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, db, "oscar", "oscar@example.com")
	v := mustCreateVideo(t, db, &Video{Title: "Orphan", Creator: "oscar", UserID: u.ID})

	sess, err := db.CreateSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := db.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := db.GetUserByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("user still present: error = %v", err)
	}
	if _, err := db.ValidateSession(ctx, sess.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("session survived deletion: error = %v", err)
	}

	// Videos survive with the owner cleared.
	got, err := db.GetVideo(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.UserID != 0 {
		t.Errorf("video owner = %d, want 0", got.UserID)
	}
}
