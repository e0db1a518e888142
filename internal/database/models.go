package database

import "time"

// Category is a fixed browsing category for videos.
type Category string

const (
	// CategoryTendance is the default category ("trending").
	CategoryTendance Category = "tendance"
	// CategoryJeux is the gaming category.
	CategoryJeux Category = "jeux"
	// CategoryMusique is the music category.
	CategoryMusique Category = "musique"
	// CategoryFilm is the films and animation category.
	CategoryFilm Category = "film"
	// CategorySport is the sports category.
	CategorySport Category = "sport"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryTendance,
	CategoryJeux,
	CategoryMusique,
	CategoryFilm,
	CategorySport,
}

// CategoryLabels maps category IDs to their display labels.
var CategoryLabels = map[Category]string{
	CategoryTendance: "Tendances",
	CategoryJeux:     "Jeux",
	CategoryMusique:  "Musique",
	CategoryFilm:     "Films & Anim",
	CategorySport:    "Sports",
}

// NormalizeCategory returns c if it is a known category and the
// default category otherwise.
func NormalizeCategory(c string) Category {
	if _, ok := CategoryLabels[Category(c)]; ok {
		return Category(c)
	}
	return CategoryTendance
}

// TranscodeStatus tracks the lifecycle of a video's HLS rendition.
type TranscodeStatus string

const (
	// TranscodeNone means transcoding was never requested.
	TranscodeNone TranscodeStatus = ""
	// TranscodePending means the job is queued or running.
	TranscodePending TranscodeStatus = "pending"
	// TranscodeReady means the HLS package was produced.
	TranscodeReady TranscodeStatus = "ready"
	// TranscodeFailed means the encoder failed; playback falls back to
	// the stored file.
	TranscodeFailed TranscodeStatus = "failed"
	// TranscodeSkipped means transcoding was requested but the encoder
	// is not installed.
	TranscodeSkipped TranscodeStatus = "skipped"
)

// Video is a published video. Exactly one playback source wins at
// resolve time: HLS manifest, then stored file, then external URL.
type Video struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        Category        `json:"category"`
	Filename        string          `json:"filename,omitempty"`
	ExternalURL     string          `json:"externalUrl,omitempty"`
	ThumbURL        string          `json:"thumbUrl,omitempty"`
	Duration        string          `json:"duration,omitempty"`
	Creator         string          `json:"creator"`
	Views           int64           `json:"views"`
	Likes           int64           `json:"likes"`
	Dislikes        int64           `json:"dislikes"`
	UserID          int64           `json:"userId,omitempty"`
	HLSManifest     string          `json:"hlsManifest,omitempty"`
	TranscodeStatus TranscodeStatus `json:"transcodeStatus,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	Avatar       string    `json:"avatar"`
	Bio          string    `json:"bio,omitempty"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is an authenticated user session.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a comment on a video, joined with its author's display
// name for rendering.
type Comment struct {
	ID          int64     `json:"id"`
	VideoID     int64     `json:"videoId"`
	UserID      int64     `json:"userId"`
	Body        string    `json:"body"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListOptions controls video listing queries.
type ListOptions struct {
	Category Category
	Query    string
	Page     int
	PerPage  int
}

// VideoListing is one page of video results.
type VideoListing struct {
	Items   []Video `json:"items"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"perPage"`
}

// Profile is a user together with follow counts and their videos.
type Profile struct {
	User      User    `json:"user"`
	Videos    []Video `json:"videos"`
	Followers int     `json:"followers"`
	Following int     `json:"following"`
}
