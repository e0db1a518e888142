package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"mitabo/internal/database"
	"mitabo/internal/logging"
)

// maxCommentLength bounds comment bodies.
const maxCommentLength = 2000

type commentRequest struct {
	Body string `json:"body"`
}

// AddComment posts a comment on a video.
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeJSONError(w, http.StatusBadRequest, "comment body is required")
		return
	}
	if len(req.Body) > maxCommentLength {
		writeJSONError(w, http.StatusBadRequest, "comment is too long")
		return
	}

	if _, err := h.db.GetVideo(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "video not found")
			return
		}
		logging.Error("Failed to load video %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to post comment")
		return
	}

	user := userFrom(r.Context())
	comment, err := h.db.AddComment(r.Context(), id, user.ID, req.Body)
	if err != nil {
		logging.Error("Failed to add comment on video %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to post comment")
		return
	}

	writeJSONStatus(w, http.StatusCreated, comment)
}

// Like records a like vote.
func (h *Handlers) Like(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, true)
}

// Dislike records a dislike vote.
func (h *Handlers) Dislike(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, false)
}

func (h *Handlers) vote(w http.ResponseWriter, r *http.Request, isLike bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	user := userFrom(r.Context())
	likes, dislikes, err := h.db.ToggleLike(r.Context(), user.ID, id, isLike)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "video not found")
			return
		}
		logging.Error("Failed to record vote on video %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to record vote")
		return
	}

	writeJSON(w, map[string]int{
		"likes":    likes,
		"dislikes": dislikes,
	})
}

// Follow toggles following the named user.
func (h *Handlers) Follow(w http.ResponseWriter, r *http.Request) {
	target, err := h.db.GetUserByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		logging.Error("Failed to resolve user: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to follow")
		return
	}

	user := userFrom(r.Context())
	following, err := h.db.ToggleFollow(r.Context(), user.ID, target.ID)
	if err != nil {
		if errors.Is(err, database.ErrSelfFollow) {
			writeJSONError(w, http.StatusBadRequest, "cannot follow yourself")
			return
		}
		logging.Error("Failed to toggle follow: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to follow")
		return
	}

	writeJSON(w, map[string]bool{"following": following})
}

// profileView is a profile with playback sources resolved on the
// user's videos.
type profileView struct {
	database.Profile
	Videos []videoView `json:"videos"`
}

// GetProfile returns a user's public profile: their videos and follow
// counts.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.db.GetUserByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		logging.Error("Failed to load profile: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	videos, err := h.db.ListUserVideos(r.Context(), user.ID)
	if err != nil {
		logging.Error("Failed to list videos for user %d: %v", user.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	followers, following, err := h.db.FollowerCounts(r.Context(), user.ID)
	if err != nil {
		logging.Error("Failed to count follows for user %d: %v", user.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	// Hide the email on public profiles.
	user.Email = ""

	writeJSON(w, profileView{
		Profile: database.Profile{
			User:      *user,
			Followers: followers,
			Following: following,
		},
		Videos: h.views(videos),
	})
}

// PromoteUser grants admin rights to a user.
func (h *Handlers) PromoteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.db.PromoteUser(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		logging.Error("Failed to promote user %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to promote user")
		return
	}

	admin := userFrom(r.Context())
	logging.Info("User %d promoted to admin by %s", id, admin.Username)
	writeJSON(w, map[string]bool{"promoted": true})
}

// BanUser deletes a user account.
func (h *Handlers) BanUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	admin := userFrom(r.Context())
	if id == admin.ID {
		writeJSONError(w, http.StatusBadRequest, "cannot ban yourself")
		return
	}

	if err := h.db.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		logging.Error("Failed to ban user %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to ban user")
		return
	}

	logging.Info("User %d banned by %s", id, admin.Username)
	writeJSON(w, map[string]bool{"banned": true})
}
