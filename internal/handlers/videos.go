package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mitabo/internal/database"
	"mitabo/internal/logging"
)

// suggestedCount is how many related videos a watch page shows.
const suggestedCount = 8

// videoView is a video record plus its resolved playback source.
type videoView struct {
	database.Video
	SourceURL string `json:"sourceUrl"`
	HLS       bool   `json:"hls"`
}

func (h *Handlers) view(v *database.Video) videoView {
	src := h.resolver.Resolve(v)
	return videoView{Video: *v, SourceURL: src.URL, HLS: src.HLS}
}

func (h *Handlers) views(videos []database.Video) []videoView {
	out := make([]videoView, 0, len(videos))
	for i := range videos {
		out = append(out, h.view(&videos[i]))
	}
	return out
}

// ListVideos returns one page of videos filtered by category and
// search query.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := database.ListOptions{
		Query: q.Get("q"),
	}
	if cat := q.Get("cat"); cat != "" {
		opts.Category = database.NormalizeCategory(cat)
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil {
		opts.PerPage = perPage
	}

	listing, err := h.db.ListVideos(r.Context(), opts)
	if err != nil {
		logging.Error("Failed to list videos: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}

	writeJSON(w, map[string]interface{}{
		"items":    h.views(listing.Items),
		"total":    listing.Total,
		"page":     listing.Page,
		"per_page": listing.PerPage,
	})
}

// GetVideo returns one video with its comments and suggested videos,
// counting the view.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	video, err := h.db.GetVideo(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "video not found")
			return
		}
		logging.Error("Failed to get video %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	views, err := h.db.IncrementViews(r.Context(), id)
	if err != nil {
		logging.Warn("Failed to count view on video %d: %v", id, err)
		views = video.Views
	}
	video.Views = views

	comments, err := h.db.ListComments(r.Context(), id)
	if err != nil {
		logging.Error("Failed to list comments for video %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load comments")
		return
	}

	suggested, err := h.db.SuggestedVideos(r.Context(), id, video.Category, suggestedCount)
	if err != nil {
		logging.Warn("Failed to load suggestions for video %d: %v", id, err)
		suggested = nil
	}

	writeJSON(w, map[string]interface{}{
		"video":     h.view(video),
		"comments":  comments,
		"suggested": h.views(suggested),
	})
}

// Categories lists the known categories with display labels.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}

	out := make([]category, 0, len(database.Categories))
	for _, c := range database.Categories {
		out = append(out, category{ID: string(c), Label: database.CategoryLabels[c]})
	}
	writeJSON(w, out)
}
