package handlers

import (
	"errors"
	"net/http"

	"mitabo/internal/ingest"
	"mitabo/internal/logging"
)

// Upload accepts a multipart video upload and publishes it. The file
// part is named "file"; title, description, category, creator, and
// to_hls arrive as form fields.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	// Stream parts above 32 MiB to temp files instead of memory.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	user := userFrom(r.Context())
	req := ingest.UploadRequest{
		Filename:    header.Filename,
		Size:        header.Size,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Creator:     r.FormValue("creator"),
		ToHLS:       parseBool(r.FormValue("to_hls")),
		UserID:      user.ID,
	}
	if req.Creator == "" {
		req.Creator = user.DisplayName
	}

	video, err := h.ingestor.Ingest(r.Context(), file, req)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			writeJSONError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		var serr *ingest.StorageError
		if errors.As(err, &serr) {
			logging.Error("Upload storage failed: %v", serr)
			writeJSONError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		logging.Error("Upload failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSONStatus(w, http.StatusCreated, map[string]interface{}{
		"video": h.view(video),
	})
}

func parseBool(s string) bool {
	switch s {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
