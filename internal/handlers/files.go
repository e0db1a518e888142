package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mitabo/internal/mediatypes"
)

// ServeMedia serves stored upload files from /media/.
func (h *Handlers) ServeMedia(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.uploadDir, "/media/")
}

// ServeHLS serves manifests and segments from /hls/.
func (h *Handlers) ServeHLS(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.hlsDir, "/hls/")
}

func (h *Handlers) serveFrom(w http.ResponseWriter, r *http.Request, root, prefix string) {
	rel := strings.TrimPrefix(r.URL.Path, prefix)
	if rel == "" {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(root, filepath.FromSlash(rel))
	if !isSubPath(root, full) {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(filepath.Ext(full)))
	http.ServeFile(w, r, full)
}

// isSubPath reports whether target stays under root after cleaning.
func isSubPath(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
