package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"mitabo/internal/database"
	"mitabo/internal/ingest"
	"mitabo/internal/playback"
)

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	db             *database.Database
	ingestor       *ingest.Ingestor
	resolver       *playback.Resolver
	uploadDir      string
	hlsDir         string
	maxUploadBytes int64
}

// New creates the handler set.
func New(db *database.Database, ingestor *ingest.Ingestor, resolver *playback.Resolver, uploadDir, hlsDir string, maxUploadBytes int64) *Handlers {
	return &Handlers{
		db:             db,
		ingestor:       ingestor,
		resolver:       resolver,
		uploadDir:      uploadDir,
		hlsDir:         hlsDir,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes attaches every route to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/check", h.CheckAuth).Methods(http.MethodGet)

	api.HandleFunc("/videos", h.ListVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos", h.RequireAuth(h.Upload)).Methods(http.MethodPost)
	api.HandleFunc("/videos/{id:[0-9]+}", h.GetVideo).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id:[0-9]+}/comments", h.RequireAuth(h.AddComment)).Methods(http.MethodPost)
	api.HandleFunc("/videos/{id:[0-9]+}/like", h.RequireAuth(h.Like)).Methods(http.MethodPost)
	api.HandleFunc("/videos/{id:[0-9]+}/dislike", h.RequireAuth(h.Dislike)).Methods(http.MethodPost)

	api.HandleFunc("/categories", h.Categories).Methods(http.MethodGet)

	api.HandleFunc("/users/{username}", h.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/follow", h.RequireAuth(h.Follow)).Methods(http.MethodPost)

	api.HandleFunc("/admin/users/{id:[0-9]+}/promote", h.RequireAdmin(h.PromoteUser)).Methods(http.MethodPost)
	api.HandleFunc("/admin/users/{id:[0-9]+}", h.RequireAdmin(h.BanUser)).Methods(http.MethodDelete)

	r.PathPrefix("/media/").HandlerFunc(h.ServeMedia).Methods(http.MethodGet, http.MethodHead)
	r.PathPrefix("/hls/").HandlerFunc(h.ServeHLS).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.Livez).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)
}
