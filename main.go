// Mitabo is a small video sharing service: uploads go in, HLS comes
// out.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mitabo/internal/database"
	"mitabo/internal/handlers"
	"mitabo/internal/ingest"
	"mitabo/internal/logging"
	"mitabo/internal/media"
	"mitabo/internal/metrics"
	"mitabo/internal/middleware"
	"mitabo/internal/playback"
	"mitabo/internal/startup"
	"mitabo/internal/transcoder"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal("%v", err)
	}
}

func run() error {
	cfg, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.LogConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cfg.SeedDemo {
		if err := db.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	go sessionSweeper(ctx, db)

	var processor *ingest.Processor
	if cfg.TranscodingEnabled {
		enc := transcoder.New(cfg.HLSDir)
		processor = ingest.NewProcessor(db, enc, cfg.UploadDir, cfg.HLSDir, cfg.TranscodeWorkers, cfg.TranscodeQueueSize)
		processor.Start(ctx)
	} else {
		logging.Info("Transcoding disabled by configuration")
	}

	ingestor := ingest.NewIngestor(
		ingest.NewValidator(cfg.MaxUploadBytes),
		ingest.NewNamer(cfg.UploadDir),
		db,
		processor,
	)
	resolver := playback.NewResolver("/hls", "/media")

	h := handlers.New(db, ingestor, resolver, cfg.UploadDir, cfg.HLSDir, cfg.MaxUploadBytes)

	router := mux.NewRouter()
	router.Use(middleware.Logging(cfg.LogStaticFiles))
	router.Use(middleware.Metrics)
	h.RegisterRoutes(router)
	registerFavicon(router, filepath.Dir(cfg.DatabasePath))
	startup.LogHTTPRoutes(router)

	metrics.InitializeMetrics()
	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsSrv = serveMetrics(cfg.MetricsPort)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP shutdown: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error("Metrics shutdown: %v", err)
		}
	}
	if processor != nil {
		if err := processor.Shutdown(shutdownCtx); err != nil {
			logging.Error("Transcode pool shutdown: %v", err)
		}
	}

	logging.Info("Goodbye")
	return nil
}

// sessionSweeper purges expired sessions hourly and keeps the DB
// connection gauge fresh.
func sessionSweeper(ctx context.Context, db *database.Database) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := db.CleanExpiredSessions(ctx); err != nil {
				logging.Error("Session cleanup failed: %v", err)
			}
			db.UpdateDBMetrics()
		}
	}
}

// registerFavicon renders the favicon into the data directory once
// and serves it.
func registerFavicon(router *mux.Router, dataDir string) {
	path := filepath.Join(dataDir, "favicon.png")
	if _, err := os.Stat(path); err != nil {
		if err := media.WriteFavicon(path); err != nil {
			logging.Warn("Failed to render favicon: %v", err)
			return
		}
	}
	router.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}).Methods(http.MethodGet)
}

func serveMetrics(port int) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("Metrics listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server failed: %v", err)
		}
	}()
	return srv
}
