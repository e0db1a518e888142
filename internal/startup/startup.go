// Package startup loads configuration from the environment, validates
// the data directories, and logs the effective settings at boot.
package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"mitabo/internal/logging"
	"mitabo/internal/workers"
)

// Build information, injected at link time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// defaultMaxUploadBytes is 1 GiB.
const defaultMaxUploadBytes = 1 << 30

// Config holds the runtime configuration.
type Config struct {
	Port        int
	MetricsPort int

	UploadDir    string
	HLSDir       string
	DatabasePath string

	MaxUploadBytes     int64
	TranscodeWorkers   int
	TranscodeQueueSize int

	TranscodingEnabled bool
	MetricsEnabled     bool
	SeedDemo           bool
	LogStaticFiles     bool
}

// LoadConfig reads the environment, applies defaults, and creates the
// data directories.
func LoadConfig() (*Config, error) {
	dataDir := envString("DATA_DIR", "./data")

	cfg := &Config{
		Port:               envInt("PORT", 8080),
		MetricsPort:        envInt("METRICS_PORT", 9090),
		UploadDir:          envString("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		HLSDir:             envString("HLS_DIR", filepath.Join(dataDir, "hls")),
		DatabasePath:       envString("DB_PATH", filepath.Join(dataDir, "mitabo.db")),
		MaxUploadBytes:     envInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		TranscodeWorkers:   workers.ForCPU(4),
		TranscodeQueueSize: envInt("TRANSCODE_QUEUE_SIZE", 32),
		TranscodingEnabled: !envBool("DISABLE_TRANSCODING", false),
		MetricsEnabled:     !envBool("DISABLE_METRICS", false),
		SeedDemo:           !envBool("DISABLE_DEMO_SEED", false),
		LogStaticFiles:     envBool("LOG_STATIC_FILES", false),
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.MetricsPort == cfg.Port {
		return nil, fmt.Errorf("METRICS_PORT %d collides with PORT", cfg.MetricsPort)
	}
	if cfg.MaxUploadBytes < 1 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %d", cfg.MaxUploadBytes)
	}

	for _, dir := range []string{cfg.UploadDir, cfg.HLSDir, filepath.Dir(cfg.DatabasePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// LogConfig writes the startup banner and the effective settings.
func (c *Config) LogConfig() {
	logging.Info("Mitabo %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("Configuration:")
	logging.Info("  Port:                %d", c.Port)
	logging.Info("  Metrics port:        %d (enabled: %t)", c.MetricsPort, c.MetricsEnabled)
	logging.Info("  Upload directory:    %s", c.UploadDir)
	logging.Info("  HLS directory:       %s", c.HLSDir)
	logging.Info("  Database:            %s", c.DatabasePath)
	logging.Info("  Max upload size:     %d bytes", c.MaxUploadBytes)
	logging.Info("  Transcode workers:   %d (queue %d, enabled: %t)", c.TranscodeWorkers, c.TranscodeQueueSize, c.TranscodingEnabled)
	logging.Info("  Log level:           %s", logging.GetLevel())
}

// LogHTTPRoutes walks the router and logs every registered route.
func LogHTTPRoutes(r *mux.Router) {
	logging.Info("Registered HTTP routes:")
	err := r.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			if path, err = route.GetPathRegexp(); err != nil {
				return nil
			}
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"ANY"}
		}
		logging.Info("  %-28s %s", strings.Join(methods, ","), path)
		return nil
	})
	if err != nil {
		logging.Warn("Failed to walk routes: %v", err)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logging.Warn("Ignoring invalid %s=%q", key, v)
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		logging.Warn("Ignoring invalid %s=%q", key, v)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		logging.Warn("Ignoring invalid %s=%q", key, v)
	}
	return fallback
}
