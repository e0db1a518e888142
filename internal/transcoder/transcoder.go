// Package transcoder shells out to ffmpeg to build a two-rendition
// HLS package (360p and 720p) from a stored upload.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"mitabo/internal/logging"
	"mitabo/internal/manifest"
)

// maxErrorOutput caps how much encoder stderr a TranscodeError keeps.
const maxErrorOutput = 2000

// Rendition is one rung of the HLS ladder.
type Rendition struct {
	Name      string
	Width     int
	Height    int
	CRF       int
	Bandwidth int
}

// Renditions is the fixed ladder every video is encoded to.
var Renditions = []Rendition{
	{Name: "v0", Width: 640, Height: 360, CRF: 23, Bandwidth: 800000},
	{Name: "v1", Width: 1280, Height: 720, CRF: 21, Bandwidth: 2500000},
}

// TranscodeError carries the encoder's exit error together with a
// bounded tail of its stderr.
type TranscodeError struct {
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("ffmpeg failed: %v: %s", e.Err, e.Output)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Transcoder invokes ffmpeg. Construct with New; a missing binary
// leaves the transcoder present but unavailable.
type Transcoder struct {
	hlsDir    string
	binary    string
	available bool
}

// New probes for ffmpeg on PATH and returns a transcoder rooted at
// hlsDir.
func New(hlsDir string) *Transcoder {
	binary, err := exec.LookPath("ffmpeg")
	if err != nil {
		logging.Warn("ffmpeg not found on PATH, HLS transcoding disabled")
		return &Transcoder{hlsDir: hlsDir}
	}

	logging.Info("Using ffmpeg at %s", binary)
	return &Transcoder{hlsDir: hlsDir, binary: binary, available: true}
}

// Available reports whether ffmpeg was found.
func (t *Transcoder) Available() bool {
	return t.available
}

// TranscodeToHLS encodes inputPath into outDir and returns the master
// manifest path relative to the HLS root. If ffmpeg produced the
// rendition playlists but no master manifest, one is synthesized from
// the ladder.
func (t *Transcoder) TranscodeToHLS(ctx context.Context, inputPath, outDir string) (string, error) {
	if !t.available {
		return "", &TranscodeError{Err: errors.New("ffmpeg is not available")}
	}

	for _, r := range Renditions {
		if err := os.MkdirAll(filepath.Join(outDir, r.Name), 0o755); err != nil {
			return "", fmt.Errorf("failed to create rendition directory: %w", err)
		}
	}

	args := buildArgs(inputPath, outDir)
	logging.Debug("Running %s %v", t.binary, args)

	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.RemoveAll(outDir)
		return "", &TranscodeError{Output: truncate(stderr.String(), maxErrorOutput), Err: err}
	}

	masterPath := filepath.Join(outDir, "master.m3u8")
	if err := validateMaster(masterPath); err != nil {
		logging.Warn("Unusable master manifest for %s (%v), synthesizing one", inputPath, err)
		if err := writeFallbackMaster(masterPath); err != nil {
			os.RemoveAll(outDir)
			return "", err
		}
	}

	rel, err := filepath.Rel(t.hlsDir, masterPath)
	if err != nil {
		return "", fmt.Errorf("manifest path escapes HLS root: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// buildArgs assembles the single-pass multi-rendition HLS command.
func buildArgs(inputPath, outDir string) []string {
	args := []string{"-hide_banner", "-y", "-i", inputPath}

	// The trailing ? keeps ffmpeg from failing on silent inputs.
	for range Renditions {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0?")
	}

	for i, r := range Renditions {
		args = append(args,
			fmt.Sprintf("-filter:v:%d", i), fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", r.Width, r.Height),
			fmt.Sprintf("-c:v:%d", i), "libx264",
			fmt.Sprintf("-profile:v:%d", i), "main",
			fmt.Sprintf("-crf:v:%d", i), fmt.Sprintf("%d", r.CRF),
		)
	}

	args = append(args,
		"-c:a", "aac",
		"-ar", "48000",
		"-sc_threshold", "0",
		"-g", "48",
		"-keyint_min", "48",
		"-var_stream_map", "v:0,a:0 v:1,a:1",
		"-master_pl_name", "master.m3u8",
		"-f", "hls",
		"-hls_time", "4",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outDir, "v%v", "seg_%03d.ts"),
		filepath.Join(outDir, "v%v", "index.m3u8"),
	)
	return args
}

// validateMaster checks that the encoder's master playlist exists and
// references at least one variant before it is recorded for playback.
func validateMaster(path string) error {
	variants, err := manifest.ParseMasterFile(path)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		return errors.New("no variant streams")
	}
	return nil
}

func writeFallbackMaster(path string) error {
	variants := make([]manifest.Variant, 0, len(Renditions))
	for _, r := range Renditions {
		variants = append(variants, manifest.Variant{
			URI:       r.Name + "/index.m3u8",
			Bandwidth: r.Bandwidth,
			Width:     r.Width,
			Height:    r.Height,
		})
	}
	if err := manifest.WriteMasterFile(path, variants); err != nil {
		return fmt.Errorf("failed to synthesize master manifest: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
