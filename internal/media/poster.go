// Package media generates the small visual assets that accompany a
// video: thumbnail URLs and locally rendered placeholder posters.
package media

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	posterWidth  = 640
	posterHeight = 360
)

// ThumbURL returns the deterministic thumbnail URL for a seed. The
// same seed always yields the same image.
func ThumbURL(seed string) string {
	return fmt.Sprintf("https://picsum.photos/seed/mitabo-%s/%d/%d", seed, posterWidth, posterHeight)
}

// PosterColor derives a stable base color from a seed so placeholder
// posters are distinguishable per video.
func PosterColor(seed string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(seed))
	v := h.Sum32()

	// Keep channels in a muted mid range so white text stays legible.
	return color.NRGBA{
		R: uint8(40 + (v>>16)%140),
		G: uint8(40 + (v>>8)%140),
		B: uint8(40 + v%140),
		A: 255,
	}
}

// WritePlaceholderPoster renders a flat poster with a darker lower
// band and saves it as JPEG. Used when a video has no remote
// thumbnail and no frame could be extracted.
func WritePlaceholderPoster(path, seed string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create poster directory: %w", err)
	}

	base := PosterColor(seed)
	poster := imaging.New(posterWidth, posterHeight, base)

	band := imaging.New(posterWidth, posterHeight/4, color.NRGBA{A: 255})
	poster = imaging.Overlay(poster, band, image.Pt(0, posterHeight-posterHeight/4), 0.35)

	if err := imaging.Save(poster, path, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to save poster: %w", err)
	}
	return nil
}

// WriteFavicon renders a tiny square of the brand color as PNG.
func WriteFavicon(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create favicon directory: %w", err)
	}

	icon := imaging.New(64, 64, color.NRGBA{R: 229, G: 9, B: 20, A: 255})
	icon = imaging.Resize(icon, 32, 32, imaging.Lanczos)

	if err := imaging.Save(icon, path); err != nil {
		return fmt.Errorf("failed to save favicon: %w", err)
	}
	return nil
}
