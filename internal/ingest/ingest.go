package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mitabo/internal/database"
	"mitabo/internal/logging"
	"mitabo/internal/media"
	"mitabo/internal/metrics"
)

// UploadRequest carries the client-supplied fields of one upload.
type UploadRequest struct {
	Filename    string
	Size        int64
	Title       string
	Description string
	Category    string
	Creator     string
	ToHLS       bool
	UserID      int64
}

// Ingestor runs an upload through validation, storage, and
// publication, then hands it to the transcode queue when HLS was
// requested.
type Ingestor struct {
	validator *Validator
	namer     *Namer
	db        *database.Database
	processor *Processor
}

// NewIngestor wires the upload pipeline. processor may be nil when
// transcoding is disabled.
func NewIngestor(validator *Validator, namer *Namer, db *database.Database, processor *Processor) *Ingestor {
	return &Ingestor{
		validator: validator,
		namer:     namer,
		db:        db,
		processor: processor,
	}
}

// Ingest stores the upload and publishes its video record. Validation
// failures return a *ValidationError with no bytes written; storage
// failures return a *StorageError with the partial file removed.
func (ing *Ingestor) Ingest(ctx context.Context, r io.Reader, req UploadRequest) (*database.Video, error) {
	if err := ing.validator.Validate(req.Filename, req.Size); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	storedName, f, err := ing.namer.Reserve(req.Filename)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	written, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(f.Name()); removeErr != nil {
			logging.Warn("Failed to remove partial upload %s: %v", storedName, removeErr)
		}
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, &StorageError{Op: "write", Err: err}
	}

	v := &database.Video{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    database.NormalizeCategory(req.Category),
		Filename:    storedName,
		ThumbURL:    media.ThumbURL(thumbSeed(storedName)),
		Creator:     strings.TrimSpace(req.Creator),
		UserID:      req.UserID,
	}
	if v.Title == "" {
		v.Title = "Untitled"
	}
	if v.Creator == "" {
		v.Creator = "Anonyme"
	}

	switch {
	case !req.ToHLS:
		v.TranscodeStatus = database.TranscodeNone
	case ing.processor != nil && ing.processor.Enabled():
		v.TranscodeStatus = database.TranscodePending
	default:
		v.TranscodeStatus = database.TranscodeSkipped
	}

	if err := ing.db.CreateVideo(ctx, v); err != nil {
		if removeErr := os.Remove(filepath.Join(ing.namer.root, storedName)); removeErr != nil {
			logging.Warn("Failed to remove orphaned upload %s: %v", storedName, removeErr)
		}
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to publish upload: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	metrics.UploadBytes.Observe(float64(written))
	logging.Info("Stored upload %s as video %d (%d bytes, transcode=%s)",
		storedName, v.ID, written, statusLabel(v.TranscodeStatus))

	if v.TranscodeStatus == database.TranscodePending {
		ing.processor.Enqueue(v.ID)
	}

	return v, nil
}

func thumbSeed(storedName string) string {
	return strings.TrimSuffix(storedName, filepath.Ext(storedName))
}

func statusLabel(s database.TranscodeStatus) string {
	if s == database.TranscodeNone {
		return "none"
	}
	return string(s)
}
