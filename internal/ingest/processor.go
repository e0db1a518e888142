package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mitabo/internal/database"
	"mitabo/internal/logging"
	"mitabo/internal/media"
	"mitabo/internal/metrics"
)

// HLSTranscoder produces an HLS package from a stored upload. The
// returned path is the master manifest, relative to the HLS root.
type HLSTranscoder interface {
	Available() bool
	TranscodeToHLS(ctx context.Context, inputPath, outDir string) (string, error)
}

// Processor drains the transcode queue with a fixed worker pool.
// Uploads enqueue by video ID; jobs that never ran (crash, full
// queue) are re-queued from the database on the next start.
type Processor struct {
	db         *database.Database
	transcoder HLSTranscoder
	uploadDir  string
	hlsDir     string
	workers    int

	queue  chan int64
	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewProcessor builds a processor with the given pool size and queue
// capacity.
func NewProcessor(db *database.Database, transcoder HLSTranscoder, uploadDir, hlsDir string, workers, queueSize int) *Processor {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 16
	}
	return &Processor{
		db:         db,
		transcoder: transcoder,
		uploadDir:  uploadDir,
		hlsDir:     hlsDir,
		workers:    workers,
		queue:      make(chan int64, queueSize),
		inFlight:   make(map[int64]struct{}),
	}
}

// Enabled reports whether the encoder is usable.
func (p *Processor) Enabled() bool {
	return p.transcoder != nil && p.transcoder.Available()
}

// Start launches the worker pool and re-queues any jobs that were
// pending when the previous run stopped.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		p.group.Go(func() error {
			p.run(ctx)
			return nil
		})
	}
	logging.Info("Transcode pool started with %d workers", p.workers)

	p.recoverPending(ctx)
}

// Shutdown stops accepting work and waits for running jobs, up to the
// context deadline.
func (p *Processor) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		if p.group != nil {
			p.group.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transcode pool shutdown timed out: %w", ctx.Err())
	}
}

// Enqueue submits a video for transcoding. Duplicates of a job that
// is already queued or running are ignored. A full queue drops the
// job; its pending status gets it re-queued on the next start.
func (p *Processor) Enqueue(id int64) {
	p.mu.Lock()
	if _, dup := p.inFlight[id]; dup {
		p.mu.Unlock()
		return
	}
	p.inFlight[id] = struct{}{}
	p.mu.Unlock()

	select {
	case p.queue <- id:
		metrics.TranscodeQueueDepth.Set(float64(len(p.queue)))
	default:
		p.forget(id)
		logging.Warn("Transcode queue full, deferring video %d to next restart", id)
	}
}

func (p *Processor) forget(id int64) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Processor) recoverPending(ctx context.Context) {
	ids, err := p.db.PendingTranscodes(ctx)
	if err != nil {
		logging.Error("Failed to recover pending transcodes: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	logging.Info("Re-queueing %d pending transcodes from previous run", len(ids))
	for _, id := range ids {
		p.Enqueue(id)
	}
}

func (p *Processor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			metrics.TranscodeQueueDepth.Set(float64(len(p.queue)))
			p.process(ctx, id)
			p.forget(id)
		}
	}
}

func (p *Processor) process(ctx context.Context, id int64) {
	start := time.Now()

	v, err := p.db.GetVideo(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			logging.Warn("Skipping transcode for deleted video %d", id)
			return
		}
		logging.Error("Failed to load video %d for transcode: %v", id, err)
		return
	}
	if v.Filename == "" {
		logging.Warn("Video %d has no stored file, marking transcode failed", id)
		p.markFailed(ctx, id)
		return
	}

	inputPath := filepath.Join(p.uploadDir, v.Filename)
	outDir := filepath.Join(p.hlsDir, fmt.Sprintf("video_%d_%d", id, time.Now().UTC().Unix()))

	logging.Info("Transcoding video %d (%s)", id, v.Filename)
	manifest, err := p.transcoder.TranscodeToHLS(ctx, inputPath, outDir)
	if err != nil {
		logging.Error("Transcode of video %d failed: %v", id, err)
		p.markFailed(ctx, id)
		metrics.TranscodeJobsTotal.WithLabelValues("failed").Inc()
		return
	}

	if err := p.db.SetVideoManifest(ctx, id, manifest); err != nil {
		logging.Error("Failed to record manifest for video %d: %v", id, err)
		p.markFailed(ctx, id)
		return
	}

	// A local poster next to the package so players have something
	// before the remote thumbnail loads.
	if err := media.WritePlaceholderPoster(filepath.Join(outDir, "poster.jpg"), fmt.Sprintf("video-%d", id)); err != nil {
		logging.Warn("Failed to write poster for video %d: %v", id, err)
	}

	metrics.TranscodeJobsTotal.WithLabelValues("ready").Inc()
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	logging.Info("Video %d ready for HLS playback at %s (%s)", id, manifest, time.Since(start).Round(time.Millisecond))
}

func (p *Processor) markFailed(ctx context.Context, id int64) {
	if err := p.db.SetTranscodeStatus(ctx, id, database.TranscodeFailed); err != nil {
		logging.Error("Failed to mark video %d transcode failed: %v", id, err)
	}
}
