package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mitabo/internal/database"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestValidator(t *testing.T) {
	t.Parallel()

	v := NewValidator(1 << 20)

	tests := []struct {
		name     string
		filename string
		size     int64
		wantOK   bool
	}{
		{"mp4 allowed", "clip.mp4", 100, true},
		{"uppercase extension allowed", "CLIP.MP4", 100, true},
		{"webm allowed", "a.webm", 100, true},
		{"mov allowed", "a.mov", 100, true},
		{"m4v allowed", "a.m4v", 100, true},
		{"ogg allowed", "a.ogg", 100, true},
		{"executable rejected", "clip.exe", 100, false},
		{"no extension rejected", "clip", 100, false},
		{"empty filename rejected", "", 100, false},
		{"oversize rejected", "clip.mp4", 2 << 20, false},
		{"exactly at limit allowed", "clip.mp4", 1 << 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.filename, tt.size)
			if tt.wantOK && err != nil {
				t.Errorf("Validate(%q, %d) = %v, want nil", tt.filename, tt.size, err)
			}
			if !tt.wantOK {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("Validate(%q, %d) error type = %T, want *ValidationError", tt.filename, tt.size, err)
				}
			}
		})
	}
}

func TestValidatorNoLimit(t *testing.T) {
	t.Parallel()

	v := NewValidator(0)
	if err := v.Validate("huge.mp4", 1<<40); err != nil {
		t.Errorf("Validate() with no limit = %v, want nil", err)
	}
}

func TestNamerCollisions(t *testing.T) {
	t.Parallel()

	n := NewNamer(t.TempDir())

	want := []string{"clip.mp4", "clip-1.mp4", "clip-2.mp4"}
	for _, expected := range want {
		name, f, err := n.Reserve("clip.mp4")
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		f.Close()
		if name != expected {
			t.Errorf("Reserve() = %q, want %q", name, expected)
		}
	}
}

func TestNamerSanitizes(t *testing.T) {
	t.Parallel()

	n := NewNamer(t.TempDir())

	tests := []struct {
		in   string
		want string
	}{
		{"../../etc/passwd.mp4", "passwd.mp4"},
		{"my video!.mp4", "my_video_.mp4"},
		{"..\\..\\evil.mp4", "evil.mp4"},
		{"...", "upload"},
	}

	for _, tt := range tests {
		name, f, err := n.Reserve(tt.in)
		if err != nil {
			t.Fatalf("Reserve(%q) error = %v", tt.in, err)
		}
		f.Close()
		if name != tt.want {
			t.Errorf("Reserve(%q) = %q, want %q", tt.in, name, tt.want)
		}
		if strings.Contains(name, "/") || strings.Contains(name, "\\") {
			t.Errorf("Reserve(%q) produced a path: %q", tt.in, name)
		}
	}
}

func TestIngestStoresAndPublishes(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	uploadDir := t.TempDir()
	ing := NewIngestor(NewValidator(0), NewNamer(uploadDir), db, nil)

	v, err := ing.Ingest(context.Background(), strings.NewReader("fake video bytes"), UploadRequest{
		Filename: "demo.mp4",
		Size:     16,
		Title:    "  My Clip  ",
		Category: "jeux",
		Creator:  "tester",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if v.ID == 0 {
		t.Error("video was not assigned an ID")
	}
	if v.Title != "My Clip" {
		t.Errorf("Title = %q, want trimmed", v.Title)
	}
	if v.Category != database.CategoryJeux {
		t.Errorf("Category = %q, want jeux", v.Category)
	}
	if v.TranscodeStatus != database.TranscodeNone {
		t.Errorf("TranscodeStatus = %q, want none", v.TranscodeStatus)
	}
	if !strings.Contains(v.ThumbURL, "picsum.photos/seed/mitabo-demo") {
		t.Errorf("ThumbURL = %q", v.ThumbURL)
	}

	data, err := os.ReadFile(filepath.Join(uploadDir, v.Filename))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "fake video bytes" {
		t.Errorf("stored bytes = %q", data)
	}

	got, err := db.GetVideo(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.Filename != v.Filename {
		t.Errorf("published filename = %q, want %q", got.Filename, v.Filename)
	}
}

func TestIngestDefaults(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ing := NewIngestor(NewValidator(0), NewNamer(t.TempDir()), db, nil)

	v, err := ing.Ingest(context.Background(), strings.NewReader("x"), UploadRequest{
		Filename: "raw.webm",
		Category: "not-a-category",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if v.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", v.Title)
	}
	if v.Creator != "Anonyme" {
		t.Errorf("Creator = %q, want Anonyme", v.Creator)
	}
	if v.Category != database.CategoryTendance {
		t.Errorf("Category = %q, want default", v.Category)
	}
}

func TestIngestRejectsWithoutWriting(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	uploadDir := t.TempDir()
	ing := NewIngestor(NewValidator(0), NewNamer(uploadDir), db, nil)

	_, err := ing.Ingest(context.Background(), strings.NewReader("payload"), UploadRequest{Filename: "malware.exe"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}

	entries, readErr := os.ReadDir(uploadDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d files on disk", len(entries))
	}

	if n, err := db.CountVideos(context.Background()); err != nil || n != 0 {
		t.Errorf("rejected upload published a record: n=%d err=%v", n, err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestIngestCleansUpFailedWrite(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	uploadDir := t.TempDir()
	ing := NewIngestor(NewValidator(0), NewNamer(uploadDir), db, nil)

	_, err := ing.Ingest(context.Background(), failingReader{}, UploadRequest{Filename: "partial.mp4"})
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("error type = %T, want *StorageError", err)
	}

	entries, readErr := os.ReadDir(uploadDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("failed upload left %d files on disk", len(entries))
	}
}

func TestIngestSkipsTranscodeWithoutEncoder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	proc := NewProcessor(db, stubTranscoder{available: false}, t.TempDir(), t.TempDir(), 1, 4)
	ing := NewIngestor(NewValidator(0), NewNamer(t.TempDir()), db, proc)

	v, err := ing.Ingest(context.Background(), strings.NewReader("x"), UploadRequest{
		Filename: "clip.mp4",
		ToHLS:    true,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if v.TranscodeStatus != database.TranscodeSkipped {
		t.Errorf("TranscodeStatus = %q, want skipped", v.TranscodeStatus)
	}
}

type stubTranscoder struct {
	available bool
	manifest  string
	err       error
	calls     chan string
}

func (s stubTranscoder) Available() bool { return s.available }

func (s stubTranscoder) TranscodeToHLS(ctx context.Context, inputPath, outDir string) (string, error) {
	if s.calls != nil {
		s.calls <- inputPath
	}
	return s.manifest, s.err
}

func waitForStatus(t *testing.T, db *database.Database, id int64, want database.TranscodeStatus) *database.Video {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		v, err := db.GetVideo(context.Background(), id)
		if err != nil {
			t.Fatalf("GetVideo() error = %v", err)
		}
		if v.TranscodeStatus == want {
			return v
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("video %d never reached status %q", id, want)
	return nil
}

func TestProcessorTranscodesUpload(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	uploadDir := t.TempDir()
	stub := stubTranscoder{available: true, manifest: "video_1/master.m3u8", calls: make(chan string, 1)}
	proc := NewProcessor(db, stub, uploadDir, t.TempDir(), 2, 8)
	ing := NewIngestor(NewValidator(0), NewNamer(uploadDir), db, proc)

	proc.Start(context.Background())
	defer proc.Shutdown(context.Background())

	v, err := ing.Ingest(context.Background(), strings.NewReader("x"), UploadRequest{
		Filename: "clip.mp4",
		ToHLS:    true,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if v.TranscodeStatus != database.TranscodePending {
		t.Fatalf("TranscodeStatus at publish = %q, want pending", v.TranscodeStatus)
	}

	input := <-stub.calls
	if input != filepath.Join(uploadDir, "clip.mp4") {
		t.Errorf("transcoder input = %q", input)
	}

	done := waitForStatus(t, db, v.ID, database.TranscodeReady)
	if done.HLSManifest != "video_1/master.m3u8" {
		t.Errorf("HLSManifest = %q", done.HLSManifest)
	}
}

func TestProcessorMarksFailures(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	uploadDir := t.TempDir()
	stub := stubTranscoder{available: true, err: errors.New("encode blew up")}
	proc := NewProcessor(db, stub, uploadDir, t.TempDir(), 1, 4)
	ing := NewIngestor(NewValidator(0), NewNamer(uploadDir), db, proc)

	proc.Start(context.Background())
	defer proc.Shutdown(context.Background())

	v, err := ing.Ingest(context.Background(), strings.NewReader("x"), UploadRequest{
		Filename: "bad.mp4",
		ToHLS:    true,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	got := waitForStatus(t, db, v.ID, database.TranscodeFailed)
	if got.HLSManifest != "" {
		t.Errorf("failed video has manifest %q", got.HLSManifest)
	}
}

func TestProcessorRecoversPendingOnStart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	uploadDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(uploadDir, "orphan.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := &database.Video{
		Title:           "Orphan",
		Filename:        "orphan.mp4",
		Creator:         "t",
		TranscodeStatus: database.TranscodePending,
	}
	if err := db.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	stub := stubTranscoder{available: true, manifest: "video_r/master.m3u8"}
	proc := NewProcessor(db, stub, uploadDir, t.TempDir(), 1, 4)
	proc.Start(context.Background())
	defer proc.Shutdown(context.Background())

	waitForStatus(t, db, v.ID, database.TranscodeReady)
}
