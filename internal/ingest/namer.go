package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxReserveAttempts bounds the collision-suffix loop. Hitting it
// means something is racing us pathologically or the directory is
// hand-packed with conflicting names.
const maxReserveAttempts = 100

// Namer places uploads under a single flat directory, guaranteeing
// each stored file a unique name even under concurrent uploads of the
// same filename.
type Namer struct {
	root string
}

// NewNamer returns a namer storing files under root.
func NewNamer(root string) *Namer {
	return &Namer{root: root}
}

// Reserve atomically claims a slot for the desired filename and
// returns the final base name plus the open file handle. On
// collision it retries with "-1", "-2", ... suffixes before the
// extension. The caller owns closing (and on failure, removing) the
// returned file.
func (n *Namer) Reserve(desired string) (string, *os.File, error) {
	base := sanitizeFilename(desired)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		}

		f, err := os.OpenFile(filepath.Join(n.root, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return candidate, f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, &StorageError{Op: "reserve", Err: err}
		}
	}

	return "", nil, &StorageError{Op: "reserve", Err: fmt.Errorf("no free name for %q after %d attempts", base, maxReserveAttempts)}
}

// sanitizeFilename strips any path components and characters that are
// unsafe in a stored name. An empty result falls back to "upload".
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
