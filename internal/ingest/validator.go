package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"mitabo/internal/mediatypes"
)

// Validator screens uploads before any bytes touch disk.
type Validator struct {
	maxBytes int64
}

// NewValidator returns a validator enforcing the given size ceiling.
// A maxBytes of zero disables the size check.
func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// Validate checks the client-supplied filename and declared size. A
// nil return means the upload may proceed; otherwise the returned
// ValidationError carries a client-safe reason.
func (v *Validator) Validate(filename string, size int64) error {
	name := strings.TrimSpace(filename)
	if name == "" {
		return &ValidationError{Reason: "missing filename"}
	}

	if !mediatypes.IsAllowedUpload(name) {
		ext := filepath.Ext(name)
		if ext == "" {
			return &ValidationError{Reason: "file has no extension"}
		}
		return &ValidationError{Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}

	if v.maxBytes > 0 && size > v.maxBytes {
		return &ValidationError{Reason: fmt.Sprintf("file exceeds the %d byte upload limit", v.maxBytes)}
	}

	return nil
}
