// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/medassist/medassist-client/internal/backend"
)

// =============================================================================
// LIMITS & ERRORS
// =============================================================================

// MaxUploadSize is the hard ceiling on a document payload.
const MaxUploadSize = 2 << 20 // 2 MB

// allowedExtensions mirrors the server's allow-list; checking locally
// saves a doomed round trip.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

var (
	// ErrUploadInFlight is returned when an upload is already running;
	// uploads are strictly serialized.
	ErrUploadInFlight = errors.New("an upload is already in progress")
	// ErrUnsupportedType is returned for a file extension outside the
	// allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// OversizeError reports a payload over the ceiling, with the size in
// whole megabytes the way the assistant phrases it.
type OversizeError struct {
	Size int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("file is too large (%.1f MB); the limit is %d MB",
		float64(e.Size)/(1<<20), MaxUploadSize/(1<<20))
}

// =============================================================================
// INTAKE
// =============================================================================

// Intake validates and uploads documents. At most one upload runs at a
// time; a second attempt while one is in flight fails immediately with
// ErrUploadInFlight rather than queueing.
type Intake struct {
	backend *backend.Client
	log     *zap.Logger

	mu   sync.Mutex
	busy bool
}

// New creates an intake bound to the backend client.
func New(b *backend.Client, log *zap.Logger) *Intake {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intake{backend: b, log: log}
}

// Busy reports whether an upload is currently in flight.
func (i *Intake) Busy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.busy
}

// IsLabReport reports whether a filename looks like a lab report. The
// backend only analyzes PDFs.
func IsLabReport(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// ValidateName checks the extension against the allow-list without
// touching the file.
func ValidateName(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return nil
}

// Result describes a completed upload.
type Result struct {
	// Filename is the name the server stored.
	Filename string
	// FilePath is the server-side reference used for analysis.
	FilePath string
	// LabReport is true when the document qualifies for the
	// analysis offer.
	LabReport bool
}

// Upload validates and uploads the file at path. Size and extension
// are checked before any bytes leave the machine: an oversize or
// off-list file never reaches the wire.
func (i *Intake) Upload(ctx context.Context, path, description string) (*Result, error) {
	i.mu.Lock()
	if i.busy {
		i.mu.Unlock()
		return nil, ErrUploadInFlight
	}
	i.busy = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.busy = false
		i.mu.Unlock()
	}()

	filename := filepath.Base(path)
	if err := ValidateName(filename); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > MaxUploadSize {
		return nil, &OversizeError{Size: info.Size()}
	}

	i.log.Info("uploading document",
		zap.String("filename", filename),
		zap.Int64("size", info.Size()))

	// Guard against the file growing between Stat and read.
	resp, err := i.backend.Upload(ctx, filename,
		io.LimitReader(f, MaxUploadSize), description)
	if err != nil {
		return nil, err
	}

	return &Result{
		Filename:  resp.Filename,
		FilePath:  resp.FilePath,
		LabReport: IsLabReport(resp.Filename),
	}, nil
}
