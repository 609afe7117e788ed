// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/medassist-client/internal/backend"
)

func writeTestFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

// uploadServer counts hits and echoes back a stored path.
func uploadServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseMultipartForm(4<<20))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]string{
			"filename":  hdr.Filename,
			"file_path": "uploads/1/" + hdr.Filename,
		})
	}))
}

func TestUploadPDFIsLabReport(t *testing.T) {
	var hits atomic.Int64
	srv := uploadServer(t, &hits)
	defer srv.Close()

	in := New(backend.New(srv.URL), nil)
	path := writeTestFile(t, "report.pdf", 1024)

	res, err := in.Upload(context.Background(), path, "blood work")
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", res.Filename)
	assert.Equal(t, "uploads/1/report.pdf", res.FilePath)
	assert.True(t, res.LabReport)
	assert.False(t, in.Busy())
}

func TestUploadImageIsNotLabReport(t *testing.T) {
	var hits atomic.Int64
	srv := uploadServer(t, &hits)
	defer srv.Close()

	in := New(backend.New(srv.URL), nil)
	path := writeTestFile(t, "scan.jpg", 1024)

	res, err := in.Upload(context.Background(), path, "")
	require.NoError(t, err)
	assert.False(t, res.LabReport)
}

func TestOversizeNeverReachesTheWire(t *testing.T) {
	var hits atomic.Int64
	srv := uploadServer(t, &hits)
	defer srv.Close()

	in := New(backend.New(srv.URL), nil)
	path := writeTestFile(t, "huge.pdf", MaxUploadSize+1)

	_, err := in.Upload(context.Background(), path, "")
	require.Error(t, err)

	var oe *OversizeError
	require.True(t, errors.As(err, &oe))
	assert.Contains(t, oe.Error(), "MB")
	assert.Equal(t, int64(0), hits.Load(), "oversize file must not be uploaded")
}

func TestExactLimitIsAccepted(t *testing.T) {
	var hits atomic.Int64
	srv := uploadServer(t, &hits)
	defer srv.Close()

	in := New(backend.New(srv.URL), nil)
	path := writeTestFile(t, "edge.pdf", MaxUploadSize)

	_, err := in.Upload(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestUnsupportedExtensionNeverReachesTheWire(t *testing.T) {
	var hits atomic.Int64
	srv := uploadServer(t, &hits)
	defer srv.Close()

	in := New(backend.New(srv.URL), nil)
	path := writeTestFile(t, "malware.exe", 64)

	_, err := in.Upload(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, int64(0), hits.Load())
}

func TestSecondUploadRejectedWhileBusy(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release // hold the first upload open
		json.NewEncoder(w).Encode(map[string]string{
			"filename": "a.pdf", "file_path": "uploads/1/a.pdf",
		})
	}))
	defer srv.Close()

	in := New(backend.New(srv.URL), nil)
	first := writeTestFile(t, "a.pdf", 64)
	second := writeTestFile(t, "b.pdf", 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := in.Upload(context.Background(), first, "")
		assert.NoError(t, err)
	}()

	// Wait for the first upload to hit the server and hold.
	for hits.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := in.Upload(context.Background(), second, "")
	assert.ErrorIs(t, err, ErrUploadInFlight)

	close(release)
	wg.Wait()
	assert.False(t, in.Busy())
}

func TestIsLabReport(t *testing.T) {
	assert.True(t, IsLabReport("report.pdf"))
	assert.True(t, IsLabReport("REPORT.PDF"))
	assert.False(t, IsLabReport("scan.jpg"))
	assert.False(t, IsLabReport("notes.docx"))
	assert.False(t, IsLabReport("pdf")) // no extension
}
