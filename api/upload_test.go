package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// checkUpload asserts the multipart body and returns the file content.
func checkUpload(t *testing.T, r *http.Request) string {
	t.Helper()
	assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
	if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
		return ""
	}
	assert.Equal(t, "journal", r.FormValue("context"))
	assert.Equal(t, "j-7", r.FormValue("journal_id"))

	f, header, err := r.FormFile(UploadFieldFile)
	if !assert.NoError(t, err) {
		return ""
	}
	defer f.Close()
	assert.Equal(t, "voice note.m4a", header.Filename)
	assert.Equal(t, "audio/mp4", header.Header.Get("Content-Type"))

	content, err := io.ReadAll(f)
	assert.NoError(t, err)
	return string(content)
}

func TestClient_Upload(t *testing.T) {
	path := writeTempFile(t, "rec-001.m4a", "fake audio bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media/upload", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "fake audio bytes", checkUpload(t, r))
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"data":    map[string]string{"url": "https://cdn.example.com/rec-001.m4a"},
		})
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, newStore(t, "token", ""), Config{})

	data, err := c.Upload(context.Background(), "/media/upload",
		UploadFile{Path: path, Name: "voice note.m4a", MIMEType: "audio/mp4"},
		map[string]string{"context": "journal", "journal_id": "j-7"},
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://cdn.example.com/rec-001.m4a"}`, string(data))
}

func TestClient_UploadDefaultsNameAndType(t *testing.T) {
	path := writeTempFile(t, "scan.pdf", "%PDF")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile(UploadFieldFile)
		if assert.NoError(t, err) {
			assert.Equal(t, "scan.pdf", header.Filename)
			assert.Equal(t, "application/octet-stream", header.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, newStore(t, "", ""), Config{})
	data, err := c.Upload(context.Background(), "/media/upload", UploadFile{Path: path}, nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestClient_UploadIsNotRetriedOnServerError(t *testing.T) {
	path := writeTempFile(t, "photo.jpg", "jpeg")

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "storage unavailable"})
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL, newStore(t, "token", "refresh"), Config{})

	_, err := c.Upload(context.Background(), "/media/upload", UploadFile{Path: path, MIMEType: "image/jpeg"}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "storage unavailable", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.recorded())
}

func TestClient_UploadRefreshesOnceAndResendsBody(t *testing.T) {
	path := writeTempFile(t, "rec.m4a", "second time lucky")

	var uploads, refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/media/upload", func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		assert.Equal(t, "second time lucky", checkUpload(t, r))
		writeJSON(w, http.StatusOK, map[string]string{"url": "u"})
	})
	mux.HandleFunc(RefreshEndpoint, func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "fresh"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, _ := newTestClient(t, server.URL, newStore(t, "stale", "refresh"), Config{})

	data, err := c.Upload(context.Background(), "/media/upload",
		UploadFile{Path: path, Name: "voice note.m4a", MIMEType: "audio/mp4"},
		map[string]string{"context": "journal", "journal_id": "j-7"},
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"u"}`, string(data))
	assert.Equal(t, int32(2), uploads.Load())
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestClient_UploadMissingFile(t *testing.T) {
	c, _ := newTestClient(t, "http://backend.invalid", newStore(t, "", ""), Config{})
	_, err := c.Upload(context.Background(), "/media/upload",
		UploadFile{Path: filepath.Join(t.TempDir(), "missing.png")}, nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}
