package modelstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestEnsureDownloadsMissingModel(t *testing.T) {
	t.Parallel()

	srv, hits := modelServer(t, http.StatusOK, "application/octet-stream", "onnx-bytes")
	path := filepath.Join(t.TempDir(), "models", "seed_detector.onnx")

	downloaded, err := Ensure(context.Background(), path, srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	assert.True(t, downloaded)
	assert.Equal(t, int32(1), hits.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestEnsureKeepsExistingModel(t *testing.T) {
	t.Parallel()

	srv, hits := modelServer(t, http.StatusOK, "application/octet-stream", "new")
	path := filepath.Join(t.TempDir(), "seed_detector.onnx")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	downloaded, err := Ensure(context.Background(), path, srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	assert.False(t, downloaded)
	assert.Zero(t, hits.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestEnsureFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        error
	}{
		{name: "server error", status: http.StatusInternalServerError, contentType: "text/plain", body: "nope"},
		{name: "html page", status: http.StatusOK, contentType: "text/html; charset=utf-8", body: "<html>quota</html>", want: ErrNotAModel},
		{name: "empty body", status: http.StatusOK, contentType: "application/octet-stream"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := modelServer(t, tc.status, tc.contentType, tc.body)
			dir := t.TempDir()
			path := filepath.Join(dir, "seed_detector.onnx")

			downloaded, err := Ensure(context.Background(), path, srv.URL, srv.Client(), nil)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
			assert.False(t, downloaded)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestEnsureWithoutURL(t *testing.T) {
	t.Parallel()

	_, err := Ensure(context.Background(), filepath.Join(t.TempDir(), "m.onnx"), "", nil, nil)
	assert.ErrorIs(t, err, ErrNoSource)
}

func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureStalledDownloadTimesOut(t *testing.T) {
	t.Parallel()

	srv := stalledServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "seed_detector.onnx")

	client := &http.Client{Timeout: 100 * time.Millisecond}
	start := time.Now()
	downloaded, err := Ensure(context.Background(), path, srv.URL, client, nil)
	require.Error(t, err)
	assert.False(t, downloaded)
	assert.Less(t, time.Since(start), 5*time.Second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDefaultClientHasTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTimeout, httpClient(nil).Timeout)
	custom := &http.Client{Timeout: time.Second}
	assert.Same(t, custom, httpClient(custom))
}
