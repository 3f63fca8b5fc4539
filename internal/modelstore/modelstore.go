package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a download when Ensure is given no client.
const DefaultTimeout = 10 * time.Minute

var (
	ErrNoSource = errors.New("model file missing and no download url configured")
	// ErrNotAModel is returned when the server answers with an HTML page, which
	// is what Google Drive does for quota or sharing problems.
	ErrNotAModel = errors.New("download returned a web page, not a model file")
)

// Ensure makes sure a model file exists at path, downloading it from url when
// it does not. The file is written to a temporary name in the same directory
// and renamed into place, so a partial download never looks like a model.
// It reports whether a download happened.
func Ensure(ctx context.Context, path, url string, client *http.Client, log *slog.Logger) (bool, error) {
	if log == nil {
		log = slog.Default()
	}
	client = httpClient(client)

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("model path %s is a directory", path)
		}
		if info.Size() > 0 {
			return false, nil
		}
		log.Warn("model file is empty, downloading again", slog.String("path", path))
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if url == "" {
		return false, fmt.Errorf("%w: %s", ErrNoSource, path)
	}

	log.Info("downloading model", slog.String("path", path))
	start := time.Now()
	n, err := download(ctx, client, url, path)
	if err != nil {
		return false, err
	}
	log.Info("model downloaded",
		slog.String("path", path),
		slog.Int64("bytes", n),
		slog.Duration("took", time.Since(start)),
	)
	return true, nil
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func download(ctx context.Context, client *http.Client, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build model request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download model: unexpected status %s", resp.Status)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return 0, ErrNotAModel
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write model: %w", err)
	}
	if n == 0 {
		return 0, errors.New("download model: empty body")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("install model: %w", err)
	}
	return n, nil
}
