package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"inferd/internal/common/fsutil"
	"inferd/internal/manager"
)

// ensureCached returns the cache path for rel, downloading it from url
// first when absent. Downloads go through a temp file in the same
// directory so a crash never leaves a half-written artifact behind.
func (r *Registry) ensureCached(ctx context.Context, id, url, rel string) (string, error) {
	dest := filepath.Join(r.cacheDir, filepath.FromSlash(rel))
	if fsutil.PathExists(dest) {
		r.log.Debug().Str("model_id", id).Str("path", dest).Msg("artifact cached")
		return dest, nil
	}
	if err := fsutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return "", fmt.Errorf("cache dir: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("hub request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("hub pull %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", manager.ErrModelNotFound(id)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("hub returned %s for %s", resp.Status, url)
	}

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", rel, err)
	}
	r.log.Info().
		Str("model_id", id).
		Str("url", url).
		Str("path", dest).
		Int64("bytes", n).
		Dur("took", time.Since(start)).
		Msg("artifact downloaded")
	return dest, nil
}

// writeAtomic streams body into dest via a sibling temp file and a rename.
func writeAtomic(dest string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
